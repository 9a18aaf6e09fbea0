package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientSetsUserAgent(t *testing.T) {
	tests := []struct {
		name  string
		agent string
		want  string
	}{
		{name: "default", want: DefaultUserAgent},
		{name: "caller override", agent: "custom/2.0", want: "custom/2.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("User-Agent")
			}))
			defer srv.Close()

			req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
			require.NoError(t, err)
			if tt.agent != "" {
				req.Header.Set("User-Agent", tt.agent)
			}
			resp, err := NewClient().Do(req)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, tt.want, got)
			assert.Equal(t, DefaultTimeout, NewClient().Timeout)
		})
	}
}

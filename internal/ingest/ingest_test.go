package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/paradeweather/internal/forecast"
	"github.com/lox/paradeweather/internal/models"
)

const samplePowerResponse = `{
  "type": "Feature",
  "geometry": {"type": "Point", "coordinates": [146.9, -36.8, 400.1]},
  "properties": {
    "parameter": {
      "T2M": {"20240101": 21.5, "20240102": -999.0, "20240103": 19.25},
      "RH2M": {"20240101": 55.1, "20240102": 140.0, "20240103": 61.0},
      "PRECTOTCORR": {"20240101": 0.0, "20240102": 3.2, "20240103": -0.5}
    }
  },
  "header": {"title": "NASA/POWER", "fill_value": -999.0, "start": "20240101", "end": "20240103"},
  "messages": [],
  "parameters": {"T2M": {"units": "C", "longname": "Temperature at 2 Meters"}}
}`

var sampleVars = []models.Variable{models.Temp, models.Humidity, models.Precip}

func sampleQuery() forecast.Query {
	return forecast.Query{
		Latitude:  -36.7912,
		Longitude: 146.9321,
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		Variables: sampleVars,
	}
}

func noRetries(n uint64) PowerOption {
	return WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, n)
	})
}

type memoryArchive struct {
	mu       sync.Mutex
	payloads map[string][]byte
	err      error
}

func (m *memoryArchive) StoreRawPayload(source, endpoint string, locationID *string, payload []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if m.payloads == nil {
		m.payloads = make(map[string][]byte)
	}
	key := source + "|" + endpoint + "|" + *locationID + "|" + string(payload)
	if _, ok := m.payloads[key]; ok {
		return 0, nil
	}
	m.payloads[key] = payload
	return int64(len(m.payloads)), nil
}

func TestParsePowerResponse(t *testing.T) {
	raw, err := ParsePowerResponse([]byte(samplePowerResponse), sampleVars)
	require.NoError(t, err)

	require.Len(t, raw, 3)
	assert.Equal(t, 21.5, raw["20240101"][models.Temp])
	assert.Equal(t, models.Missing, raw["20240102"][models.Temp])
	assert.Equal(t, 61.0, raw["20240103"][models.Humidity])
	assert.Equal(t, 3.2, raw["20240102"][models.Precip])
}

func TestParsePowerResponseErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		vars    []models.Variable
		wantErr string
	}{
		{name: "invalid json", body: `{"properties":`, vars: sampleVars, wantErr: "unmarshal"},
		{name: "no parameters", body: `{"properties": {"parameter": {}}, "messages": ["Invalid latitude"]}`, vars: sampleVars, wantErr: "Invalid latitude"},
		{name: "missing parameter", body: samplePowerResponse, vars: []models.Variable{models.Temp, models.Wind}, wantErr: "WS10M"},
		{name: "bad date key", body: `{"properties": {"parameter": {"T2M": {"2024-13-45": 1}}}}`, vars: []models.Variable{models.Temp}, wantErr: "parse date key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePowerResponse([]byte(tt.body), tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParsePowerResponseCustomFillValue(t *testing.T) {
	body := `{"header": {"fill_value": -99}, "properties": {"parameter": {"T2M": {"20240101": -99, "20240102": 4}}}}`
	raw, err := ParsePowerResponse([]byte(body), []models.Variable{models.Temp})
	require.NoError(t, err)
	assert.Equal(t, models.Missing, raw["20240101"][models.Temp])
	assert.Equal(t, 4.0, raw["20240102"][models.Temp])
}

func TestValidateReading(t *testing.T) {
	tests := []struct {
		name     string
		variable models.Variable
		value    float64
		want     string
	}{
		{name: "plausible temp", variable: models.Temp, value: 25, want: ""},
		{name: "cold boundary", variable: models.TempMin, value: -90, want: ""},
		{name: "too cold", variable: models.TempMin, value: -95, want: FlagTempOutOfRange},
		{name: "too hot", variable: models.TempMax, value: 61, want: FlagTempOutOfRange},
		{name: "missing is not flagged", variable: models.Temp, value: models.Missing, want: ""},
		{name: "humidity at 100", variable: models.Humidity, value: 100, want: ""},
		{name: "humidity over 100", variable: models.Humidity, value: 100.5, want: FlagHumidityInvalid},
		{name: "humidity negative", variable: models.Humidity, value: -1, want: FlagHumidityInvalid},
		{name: "negative wind", variable: models.Wind, value: -0.1, want: FlagWindSpeedUnlikely},
		{name: "hurricane wind", variable: models.Wind, value: 120, want: FlagWindSpeedUnlikely},
		{name: "negative precip", variable: models.Precip, value: -0.5, want: FlagPrecipNegative},
		{name: "absurd precip", variable: models.Precip, value: 5000, want: FlagPrecipUnlikely},
		{name: "zero precip", variable: models.Precip, value: 0, want: ""},
		{name: "negative uva", variable: models.UVProxy, value: -2, want: FlagUVNegative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateReading(tt.variable, tt.value))
		})
	}
}

func TestScreenReadings(t *testing.T) {
	raw, err := ParsePowerResponse([]byte(samplePowerResponse), sampleVars)
	require.NoError(t, err)

	counts := ScreenReadings(raw)
	assert.Equal(t, map[string]int{FlagHumidityInvalid: 1, FlagPrecipNegative: 1}, counts)
	assert.Equal(t, models.Missing, raw["20240102"][models.Humidity])
	assert.Equal(t, models.Missing, raw["20240103"][models.Precip])
	assert.Equal(t, 55.1, raw["20240101"][models.Humidity])
}

func TestPowerClientFetchDaily(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, samplePowerResponse)
	}))
	defer srv.Close()

	archive := &memoryArchive{}
	client := NewPowerClient(WithBaseURL(srv.URL), WithArchive(archive), noRetries(0))

	raw, err := client.FetchDaily(context.Background(), sampleQuery())
	require.NoError(t, err)
	assert.Equal(t, 21.5, raw["20240101"][models.Temp])
	assert.Equal(t, models.Missing, raw["20240102"][models.Temp])
	assert.Equal(t, models.Missing, raw["20240102"][models.Humidity], "implausible humidity is screened")

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"T2M,RH2M,PRECTOTCORR"}, q["parameters"])
	assert.Equal(t, []string{"AG"}, q["community"])
	assert.Equal(t, []string{"-36.7912"}, q["latitude"])
	assert.Equal(t, []string{"146.9321"}, q["longitude"])
	assert.Equal(t, []string{"20240101"}, q["start"])
	assert.Equal(t, []string{"20240103"}, q["end"])
	assert.Equal(t, []string{"JSON"}, q["format"])

	assert.Len(t, archive.payloads, 1)
	_, err = client.FetchDaily(context.Background(), sampleQuery())
	require.NoError(t, err)
	assert.Len(t, archive.payloads, 1, "identical payload archived once")
}

func TestPowerClientArchiveFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, samplePowerResponse)
	}))
	defer srv.Close()

	client := NewPowerClient(WithBaseURL(srv.URL), WithArchive(&memoryArchive{err: errors.New("disk full")}), noRetries(0))
	_, err := client.FetchDaily(context.Background(), sampleQuery())
	assert.NoError(t, err)
}

func TestPowerClientRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, samplePowerResponse)
	}))
	defer srv.Close()

	client := NewPowerClient(WithBaseURL(srv.URL), noRetries(5))
	_, err := client.FetchDaily(context.Background(), sampleQuery())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPowerClientPermanentFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, strings.Repeat("x", 600))
	}))
	defer srv.Close()

	client := NewPowerClient(WithBaseURL(srv.URL), noRetries(5))
	_, err := client.FetchDaily(context.Background(), sampleQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 422")
	assert.Contains(t, err.Error(), "...(truncated)")
	assert.Equal(t, int32(1), calls.Load())
}

func TestPowerClientCircuitBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewPowerClient(WithBaseURL(srv.URL), noRetries(0))
	for i := 0; i < 3; i++ {
		_, err := client.FetchDaily(context.Background(), sampleQuery())
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrProviderUnavailable))
	}

	_, err := client.FetchDaily(context.Background(), sampleQuery())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
	assert.Equal(t, int32(3), calls.Load())
}

func TestPowerClientContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewPowerClient(WithBaseURL(srv.URL), noRetries(5))
	_, err := client.FetchDaily(ctx, sampleQuery())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestTruncateBody(t *testing.T) {
	assert.Equal(t, "hello world", truncateBody([]byte("hello world")))

	exact := strings.Repeat("a", 512)
	assert.Equal(t, exact, truncateBody([]byte(exact)))

	got := truncateBody([]byte(strings.Repeat("x", 600)))
	assert.True(t, strings.HasPrefix(got, strings.Repeat("x", 512)))
	assert.True(t, strings.HasSuffix(got, "...(truncated)"))
	assert.Len(t, got, 512+len("...(truncated)"))
}

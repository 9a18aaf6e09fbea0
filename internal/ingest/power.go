package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/lox/paradeweather/internal/forecast"
	"github.com/lox/paradeweather/internal/httputil"
	"github.com/lox/paradeweather/internal/metrics"
	"github.com/lox/paradeweather/internal/models"
)

const (
	PowerBaseURL   = "https://power.larc.nasa.gov/api/temporal/daily/point"
	powerSource    = "power"
	powerEndpoint  = "temporal/daily/point"
	powerCommunity = "AG"

	maxErrorBody = 512
)

// ErrProviderUnavailable is returned while the circuit breaker is open.
var ErrProviderUnavailable = errors.New("provider unavailable")

// PayloadArchiver keeps raw provider responses. It returns 0 for a payload
// that was already archived.
type PayloadArchiver interface {
	StoreRawPayload(source, endpoint string, locationID *string, payload []byte) (int64, error)
}

// PowerClient fetches daily point data from the NASA POWER API.
type PowerClient struct {
	baseURL    string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	archive    PayloadArchiver
	newBackOff func() backoff.BackOff
}

type PowerOption func(*PowerClient)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) PowerOption {
	return func(p *PowerClient) { p.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) PowerOption {
	return func(p *PowerClient) { p.client = c }
}

// WithArchive stores every successful response body.
func WithArchive(a PayloadArchiver) PowerOption {
	return func(p *PowerClient) { p.archive = a }
}

// WithBackOff sets the retry policy for each fetch.
func WithBackOff(fn func() backoff.BackOff) PowerOption {
	return func(p *PowerClient) { p.newBackOff = fn }
}

func NewPowerClient(opts ...PowerOption) *PowerClient {
	p := &PowerClient{
		baseURL: PowerBaseURL,
		client:  httputil.NewClient(),
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = 2 * time.Minute
			return bo
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "nasa-power",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("ingest: %s circuit %s -> %s", name, from, to)
		},
	})
	return p
}

type powerResponse struct {
	Header struct {
		FillValue *float64 `json:"fill_value"`
	} `json:"header"`
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
	Messages []string `json:"messages"`
}

// FetchDaily implements forecast.Provider.
func (p *PowerClient) FetchDaily(ctx context.Context, q forecast.Query) (models.RawReadings, error) {
	if len(q.Variables) == 0 {
		return nil, fmt.Errorf("fetch power: no variables requested")
	}
	reqURL := p.requestURL(q)
	loc := models.Location{Latitude: q.Latitude, Longitude: q.Longitude}.Key()

	start := time.Now()
	body, err := p.breaker.Execute(func() ([]byte, error) {
		return p.fetch(ctx, reqURL)
	})
	metrics.ProviderLatency.WithLabelValues(powerSource).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(powerSource, "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("fetch power: %w: %w", ErrProviderUnavailable, err)
		}
		return nil, fmt.Errorf("fetch power: %w", err)
	}
	metrics.ProviderCallsTotal.WithLabelValues(powerSource, "ok").Inc()

	if p.archive != nil {
		id, err := p.archive.StoreRawPayload(powerSource, powerEndpoint, &loc, body)
		switch {
		case err != nil:
			log.Printf("ingest: archive power payload for %s: %v", loc, err)
		case id == 0:
			metrics.PayloadsArchived.WithLabelValues(powerSource, "duplicate").Inc()
		default:
			metrics.PayloadsArchived.WithLabelValues(powerSource, "stored").Inc()
		}
	}

	raw, err := ParsePowerResponse(body, q.Variables)
	if err != nil {
		return nil, err
	}
	for flag, n := range ScreenReadings(raw) {
		log.Printf("ingest: %s: %d readings flagged %s", loc, n, flag)
	}
	return raw, nil
}

func (p *PowerClient) requestURL(q forecast.Query) string {
	params := make([]string, len(q.Variables))
	for i, v := range q.Variables {
		params[i] = v.Parameter()
	}
	values := url.Values{}
	values.Set("parameters", strings.Join(params, ","))
	values.Set("community", powerCommunity)
	values.Set("latitude", fmt.Sprintf("%.4f", q.Latitude))
	values.Set("longitude", fmt.Sprintf("%.4f", q.Longitude))
	values.Set("start", q.Start.Format("20060102"))
	values.Set("end", q.End.Format("20060102"))
	values.Set("format", "JSON")
	return p.baseURL + "?" + values.Encode()
}

// fetch retries rate limiting, server errors and transport failures.
// Other statuses fail immediately.
func (p *PowerClient) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4*maxErrorBody))
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, truncateBody(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Printf("ingest: power request failed, retrying in %s: %v", wait.Round(time.Millisecond), err)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(p.newBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	return body, nil
}

// ParsePowerResponse extracts the requested variables from a POWER daily
// point response. Fill values become models.Missing.
func ParsePowerResponse(body []byte, vars []models.Variable) (models.RawReadings, error) {
	var data powerResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal power response: %w", err)
	}
	params := data.Properties.Parameter
	if len(params) == 0 {
		if len(data.Messages) > 0 {
			return nil, fmt.Errorf("power response has no parameters: %s", strings.Join(data.Messages, "; "))
		}
		return nil, fmt.Errorf("power response has no parameters")
	}

	fill := models.Missing
	if data.Header.FillValue != nil {
		fill = *data.Header.FillValue
	}

	raw := make(models.RawReadings)
	for _, v := range vars {
		series, ok := params[v.Parameter()]
		if !ok {
			return nil, fmt.Errorf("power response missing parameter %s", v.Parameter())
		}
		for day, value := range series {
			if _, err := models.ParseDateKey(day); err != nil {
				return nil, fmt.Errorf("power response: %w", err)
			}
			if value == fill {
				value = models.Missing
			}
			if raw[day] == nil {
				raw[day] = make(map[models.Variable]float64, len(vars))
			}
			raw[day][v] = value
		}
	}
	return raw, nil
}

// truncateBody limits an error response body to maxErrorBody bytes.
func truncateBody(b []byte) string {
	if len(b) <= maxErrorBody {
		return string(b)
	}
	return string(b[:maxErrorBody]) + "...(truncated)"
}

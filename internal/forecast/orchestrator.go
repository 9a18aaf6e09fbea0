package forecast

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/lox/paradeweather/internal/metrics"
	"github.com/lox/paradeweather/internal/models"
)

// DefaultWindowStart is the first day of history requested from providers.
var DefaultWindowStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

const defaultWorkers = 4

// Query describes a daily history request to a Provider.
type Query struct {
	Latitude  float64
	Longitude float64
	Start     time.Time
	End       time.Time
	Variables []models.Variable
}

// Provider supplies daily observations for a location. Values equal to
// models.Missing mark gaps.
type Provider interface {
	FetchDaily(ctx context.Context, q Query) (models.RawReadings, error)
}

// Config tunes an Orchestrator.
type Config struct {
	// WindowStart is the first day of history fetched for every request.
	WindowStart time.Time
	// Workers bounds concurrent model fits across all requests.
	Workers int
	Daily   SeasonalConfig
	Monthly SeasonalConfig
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		WindowStart: DefaultWindowStart,
		Workers:     defaultWorkers,
		Daily:       DailyConfig(),
		Monthly:     MonthlyConfig(),
	}
}

// Orchestrator runs forecast requests: fetch history, fit one model per
// variable, then assemble the derived result.
type Orchestrator struct {
	provider   Provider
	forecaster Forecaster
	cfg        Config
	fits       *semaphore.Weighted
	now        func() time.Time
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithForecaster replaces the default SeasonalForecaster, for example with
// a memoising wrapper.
func WithForecaster(f Forecaster) Option {
	return func(o *Orchestrator) { o.forecaster = f }
}

// WithClock sets the clock used to derive the provider window end.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an Orchestrator reading from provider.
func NewOrchestrator(provider Provider, cfg Config, opts ...Option) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.WindowStart.IsZero() {
		cfg.WindowStart = DefaultWindowStart
	}
	o := &Orchestrator{
		provider:   provider,
		forecaster: SeasonalForecaster{},
		cfg:        cfg,
		fits:       semaphore.NewWeighted(int64(cfg.Workers)),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// windowEnd is the last day a provider can have data for: yesterday, UTC.
func (o *Orchestrator) windowEnd() time.Time {
	now := o.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// Diagnostics reports how a forecast was produced.
type Diagnostics struct {
	LastObserved string       `json:"last_observed"`
	Steps        int          `json:"steps"`
	Skipped      []string     `json:"skipped_variables,omitempty"`
	Warnings     []string     `json:"warnings,omitempty"`
	Fits         []FitSummary `json:"fits"`
}

// FitSummary describes one variable's model fit.
type FitSummary struct {
	Variable   string  `json:"variable"`
	Status     string  `json:"status"`
	Iterations int     `json:"iterations"`
	Sigma2     float64 `json:"sigma2"`
	Degraded   bool    `json:"degraded"`
}

func (o *Orchestrator) fetch(ctx context.Context, lat, lon float64, vars []models.Variable) (*models.ObservationTable, error) {
	q := Query{
		Latitude:  lat,
		Longitude: lon,
		Start:     o.cfg.WindowStart,
		End:       o.windowEnd(),
		Variables: vars,
	}
	raw, err := o.provider.FetchDaily(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	table, err := models.TableFromRaw(raw, vars)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	return table, nil
}

// impute gap-fills table. Variables with unfillable leading gaps are
// dropped from the returned variable list, unless they are required, in
// which case the imputation error is returned.
func impute(table *models.ObservationTable, required []models.Variable, diag *Diagnostics) (*models.ObservationTable, []models.Variable, error) {
	unknown := 0
	for _, v := range table.Variables() {
		series, _ := table.Series(v)
		unknown += countUnknown(series)
	}

	filled, err := FillGaps(table)
	var ierr *ImputationError
	if err != nil && !errors.As(err, &ierr) {
		return nil, nil, fmt.Errorf("fill gaps: %w", err)
	}
	if ierr != nil {
		for _, v := range required {
			if ierr.Affects(v) {
				return nil, nil, ierr
			}
		}
	}
	if unknown > 0 {
		log.Printf("forecast: filled %d unknown %s values", unknown, table.Frequency())
	}

	var usable []models.Variable
	for _, v := range filled.Variables() {
		if ierr != nil && ierr.Affects(v) {
			log.Printf("forecast: skipping %s: leading gap cannot be filled", v)
			diag.Skipped = append(diag.Skipped, v.String())
			continue
		}
		usable = append(usable, v)
	}
	return filled, usable, nil
}

// fitAll fits one model per variable on a bounded pool and forecasts steps
// periods ahead. Fits acquire the orchestrator-wide semaphore, so the
// bound holds across concurrent requests.
func (o *Orchestrator) fitAll(ctx context.Context, table *models.ObservationTable, vars []models.Variable, steps int, cfg SeasonalConfig, mode string, diag *Diagnostics) (map[models.Variable]*SeasonalForecast, error) {
	var (
		mu  sync.Mutex
		out = make(map[models.Variable]*SeasonalForecast, len(vars))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for _, v := range vars {
		series, ok := table.Series(v)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := o.fits.Acquire(gctx, 1); err != nil {
				return err
			}
			defer o.fits.Release(1)

			start := time.Now()
			fc, err := o.forecaster.Forecast(series, steps, cfg)
			metrics.ModelFitDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.ModelFitsTotal.WithLabelValues(v.String(), mode, "error").Inc()
				return fmt.Errorf("fit %s: %w", v, err)
			}
			if len(fc.Predictions) < steps {
				return fmt.Errorf("fit %s: got %d predictions, want %d", v, len(fc.Predictions), steps)
			}

			summary := FitSummary{Variable: v.String(), Status: "ok"}
			if fc.Fit != nil {
				summary.Status = fc.Fit.Status
				summary.Iterations = fc.Fit.Iterations
				summary.Sigma2 = fc.Fit.Sigma2
				summary.Degraded = fc.Fit.Degraded
			}
			status := "ok"
			if summary.Degraded {
				status = "degraded"
				log.Printf("forecast: %s %s fit stopped after %d iterations (%s)", mode, v, summary.Iterations, summary.Status)
			}
			metrics.ModelFitsTotal.WithLabelValues(v.String(), mode, status).Inc()

			mu.Lock()
			defer mu.Unlock()
			out[v] = fc
			diag.Fits = append(diag.Fits, summary)
			if summary.Degraded {
				diag.Warnings = append(diag.Warnings, fmt.Sprintf("%s: %v", v, ErrModelFitDegraded))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sortFits(diag)
	return out, nil
}

func sortFits(diag *Diagnostics) {
	slices.SortFunc(diag.Fits, func(a, b FitSummary) int {
		va, _ := models.ParseVariable(a.Variable)
		vb, _ := models.ParseVariable(b.Variable)
		return int(va) - int(vb)
	})
	slices.Sort(diag.Warnings)
}

// recordOutcome counts a finished request by its error kind.
func recordOutcome(variant string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidTargetDate):
		outcome = "invalid_target"
	case errors.Is(err, ErrDataUnavailable):
		outcome = "data_unavailable"
	case errors.Is(err, ErrImputation):
		outcome = "imputation"
	default:
		outcome = "error"
	}
	metrics.ForecastRequestsTotal.WithLabelValues(variant, outcome).Inc()
}

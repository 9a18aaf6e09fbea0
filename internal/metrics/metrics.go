package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paradeweather_provider_calls_total",
			Help: "Total climate data provider calls",
		},
		[]string{"provider", "status"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paradeweather_provider_latency_seconds",
			Help:    "Climate data provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ReadingsScreened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paradeweather_readings_screened_total",
			Help: "Provider readings replaced with the missing sentinel by plausibility checks",
		},
		[]string{"variable", "flag"},
	)

	PayloadsArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paradeweather_payloads_archived_total",
			Help: "Raw provider payloads archived, by whether they were new",
		},
		[]string{"source", "result"},
	)

	ModelFitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paradeweather_model_fits_total",
			Help: "Seasonal model fits by variable, mode and outcome",
		},
		[]string{"variable", "mode", "status"},
	)

	ModelFitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paradeweather_model_fit_duration_seconds",
			Help:    "Seasonal model fit and forecast duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode"},
	)

	ForecastRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paradeweather_forecast_requests_total",
			Help: "Forecast requests by variant and outcome",
		},
		[]string{"variant", "outcome"},
	)
)

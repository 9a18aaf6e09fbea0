package api

import (
	"context"
	"log"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/paradeweather/internal/forecast"
	"github.com/lox/paradeweather/internal/store"
)

// Forecaster runs forecast requests. *forecast.Orchestrator implements it.
type Forecaster interface {
	ForecastDay(ctx context.Context, req forecast.DailyRequest) (*forecast.DailyForecast, error)
	ForecastMonth(ctx context.Context, req forecast.MonthlyRequest) (*forecast.MonthlyForecast, error)
}

type Server struct {
	store      *store.Store
	forecaster Forecaster
	port       string
	validate   *validator.Validate
	now        func() time.Time
}

func NewServer(store *store.Store, forecaster Forecaster, port string) *Server {
	return &Server{
		store:      store,
		forecaster: forecaster,
		port:       port,
		validate:   newValidator(),
		now:        time.Now,
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/forecast/daily", s.handleForecastDaily)
	mux.HandleFunc("POST /api/forecast/monthly", s.handleForecastMonthly)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/payloads/stats", s.handlePayloadStats)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

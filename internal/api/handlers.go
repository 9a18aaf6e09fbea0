package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/lox/paradeweather/internal/forecast"
	"github.com/lox/paradeweather/internal/store"
)

const (
	maxBodyBytes    = 1 << 16
	defaultRunLimit = 20
)

type dailyRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Date      string   `json:"date" validate:"required,datetime=2006-01-02"`
}

type monthlyRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Month     string   `json:"month" validate:"required,datetime=2006-01"`
}

type runsQuery struct {
	Limit int `json:"limit" validate:"gte=1,lte=200"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleForecastDaily(w http.ResponseWriter, r *http.Request) {
	var req dailyRequest
	if !s.decode(w, r, &req) {
		return
	}
	date, _ := time.Parse(time.DateOnly, req.Date)

	started := s.now()
	result, err := s.forecaster.ForecastDay(r.Context(), forecast.DailyRequest{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Date:      date,
	})

	run := store.ForecastRun{
		Variant:   "daily",
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Target:    req.Date,
		StartedAt: started,
	}
	if result != nil {
		run.Condition = result.Overview.Condition
		applyDiagnostics(&run, result.Diagnostics)
	}
	s.respond(w, run, result, err)
}

func (s *Server) handleForecastMonthly(w http.ResponseWriter, r *http.Request) {
	var req monthlyRequest
	if !s.decode(w, r, &req) {
		return
	}
	month, _ := time.Parse("2006-01", req.Month)

	started := s.now()
	result, err := s.forecaster.ForecastMonth(r.Context(), forecast.MonthlyRequest{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Month:     month,
	})

	run := store.ForecastRun{
		Variant:   "monthly",
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Target:    req.Month,
		StartedAt: started,
	}
	if result != nil {
		run.Condition = result.Condition
		applyDiagnostics(&run, result.Diagnostics)
	}
	s.respond(w, run, result, err)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	q := runsQuery{Limit: defaultRunLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apiError{Code: ErrCodeValidationField, Message: "limit must be an integer", Fields: []string{"limit: int"}})
			return
		}
		q.Limit = n
	}
	if err := s.validate.Struct(q); err != nil {
		writeError(w, validationError(err))
		return
	}

	runs, err := s.store.RecentForecastRuns(q.Limit)
	if err != nil {
		log.Printf("api: list runs: %v", err)
		writeError(w, apiError{Code: ErrCodeInternal, Message: "could not list runs"})
		return
	}
	if runs == nil {
		runs = []store.ForecastRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handlePayloadStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetRawPayloadStats()
	if err != nil {
		log.Printf("api: payload stats: %v", err)
		writeError(w, apiError{Code: ErrCodeInternal, Message: "could not read payload stats"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "empty request body"
		}
		writeError(w, apiError{Code: ErrCodeValidationBody, Message: msg})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, validationError(err))
		return false
	}
	return true
}

// respond logs the run and writes either the result or the mapped error.
func (s *Server) respond(w http.ResponseWriter, run store.ForecastRun, result any, err error) {
	run.DurationMS = s.now().Sub(run.StartedAt).Milliseconds()
	run.Success = err == nil

	var apiErr apiError
	if err != nil {
		apiErr = apiError{Code: classify(err), Message: err.Error()}
		run.ErrorKind = errorKind(apiErr.Code)
		run.ErrorMessage = err.Error()
		log.Printf("api: %s forecast %s at %.4f,%.4f failed: %v", run.Variant, run.Target, run.Latitude, run.Longitude, err)
	}
	if _, serr := s.store.RecordForecastRun(run); serr != nil {
		log.Printf("api: record %s run: %v", run.Variant, serr)
	}

	if err != nil {
		if apiErr.Code == ErrCodeInternal {
			apiErr.Message = "forecast failed"
		}
		writeError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func applyDiagnostics(run *store.ForecastRun, diag forecast.Diagnostics) {
	run.Steps = diag.Steps
	run.Skipped = diag.Skipped
	for _, f := range diag.Fits {
		if f.Degraded {
			run.DegradedFits++
		}
	}
}

package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ForecastRun is one logged forecast request.
type ForecastRun struct {
	ID           int64     `json:"id"`
	Variant      string    `json:"variant"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Target       string    `json:"target"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
	Success      bool      `json:"success"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Steps        int       `json:"steps,omitempty"`
	DegradedFits int       `json:"degraded_fits"`
	Skipped      []string  `json:"skipped_variables,omitempty"`
	Condition    string    `json:"condition,omitempty"`
}

// RecordForecastRun inserts run and returns its ID.
func (s *Store) RecordForecastRun(run ForecastRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO forecast_runs
		(variant, latitude, longitude, target, started_at, duration_ms, success,
		 error_kind, error_message, steps, degraded_fits, skipped_variables, condition)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Variant, run.Latitude, run.Longitude, run.Target, run.StartedAt.UTC(), run.DurationMS, run.Success,
		nullString(run.ErrorKind), nullString(run.ErrorMessage), nullInt(run.Steps), run.DegradedFits,
		nullString(strings.Join(run.Skipped, ",")), nullString(run.Condition))
	if err != nil {
		return 0, fmt.Errorf("insert forecast run: %w", err)
	}
	return result.LastInsertId()
}

// RecentForecastRuns returns up to limit runs, newest first.
func (s *Store) RecentForecastRuns(limit int) ([]ForecastRun, error) {
	rows, err := s.db.Query(`
		SELECT id, variant, latitude, longitude, target, started_at, duration_ms, success,
		       error_kind, error_message, steps, degraded_fits, skipped_variables, condition
		FROM forecast_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query forecast runs: %w", err)
	}
	defer rows.Close()

	var runs []ForecastRun
	for rows.Next() {
		var r ForecastRun
		var errorKind, errorMessage, skipped, condition sql.NullString
		var steps sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Variant, &r.Latitude, &r.Longitude, &r.Target, &r.StartedAt,
			&r.DurationMS, &r.Success, &errorKind, &errorMessage, &steps, &r.DegradedFits,
			&skipped, &condition); err != nil {
			return nil, fmt.Errorf("scan forecast run: %w", err)
		}
		r.ErrorKind = errorKind.String
		r.ErrorMessage = errorMessage.String
		r.Steps = int(steps.Int64)
		r.Condition = condition.String
		if skipped.String != "" {
			r.Skipped = strings.Split(skipped.String, ",")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}

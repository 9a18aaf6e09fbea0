package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lox/paradeweather/internal/forecast"
)

// ErrorCode classifies an API error. The prefix decides the HTTP status.
type ErrorCode string

const (
	ErrCodeValidationBody    ErrorCode = "validation_invalid_body"
	ErrCodeValidationField   ErrorCode = "validation_invalid_field"
	ErrCodeInvalidTargetDate ErrorCode = "unprocessable_invalid_target_date"
	ErrCodeImputation        ErrorCode = "unprocessable_imputation_failed"
	ErrCodeUpstreamData      ErrorCode = "upstream_data_unavailable"
	ErrCodeInternal          ErrorCode = "internal_error"
)

// HTTPStatus maps an ErrorCode to its HTTP status.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "unprocessable_"):
		return http.StatusUnprocessableEntity
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type apiError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Fields  []string  `json:"fields,omitempty"`
}

// classify maps a forecast error to its code.
func classify(err error) ErrorCode {
	switch {
	case errors.Is(err, forecast.ErrInvalidTargetDate):
		return ErrCodeInvalidTargetDate
	case errors.Is(err, forecast.ErrImputation):
		return ErrCodeImputation
	case errors.Is(err, forecast.ErrDataUnavailable):
		return ErrCodeUpstreamData
	default:
		return ErrCodeInternal
	}
}

// errorKind is the short name stored in the run log.
func errorKind(code ErrorCode) string {
	s := string(code)
	if i := strings.IndexByte(s, '_'); i >= 0 && code != ErrCodeInternal {
		return s[i+1:]
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, e apiError) {
	writeJSON(w, e.Code.HTTPStatus(), map[string]apiError{"error": e})
}

// validationError turns validator failures into a field list.
func validationError(err error) apiError {
	e := apiError{Code: ErrCodeValidationField, Message: "request failed validation"}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			e.Fields = append(e.Fields, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
		return e
	}
	e.Message = err.Error()
	return e
}

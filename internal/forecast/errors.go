package forecast

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lox/paradeweather/internal/models"
)

var (
	// ErrDataUnavailable means the provider failed or returned a payload
	// that could not be turned into an observation table.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrInvalidTargetDate means the target is not strictly after the last
	// known observation.
	ErrInvalidTargetDate = errors.New("invalid target date")

	// ErrImputation means a variable starts with a gap that cannot be
	// forward-filled.
	ErrImputation = errors.New("imputation failed")

	// ErrModelFitDegraded marks a fit that stopped on its iteration budget
	// before converging. The forecast is still usable.
	ErrModelFitDegraded = errors.New("model fit degraded")

	ErrSeriesTooShort  = errors.New("series too short for model")
	ErrNonFiniteSeries = errors.New("series contains non-finite values")
	ErrInvalidSteps    = errors.New("steps must be at least 1")
)

// LeadingGap records a variable whose series begins with unknown values.
type LeadingGap struct {
	Variable models.Variable
	Length   int
}

// ImputationError lists every variable whose leading gap could not be filled.
type ImputationError struct {
	Gaps []LeadingGap
}

func (e *ImputationError) Error() string {
	parts := make([]string, len(e.Gaps))
	for i, g := range e.Gaps {
		parts[i] = fmt.Sprintf("%s (%d leading)", g.Variable, g.Length)
	}
	return fmt.Sprintf("%s: no prior value for %s", ErrImputation, strings.Join(parts, ", "))
}

// Is makes errors.Is(err, ErrImputation) match.
func (e *ImputationError) Is(target error) bool {
	return target == ErrImputation
}

// Affects reports whether v has an unfilled leading gap.
func (e *ImputationError) Affects(v models.Variable) bool {
	for _, g := range e.Gaps {
		if g.Variable == v {
			return true
		}
	}
	return false
}

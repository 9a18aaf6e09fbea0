package forecast

import (
	"math"

	"github.com/lox/paradeweather/internal/models"
)

// FillGaps replaces Missing and NaN readings with the most recent preceding
// valid value of the same variable. The input is not modified.
//
// A variable whose series starts with unknown values keeps those values as
// NaN in the returned table, and an *ImputationError naming it is returned
// alongside the table.
func FillGaps(t *models.ObservationTable) (*models.ObservationTable, error) {
	filled := make(map[models.Variable][]float64)
	var gaps []LeadingGap

	for _, v := range t.Variables() {
		series, _ := t.Series(v)
		lead := fillForward(series)
		if lead > 0 {
			gaps = append(gaps, LeadingGap{Variable: v, Length: lead})
		}
		filled[v] = series
	}

	out, err := t.WithColumns(filled)
	if err != nil {
		return nil, err
	}
	if len(gaps) > 0 {
		return out, &ImputationError{Gaps: gaps}
	}
	return out, nil
}

// fillForward fills series in place and returns the number of leading
// values that had nothing to fill from.
func fillForward(series []float64) int {
	lead := 0
	last := math.NaN()
	for i, val := range series {
		if isUnknown(val) {
			if math.IsNaN(last) {
				series[i] = math.NaN()
				lead++
				continue
			}
			series[i] = last
			continue
		}
		last = val
	}
	return lead
}

func isUnknown(v float64) bool {
	return v == models.Missing || math.IsNaN(v)
}

// countUnknown returns how many values in series are Missing or NaN.
func countUnknown(series []float64) int {
	n := 0
	for _, v := range series {
		if isUnknown(v) {
			n++
		}
	}
	return n
}

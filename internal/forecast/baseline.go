package forecast

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/lox/paradeweather/internal/models"
)

// HistoricalBaseline averages TEMP_MAX and TEMP_MIN over every row sharing
// target's day of year. It reports false when no row matches or either
// column is absent. Leap years shift the alignment by at most one day.
func HistoricalBaseline(t *models.ObservationTable, target time.Time) (models.Baseline, bool) {
	highs, okHigh := t.Series(models.TempMax)
	lows, okLow := t.Series(models.TempMin)
	if !okHigh || !okLow {
		return models.Baseline{}, false
	}

	doy := target.YearDay()
	var matchHigh, matchLow []float64
	for i, d := range t.Dates() {
		if d.YearDay() != doy {
			continue
		}
		if !isUnknown(highs[i]) {
			matchHigh = append(matchHigh, highs[i])
		}
		if !isUnknown(lows[i]) {
			matchLow = append(matchLow, lows[i])
		}
	}
	if len(matchHigh) == 0 || len(matchLow) == 0 {
		return models.Baseline{}, false
	}
	return models.Baseline{
		AvgHigh: round(stat.Mean(matchHigh, nil), 1),
		AvgLow:  round(stat.Mean(matchLow, nil), 1),
	}, true
}

// round rounds half away from zero to the given number of decimals.
func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

package forecast

import (
	"math"
	"time"

	"github.com/lox/paradeweather/internal/models"
)

const (
	maxHourlyRainChance = 95
	peakRainMultiplier  = 1.5
)

// chartHours are the hours exposed in a profile.
var chartHours = []int{8, 10, 12, 14, 16, 18, 20, 22}

// SimulateHourly synthesises an intraday profile from a day's min and max
// temperature and rain chance. Temperatures follow a cosine with the low
// near 03:00 and the high near 15:00. Rain chance is weighted by sin² over
// the day, scaled so the peak hour is 1.5x the daily figure, and clamped to
// [0, 95].
//
// This is a synthetic shape, not a sub-daily forecast.
func SimulateHourly(low, high float64, rainChance int) models.HourlyProfile {
	if low > high {
		low, high = high, low
	}
	spread := high - low

	var temps, weights [24]float64
	var peak float64
	for h := 0; h < 24; h++ {
		temps[h] = low + (spread/2)*(1-math.Cos(float64(h-3)*math.Pi/12))
		s := math.Sin(float64(h) * math.Pi / 24)
		weights[h] = s * s
		peak = math.Max(peak, weights[h])
	}

	points := make([]models.HourlyPoint, len(chartHours))
	for i, h := range chartHours {
		chance := weights[h] / peak * float64(rainChance) * peakRainMultiplier
		chance = math.Max(0, math.Min(maxHourlyRainChance, chance))
		points[i] = models.HourlyPoint{
			Hour:        h,
			Label:       hourLabel(h),
			Temperature: round(temps[h], 1),
			RainChance:  int(chance),
		}
	}
	return models.HourlyProfile{Points: points}
}

func hourLabel(h int) string {
	return time.Date(2000, 1, 1, h, 0, 0, 0, time.UTC).Format("3pm")
}

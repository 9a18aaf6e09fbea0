package forecast

import "math"

const (
	// heatIndexThreshold is the temperature (°C) below which feels-like
	// equals the air temperature.
	heatIndexThreshold = 26.7

	// VisibilityKm is reported as a constant; no visibility model exists.
	VisibilityKm = 10
)

// FeelsLike returns the Steadman heat index for tempC and relative humidity
// (percent), rounded to one decimal. Below 26.7 °C it returns tempC.
func FeelsLike(tempC, humidity float64) float64 {
	if tempC < heatIndexThreshold {
		return tempC
	}
	t, h := tempC, humidity
	hi := -8.7847 +
		1.6114*t +
		2.3385*h -
		0.1461*t*h -
		0.0123*t*t -
		0.0164*h*h +
		0.0022*t*t*h +
		0.0007*t*h*h -
		0.0000036*t*t*h*h
	return round(hi, 1)
}

// RainChance is a linear heuristic, not a probability model: 20 percentage
// points per millimetre, clamped to [0, 100].
func RainChance(precipMM float64) int {
	pct := math.Round(precipMM * 20)
	return int(math.Max(0, math.Min(100, pct)))
}

// WindKmh converts m/s to km/h.
func WindKmh(ms float64) float64 {
	return ms * 3.6
}

// UVIndex is a coarse UV index proxy from a UVA irradiance reading.
func UVIndex(uva float64) int {
	if uva <= 0 {
		return 0
	}
	return int(math.Floor(uva / 25))
}

// OverviewCondition is the headline label for a single day.
func OverviewCondition(rainChance int, tempC float64) string {
	switch {
	case rainChance > 70:
		return "Rain"
	case tempC < 15:
		return "Cloudy"
	default:
		return "Sunny"
	}
}

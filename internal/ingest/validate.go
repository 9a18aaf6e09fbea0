package ingest

import (
	"github.com/lox/paradeweather/internal/metrics"
	"github.com/lox/paradeweather/internal/models"
)

const (
	FlagTempOutOfRange    = "temp_out_of_range"
	FlagHumidityInvalid   = "humidity_invalid"
	FlagWindSpeedUnlikely = "wind_speed_unlikely"
	FlagPrecipNegative    = "precip_negative"
	FlagPrecipUnlikely    = "precip_unlikely"
	FlagUVNegative        = "uv_negative"
)

// ValidateReading returns a quality flag for an implausible daily value, or
// "" if the value is plausible. Missing values are never flagged.
func ValidateReading(v models.Variable, value float64) string {
	if value == models.Missing {
		return ""
	}
	switch v {
	case models.Temp, models.TempMax, models.TempMin:
		if value < -90 || value > 60 {
			return FlagTempOutOfRange
		}
	case models.Humidity:
		if value < 0 || value > 100 {
			return FlagHumidityInvalid
		}
	case models.Wind:
		if value < 0 || value > 100 {
			return FlagWindSpeedUnlikely
		}
	case models.Precip:
		if value < 0 {
			return FlagPrecipNegative
		}
		if value > 2000 {
			return FlagPrecipUnlikely
		}
	case models.UVProxy:
		if value < 0 {
			return FlagUVNegative
		}
	}
	return ""
}

// ScreenReadings replaces implausible values in raw with models.Missing so
// that gap filling treats them like absent readings. It returns the number
// of values replaced per flag.
func ScreenReadings(raw models.RawReadings) map[string]int {
	counts := make(map[string]int)
	for _, readings := range raw {
		for v, value := range readings {
			flag := ValidateReading(v, value)
			if flag == "" {
				continue
			}
			readings[v] = models.Missing
			counts[flag]++
			metrics.ReadingsScreened.WithLabelValues(v.String(), flag).Inc()
		}
	}
	return counts
}

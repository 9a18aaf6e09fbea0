package models

import (
	"fmt"
	"strings"
	"time"
)

// Missing is the provider's sentinel for an absent reading.
const Missing = -999.0

// Variable is one of the daily climate variables the engine models.
type Variable int

const (
	Temp Variable = iota
	TempMax
	TempMin
	Precip
	Wind
	Humidity
	UVProxy
)

// AllVariables lists every Variable in declaration order.
var AllVariables = []Variable{Temp, TempMax, TempMin, Precip, Wind, Humidity, UVProxy}

var variableNames = [...]string{
	Temp:     "TEMP",
	TempMax:  "TEMP_MAX",
	TempMin:  "TEMP_MIN",
	Precip:   "PRECIP",
	Wind:     "WIND",
	Humidity: "HUMIDITY",
	UVProxy:  "UV_PROXY",
}

// NASA POWER parameter codes.
var powerParameters = [...]string{
	Temp:     "T2M",
	TempMax:  "T2M_MAX",
	TempMin:  "T2M_MIN",
	Precip:   "PRECTOTCORR",
	Wind:     "WS10M",
	Humidity: "RH2M",
	UVProxy:  "ALLSKY_SFC_UVA",
}

func (v Variable) String() string {
	if !v.Valid() {
		return fmt.Sprintf("Variable(%d)", int(v))
	}
	return variableNames[v]
}

// Valid reports whether v is one of the declared variables.
func (v Variable) Valid() bool {
	return v >= Temp && v <= UVProxy
}

// Parameter returns the NASA POWER parameter code for v.
func (v Variable) Parameter() string {
	if !v.Valid() {
		return ""
	}
	return powerParameters[v]
}

// ParseVariable accepts either the enum name ("TEMP_MAX") or the POWER
// parameter code ("T2M_MAX"), case-insensitively.
func ParseVariable(name string) (Variable, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, v := range AllVariables {
		if upper == variableNames[v] || upper == powerParameters[v] {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown variable %q", name)
}

// Frequency is the sampling period of an ObservationTable.
type Frequency int

const (
	Daily Frequency = iota
	Monthly
)

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "daily"
	case Monthly:
		return "monthly"
	default:
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
}

// Observation is a single reading of one variable on one date.
type Observation struct {
	Date     time.Time
	Variable Variable
	Value    float64
}

// RawReadings is the provider payload shape: date key ("20060102" or
// "2006-01-02") to per-variable values, with Missing marking gaps.
type RawReadings map[string]map[Variable]float64

// ForecastPoint is a forecast mean with its confidence band.
// Lower <= Mean <= Upper always holds.
type ForecastPoint struct {
	Date  time.Time
	Mean  float64
	Lower float64
	Upper float64
}

// DailyForecastBundle holds one ForecastPoint per forecast variable for a
// single target date.
type DailyForecastBundle struct {
	Date   time.Time
	Points map[Variable]ForecastPoint
}

// Mean returns the point forecast for v, if v was forecast.
func (b DailyForecastBundle) Mean(v Variable) (float64, bool) {
	p, ok := b.Points[v]
	if !ok {
		return 0, false
	}
	return p.Mean, true
}

// Baseline is the day-of-year climatological average.
type Baseline struct {
	AvgHigh float64
	AvgLow  float64
}

// HourlyPoint is one sampled hour of a synthetic intraday profile.
type HourlyPoint struct {
	Hour        int
	Label       string
	Temperature float64
	RainChance  int
}

// HourlyProfile is the 8-point synthetic intraday curve for one day.
type HourlyProfile struct {
	Points []HourlyPoint
}

// Labels returns the hour labels in order.
func (p HourlyProfile) Labels() []string {
	out := make([]string, len(p.Points))
	for i, pt := range p.Points {
		out[i] = pt.Label
	}
	return out
}

// Temperatures returns the sampled temperatures in order.
func (p HourlyProfile) Temperatures() []float64 {
	out := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		out[i] = pt.Temperature
	}
	return out
}

// RainChances returns the sampled rain chances in order.
func (p HourlyProfile) RainChances() []int {
	out := make([]int, len(p.Points))
	for i, pt := range p.Points {
		out[i] = pt.RainChance
	}
	return out
}

// Location is a point on the globe.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Key returns a stable string identifier for the location.
func (l Location) Key() string {
	return fmt.Sprintf("%.4f,%.4f", l.Latitude, l.Longitude)
}

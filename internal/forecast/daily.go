package forecast

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/lox/paradeweather/internal/models"
)

var requiredDaily = []models.Variable{models.Temp, models.TempMax, models.TempMin}

// DailyRequest asks for a forecast of a single day.
type DailyRequest struct {
	Latitude  float64
	Longitude float64
	Date      time.Time
}

// DailyForecast is the dashboard payload for one day.
type DailyForecast struct {
	Date            string          `json:"date"`
	Overview        Overview        `json:"main_overview"`
	Metrics         DetailedMetrics `json:"detailed_metrics"`
	HourlyChart     Chart           `json:"hourly_forecast_chart"`
	HistoricalChart Chart           `json:"historical_comparison_chart"`
	Diagnostics     Diagnostics     `json:"diagnostics"`
}

// Overview is the headline block. RainChance is nil when precipitation
// could not be forecast; FeelsLike is nil without humidity.
type Overview struct {
	Temp       float64  `json:"temp"`
	Condition  string   `json:"condition"`
	HighTemp   float64  `json:"high_temp"`
	LowTemp    float64  `json:"low_temp"`
	FeelsLike  *float64 `json:"feels_like"`
	RainChance *int     `json:"rain_chance"`
}

// DetailedMetrics holds secondary values. Nil fields were not forecast.
type DetailedMetrics struct {
	PrecipitationMM *float64 `json:"precipitation_mm"`
	HumidityPercent *int     `json:"humidity_percent"`
	WindSpeedKmh    *int     `json:"wind_speed_kmh"`
	UVIndex         *int     `json:"uv_index"`
	VisibilityKm    int      `json:"visibility_km"`
}

// Chart is a labelled set of datasets. Nil data entries render as gaps.
type Chart struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type Dataset struct {
	Label string     `json:"label"`
	Data  []*float64 `json:"data"`
}

// ForecastDay forecasts every variable for req.Date and assembles the
// dashboard payload. The target must be after the last day the provider can
// have data for (yesterday); otherwise ErrInvalidTargetDate is returned
// before anything is fetched.
func (o *Orchestrator) ForecastDay(ctx context.Context, req DailyRequest) (result *DailyForecast, err error) {
	defer func() { recordOutcome("daily", err) }()

	target := time.Date(req.Date.Year(), req.Date.Month(), req.Date.Day(), 0, 0, 0, 0, time.UTC)
	end := o.windowEnd()
	if !target.After(end) {
		return nil, fmt.Errorf("%w: %s is not after %s", ErrInvalidTargetDate,
			target.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	table, err := o.fetch(ctx, req.Latitude, req.Longitude, models.AllVariables)
	if err != nil {
		return nil, err
	}
	if !target.After(table.LastDate()) {
		return nil, fmt.Errorf("%w: %s is not after last observation %s", ErrInvalidTargetDate,
			target.Format(time.DateOnly), table.LastDate().Format(time.DateOnly))
	}

	var diag Diagnostics
	filled, vars, err := impute(table, requiredDaily, &diag)
	if err != nil {
		return nil, err
	}

	steps := filled.PeriodsBetween(target)
	diag.Steps = steps
	diag.LastObserved = filled.LastDate().Format(time.DateOnly)

	fits, err := o.fitAll(ctx, filled, vars, steps, o.cfg.Daily, "daily", &diag)
	if err != nil {
		return nil, err
	}

	bundle := models.DailyForecastBundle{Date: target, Points: make(map[models.Variable]models.ForecastPoint, len(fits))}
	for v, fc := range fits {
		p := fc.Predictions[steps-1]
		bundle.Points[v] = models.ForecastPoint{Date: target, Mean: p.Mean, Lower: p.Lower, Upper: p.Upper}
	}

	baseline, ok := HistoricalBaseline(filled, target)
	if !ok {
		log.Printf("forecast: no day-of-year baseline for %s", target.Format(time.DateOnly))
	}

	result = assembleDaily(bundle, baseline, ok)
	result.Diagnostics = diag
	log.Printf("forecast: daily %s at %.4f,%.4f: %d steps, %d variables",
		result.Date, req.Latitude, req.Longitude, steps, len(fits))
	return result, nil
}

func assembleDaily(b models.DailyForecastBundle, baseline models.Baseline, hasBaseline bool) *DailyForecast {
	temp, _ := b.Mean(models.Temp)
	high, _ := b.Mean(models.TempMax)
	low, _ := b.Mean(models.TempMin)

	out := &DailyForecast{
		Date: b.Date.Format(time.DateOnly),
		Overview: Overview{
			Temp:     round(temp, 1),
			HighTemp: round(high, 1),
			LowTemp:  round(low, 1),
		},
		Metrics: DetailedMetrics{VisibilityKm: VisibilityKm},
	}

	rainChance := 0
	if precip, ok := b.Mean(models.Precip); ok {
		rainChance = RainChance(precip)
		out.Overview.RainChance = &rainChance
		out.Metrics.PrecipitationMM = ptr(math.Max(0, round(precip, 1)))
	}
	if humidity, ok := b.Mean(models.Humidity); ok {
		out.Overview.FeelsLike = ptr(round(FeelsLike(temp, humidity), 2))
		out.Metrics.HumidityPercent = ptr(int(humidity))
	}
	if wind, ok := b.Mean(models.Wind); ok {
		out.Metrics.WindSpeedKmh = ptr(int(WindKmh(wind)))
	}
	if uva, ok := b.Mean(models.UVProxy); ok {
		out.Metrics.UVIndex = ptr(UVIndex(uva))
	}
	out.Overview.Condition = OverviewCondition(rainChance, temp)

	profile := SimulateHourly(low, high, rainChance)
	temps := make([]*float64, len(profile.Points))
	rain := make([]*float64, len(profile.Points))
	for i, p := range profile.Points {
		temps[i] = ptr(p.Temperature)
		rain[i] = ptr(float64(p.RainChance))
	}
	out.HourlyChart = Chart{
		Labels: profile.Labels(),
		Datasets: []Dataset{
			{Label: "Temperature (°C)", Data: temps},
			{Label: "Rain Chance (%)", Data: rain},
		},
	}

	var avgHigh, avgLow *float64
	if hasBaseline {
		avgHigh, avgLow = ptr(baseline.AvgHigh), ptr(baseline.AvgLow)
	}
	out.HistoricalChart = Chart{
		Labels: []string{"Forecasted", "Historical Average"},
		Datasets: []Dataset{
			{Label: "High Temp (°C)", Data: []*float64{ptr(round(high, 1)), avgHigh}},
			{Label: "Low Temp (°C)", Data: []*float64{ptr(round(low, 1)), avgLow}},
		},
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}

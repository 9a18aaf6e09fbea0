package forecast

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lox/paradeweather/internal/models"
)

// trendMonths is how many months after the target the trend covers.
const trendMonths = 5

const monthLayout = "2006-01"

var (
	monthlyVariables = []models.Variable{models.Temp, models.Precip, models.Wind, models.Humidity}
	requiredMonthly  = []models.Variable{models.Temp}
)

// MonthlyRequest asks for a forecast of a calendar month. Only the year and
// month of Month are used.
type MonthlyRequest struct {
	Latitude  float64
	Longitude float64
	Month     time.Time
}

// MonthlyForecast is the long-horizon payload for one month. Variable
// blocks other than Temperature are nil when that variable was skipped.
type MonthlyForecast struct {
	Date        string            `json:"date"`
	Temperature *VariableForecast `json:"temperature"`
	Rainfall    *VariableForecast `json:"rainfall,omitempty"`
	WindSpeed   *VariableForecast `json:"windspeed,omitempty"`
	Humidity    *VariableForecast `json:"humidity,omitempty"`
	Condition   string            `json:"condition"`
	Trend       []TrendPoint      `json:"forecast_trend"`
	Diagnostics Diagnostics       `json:"diagnostics"`
}

// VariableForecast is one variable's monthly value with its band and label.
type VariableForecast struct {
	Value     float64 `json:"value"`
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
	Condition Label   `json:"condition"`
}

// TrendPoint is one month after the target month.
type TrendPoint struct {
	Date                string   `json:"date"`
	TemperatureForecast float64  `json:"temperature_forecast"`
	TemperatureLower    float64  `json:"temperature_lower"`
	TemperatureUpper    float64  `json:"temperature_upper"`
	RainfallForecast    *float64 `json:"rainfall_forecast"`
}

// ForecastMonth forecasts monthly temperature, rainfall, wind and humidity
// for req.Month. Daily history is gap-filled and aggregated to calendar
// months (precipitation summed to mm/month, partial months dropped). The
// target month must be after the last complete month the provider can
// have data for.
func (o *Orchestrator) ForecastMonth(ctx context.Context, req MonthlyRequest) (result *MonthlyForecast, err error) {
	defer func() { recordOutcome("monthly", err) }()

	target := time.Date(req.Month.Year(), req.Month.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastComplete := lastCompleteMonth(o.windowEnd())
	if !target.After(lastComplete) {
		return nil, fmt.Errorf("%w: %s is not after %s", ErrInvalidTargetDate,
			target.Format(monthLayout), lastComplete.Format(monthLayout))
	}

	daily, err := o.fetch(ctx, req.Latitude, req.Longitude, monthlyVariables)
	if err != nil {
		return nil, err
	}
	// Leading daily gaps stay NaN and are ignored by the monthly aggregate;
	// a wholly missing leading month is caught by the monthly fill below.
	filledDaily, err := FillGaps(daily)
	var ierr *ImputationError
	if err != nil && !errors.As(err, &ierr) {
		return nil, fmt.Errorf("fill gaps: %w", err)
	}
	if ierr != nil {
		log.Printf("forecast: daily history has leading gaps: %v", ierr)
	}
	table, err := filledDaily.ResampleMonthly(models.MonthlyOptions{
		Sum:            []models.Variable{models.Precip},
		DropIncomplete: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	if !target.After(table.LastDate()) {
		return nil, fmt.Errorf("%w: %s is not after last complete month %s", ErrInvalidTargetDate,
			target.Format(monthLayout), table.LastDate().Format(monthLayout))
	}

	var diag Diagnostics
	filled, vars, err := impute(table, requiredMonthly, &diag)
	if err != nil {
		return nil, err
	}

	steps := filled.PeriodsBetween(target)
	diag.Steps = steps
	diag.LastObserved = filled.LastDate().Format(monthLayout)

	fits, err := o.fitAll(ctx, filled, vars, steps+trendMonths, o.cfg.Monthly, "monthly", &diag)
	if err != nil {
		return nil, err
	}

	result = &MonthlyForecast{Date: target.Format(monthLayout), Diagnostics: diag}
	labels := make(map[models.Variable]Label, len(fits))
	for _, v := range monthlyVariables {
		fc, ok := fits[v]
		if !ok {
			continue
		}
		p := fc.Predictions[steps-1]
		vf := &VariableForecast{
			Value: round(p.Mean, 2),
			Lower: round(p.Lower, 2),
			Upper: round(p.Upper, 2),
		}
		vf.Condition = Classify(v, vf.Value)
		labels[v] = vf.Condition

		switch v {
		case models.Temp:
			result.Temperature = vf
		case models.Precip:
			result.Rainfall = vf
		case models.Wind:
			result.WindSpeed = vf
		case models.Humidity:
			result.Humidity = vf
		}
	}
	result.Condition = OverallLabel(labels)
	result.Trend = monthlyTrend(target, steps, fits[models.Temp], fits[models.Precip])

	log.Printf("forecast: monthly %s at %.4f,%.4f: %d steps, %s",
		result.Date, req.Latitude, req.Longitude, steps, result.Condition)
	return result, nil
}

// monthlyTrend returns the months following the target. precip may be nil.
func monthlyTrend(target time.Time, steps int, temp, precip *SeasonalForecast) []TrendPoint {
	var out []TrendPoint
	for i := steps; i < len(temp.Predictions) && len(out) < trendMonths; i++ {
		p := temp.Predictions[i]
		tp := TrendPoint{
			Date:                target.AddDate(0, i-steps+1, 0).Format(monthLayout),
			TemperatureForecast: round(p.Mean, 1),
			TemperatureLower:    round(p.Lower, 1),
			TemperatureUpper:    round(p.Upper, 1),
		}
		if precip != nil && i < len(precip.Predictions) {
			tp.RainfallForecast = ptr(round(precip.Predictions[i].Mean, 1))
		}
		out = append(out, tp)
	}
	return out
}

// lastCompleteMonth returns the first day of the last calendar month fully
// covered by days up to and including end.
func lastCompleteMonth(end time.Time) time.Time {
	m := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	if end.AddDate(0, 0, 1).Month() == end.Month() {
		m = m.AddDate(0, -1, 0)
	}
	return m
}

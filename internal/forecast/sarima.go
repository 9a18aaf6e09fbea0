package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	defaultMaxIterations   = 200
	defaultConfidenceLevel = 0.95

	// objectivePenalty stands in for non-finite residual sums so the
	// simplex can move away from explosive parameter regions.
	objectivePenalty = 1e300
)

// Order is a non-seasonal (p, d, q) model order.
type Order struct {
	P, D, Q int
}

// SeasonalOrder is a seasonal (P, D, Q, s) model order.
type SeasonalOrder struct {
	P, D, Q int
	Period  int
}

// SeasonalConfig fully describes one seasonal ARIMA fit. It carries every
// knob the fitter reads; there is no other state.
type SeasonalConfig struct {
	Order                Order
	Seasonal             SeasonalOrder
	EnforceStationarity  bool
	EnforceInvertibility bool
	MaxIterations        int
	ConfidenceLevel      float64
}

// MonthlyConfig is (1,1,1)x(1,1,1,12) on monthly aggregates.
func MonthlyConfig() SeasonalConfig {
	return SeasonalConfig{
		Order:                Order{P: 1, D: 1, Q: 1},
		Seasonal:             SeasonalOrder{P: 1, D: 1, Q: 1, Period: 12},
		EnforceStationarity:  true,
		EnforceInvertibility: true,
		MaxIterations:        defaultMaxIterations,
		ConfidenceLevel:      defaultConfidenceLevel,
	}
}

// DailyConfig is (1,1,1)x(1,1,1,7) on daily values, with stationarity and
// invertibility left unconstrained for noisy series.
func DailyConfig() SeasonalConfig {
	return SeasonalConfig{
		Order:                Order{P: 1, D: 1, Q: 1},
		Seasonal:             SeasonalOrder{P: 1, D: 1, Q: 1, Period: 7},
		EnforceStationarity:  false,
		EnforceInvertibility: false,
		MaxIterations:        defaultMaxIterations,
		ConfidenceLevel:      defaultConfidenceLevel,
	}
}

func (c SeasonalConfig) withDefaults() SeasonalConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = defaultMaxIterations
	}
	if c.ConfidenceLevel == 0 {
		c.ConfidenceLevel = defaultConfidenceLevel
	}
	return c
}

func (c SeasonalConfig) validate() error {
	o, s := c.Order, c.Seasonal
	if o.P < 0 || o.D < 0 || o.Q < 0 || s.P < 0 || s.D < 0 || s.Q < 0 {
		return fmt.Errorf("negative model order %v x %v", o, s)
	}
	if (s.P > 0 || s.D > 0 || s.Q > 0) && s.Period < 2 {
		return fmt.Errorf("seasonal period %d must be at least 2", s.Period)
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence level %v outside (0, 1)", c.ConfidenceLevel)
	}
	return nil
}

func (c SeasonalConfig) numParams() int {
	return c.Order.P + c.Seasonal.P + c.Order.Q + c.Seasonal.Q
}

// Prediction is one forecast period: mean and confidence bounds.
type Prediction struct {
	Mean  float64
	Lower float64
	Upper float64
}

// SeasonalFit is a fitted multiplicative seasonal ARIMA model.
type SeasonalFit struct {
	Config      SeasonalConfig
	AR          []float64
	SeasonalAR  []float64
	MA          []float64
	SeasonalMA  []float64
	Sigma2      float64
	Iterations  int
	Evaluations int
	Status      string
	// Degraded is set when the optimiser stopped before converging. The
	// best iterate is still used.
	Degraded bool

	series    []float64
	residuals []float64
	arPoly    []float64 // full AR polynomial including differencing, arPoly[0] == 1
	maPoly    []float64 // full MA polynomial, maPoly[0] == 1
}

// FitSeasonal fits cfg to series by minimising the conditional sum of
// squared one-step residuals with Nelder-Mead, bounded by cfg.MaxIterations.
// The series is copied. Fitting is deterministic.
func FitSeasonal(series []float64, cfg SeasonalConfig) (*SeasonalFit, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: index %d", ErrNonFiniteSeries, i)
		}
	}

	start := cfg.Order.D + cfg.Seasonal.D*cfg.Seasonal.Period +
		cfg.Order.P + cfg.Seasonal.P*cfg.Seasonal.Period
	dim := cfg.numParams()
	if len(series)-start < 2*dim+1 {
		return nil, fmt.Errorf("%w: %d values, need more than %d", ErrSeriesTooShort, len(series), start+2*dim)
	}

	y := append([]float64(nil), series...)
	fit := &SeasonalFit{Config: cfg, series: y}

	x := make([]float64, dim)
	if dim > 0 {
		problem := optimize.Problem{
			Func: func(x []float64) float64 {
				ar, ma := cfg.polynomials(x)
				css, n := conditionalSumSquares(y, ar, ma, nil)
				obj := css / float64(n)
				if math.IsNaN(obj) || math.IsInf(obj, 0) || obj > objectivePenalty {
					return objectivePenalty
				}
				return obj
			},
		}
		settings := &optimize.Settings{
			MajorIterations: cfg.MaxIterations,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-10,
				Relative:   1e-10,
				Iterations: 50,
			},
		}
		result, err := optimize.Minimize(problem, make([]float64, dim), settings, &optimize.NelderMead{})
		if result == nil {
			return nil, fmt.Errorf("minimize: %w", err)
		}
		copy(x, result.X)
		fit.Iterations = result.Stats.MajorIterations
		fit.Evaluations = result.Stats.FuncEvaluations
		fit.Status = result.Status.String()
		fit.Degraded = err != nil || result.Status.Early()
	} else {
		fit.Status = optimize.Success.String()
	}

	fit.AR, fit.SeasonalAR, fit.MA, fit.SeasonalMA = cfg.coefficients(x)
	fit.arPoly, fit.maPoly = cfg.polynomials(x)
	fit.residuals = make([]float64, len(y))
	css, n := conditionalSumSquares(y, fit.arPoly, fit.maPoly, fit.residuals)
	fit.Sigma2 = css / float64(n)
	if math.IsNaN(fit.Sigma2) || math.IsInf(fit.Sigma2, 0) {
		return nil, fmt.Errorf("fit: residual variance is not finite")
	}
	return fit, nil
}

// Predict forecasts steps periods past the end of the fitted series.
// Bounds come from the psi-weights of the integrated model and widen
// monotonically with horizon.
func (f *SeasonalFit) Predict(steps int) ([]Prediction, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSteps, steps)
	}
	n := len(f.series)
	y := make([]float64, n+steps)
	copy(y, f.series)
	e := make([]float64, n+steps)
	copy(e, f.residuals)

	for t := n; t < n+steps; t++ {
		var v float64
		for i := 1; i < len(f.arPoly) && t-i >= 0; i++ {
			v -= f.arPoly[i] * y[t-i]
		}
		for j := 1; j < len(f.maPoly) && t-j >= 0; j++ {
			v += f.maPoly[j] * e[t-j]
		}
		y[t] = v
	}

	psi := psiWeights(f.arPoly, f.maPoly, steps)
	z := distuv.UnitNormal.Quantile(0.5 + f.Config.ConfidenceLevel/2)

	out := make([]Prediction, steps)
	var cum float64
	for h := 0; h < steps; h++ {
		cum += psi[h] * psi[h]
		half := z * math.Sqrt(f.Sigma2*cum)
		if math.IsNaN(half) || half < 0 {
			half = 0
		}
		mean := y[n+h]
		out[h] = Prediction{Mean: mean, Lower: mean - half, Upper: mean + half}
	}
	return out, nil
}

// SeasonalForecast is the output of one Forecast call.
type SeasonalForecast struct {
	Predictions []Prediction
	Fit         *SeasonalFit
}

// Forecaster fits and forecasts a single series. Implementations must be
// pure functions of their arguments so results can be memoised by input.
type Forecaster interface {
	Forecast(series []float64, steps int, cfg SeasonalConfig) (*SeasonalForecast, error)
}

// SeasonalForecaster is the default Forecaster.
type SeasonalForecaster struct{}

// Forecast fits cfg to series and predicts steps periods ahead.
func (SeasonalForecaster) Forecast(series []float64, steps int, cfg SeasonalConfig) (*SeasonalForecast, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSteps, steps)
	}
	fit, err := FitSeasonal(series, cfg)
	if err != nil {
		return nil, err
	}
	preds, err := fit.Predict(steps)
	if err != nil {
		return nil, err
	}
	return &SeasonalForecast{Predictions: preds, Fit: fit}, nil
}

// coefficients maps optimiser coordinates to model coefficients, applying
// the stationarity and invertibility transforms when enabled.
func (c SeasonalConfig) coefficients(x []float64) (ar, sar, ma, sma []float64) {
	p, sp, q, sq := c.Order.P, c.Seasonal.P, c.Order.Q, c.Seasonal.Q
	ar = x[:p]
	sar = x[p : p+sp]
	ma = x[p+sp : p+sp+q]
	sma = x[p+sp+q : p+sp+q+sq]
	if c.EnforceStationarity {
		ar, sar = constrainStationary(ar), constrainStationary(sar)
	} else {
		ar, sar = append([]float64(nil), ar...), append([]float64(nil), sar...)
	}
	if c.EnforceInvertibility {
		ma, sma = constrainInvertible(ma), constrainInvertible(sma)
	} else {
		ma, sma = append([]float64(nil), ma...), append([]float64(nil), sma...)
	}
	return ar, sar, ma, sma
}

// polynomials returns the full AR polynomial
// phi(B) Phi(B^s) (1-B)^d (1-B^s)^D and the MA polynomial
// theta(B) Theta(B^s), both with a leading 1.
func (c SeasonalConfig) polynomials(x []float64) (ar, ma []float64) {
	phi, sphi, theta, stheta := c.coefficients(x)
	s := c.Seasonal.Period

	ar = polyMul(lagPoly(phi, 1, -1), lagPoly(sphi, s, -1))
	for i := 0; i < c.Order.D; i++ {
		ar = polyMul(ar, []float64{1, -1})
	}
	for i := 0; i < c.Seasonal.D; i++ {
		ar = polyMul(ar, lagPoly([]float64{1}, s, -1))
	}

	ma = polyMul(lagPoly(theta, 1, 1), lagPoly(stheta, s, 1))
	return ar, ma
}

// lagPoly builds 1 + sign*(c1 B^step + c2 B^(2 step) + ...).
func lagPoly(coefs []float64, step int, sign float64) []float64 {
	out := make([]float64, len(coefs)*step+1)
	out[0] = 1
	for i, c := range coefs {
		out[(i+1)*step] = sign * c
	}
	return out
}

func polyMul(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, av := range a {
		if av == 0 {
			continue
		}
		for j, bv := range b {
			out[i+j] += av * bv
		}
	}
	return out
}

// conditionalSumSquares runs the residual recursion
// e_t = ar(B) y_t - sum_{j>=1} ma_j e_{t-j}, conditioning on the first
// len(ar)-1 observations. If resid is non-nil it receives the residuals.
func conditionalSumSquares(y, ar, ma, resid []float64) (float64, int) {
	start := len(ar) - 1
	e := resid
	if e == nil {
		e = make([]float64, len(y))
	}
	var css float64
	n := 0
	for t := start; t < len(y); t++ {
		v := y[t]
		for i := 1; i < len(ar); i++ {
			v += ar[i] * y[t-i]
		}
		for j := 1; j < len(ma) && t-j >= start; j++ {
			v -= ma[j] * e[t-j]
		}
		e[t] = v
		css += v * v
		n++
	}
	return css, n
}

// psiWeights returns the first n coefficients of ma(B)/ar(B).
func psiWeights(ar, ma []float64, n int) []float64 {
	psi := make([]float64, n)
	psi[0] = 1
	for k := 1; k < n; k++ {
		var v float64
		if k < len(ma) {
			v = ma[k]
		}
		for i := 1; i < len(ar) && i <= k; i++ {
			v -= ar[i] * psi[k-i]
		}
		psi[k] = v
	}
	return psi
}

// constrainStationary maps unconstrained values to the coefficients of a
// stationary AR polynomial (x_t = sum phi_i x_{t-i}) by treating them as
// partial autocorrelations in (-1, 1) and running the Durbin-Levinson
// recursion.
func constrainStationary(u []float64) []float64 {
	phi := make([]float64, len(u))
	prev := make([]float64, len(u))
	for k, uk := range u {
		r := uk / math.Sqrt(1+uk*uk)
		copy(prev, phi[:k])
		for i := 0; i < k; i++ {
			phi[i] = prev[i] - r*prev[k-1-i]
		}
		phi[k] = r
	}
	return phi
}

// constrainInvertible maps unconstrained values to the coefficients of an
// invertible MA polynomial 1 + sum theta_j B^j.
func constrainInvertible(u []float64) []float64 {
	phi := constrainStationary(u)
	for i := range phi {
		phi[i] = -phi[i]
	}
	return phi
}

package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// ObservationTable is a contiguous, date-ordered table with one column per
// variable. It is immutable: constructors copy their inputs and accessors
// return copies.
type ObservationTable struct {
	freq    Frequency
	dates   []time.Time
	columns map[Variable][]float64
}

// NewObservationTable validates and copies dates and columns. Dates must be
// strictly increasing and contiguous for freq (consecutive days, or
// consecutive calendar months), and every column must match len(dates).
func NewObservationTable(freq Frequency, dates []time.Time, columns map[Variable][]float64) (*ObservationTable, error) {
	if len(dates) == 0 {
		return nil, fmt.Errorf("observation table: no dates")
	}
	t := &ObservationTable{
		freq:    freq,
		dates:   make([]time.Time, len(dates)),
		columns: make(map[Variable][]float64, len(columns)),
	}
	for i, d := range dates {
		t.dates[i] = truncateDate(d)
		if freq == Monthly {
			t.dates[i] = monthStart(d)
		}
		if i == 0 {
			continue
		}
		want := t.step(t.dates[i-1], 1)
		if !t.dates[i].Equal(want) {
			return nil, fmt.Errorf("observation table: date %s follows %s, want %s",
				t.dates[i].Format("2006-01-02"), t.dates[i-1].Format("2006-01-02"), want.Format("2006-01-02"))
		}
	}
	for v, col := range columns {
		if !v.Valid() {
			return nil, fmt.Errorf("observation table: invalid variable %d", int(v))
		}
		if len(col) != len(dates) {
			return nil, fmt.Errorf("observation table: column %s has %d values, want %d", v, len(col), len(dates))
		}
		t.columns[v] = append([]float64(nil), col...)
	}
	return t, nil
}

// TableFromObservations builds a table from individual observations.
// Duplicate (date, variable) pairs are rejected. Dates with no reading for a
// variable present elsewhere are filled with Missing.
func TableFromObservations(freq Frequency, obs []Observation) (*ObservationTable, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("observation table: no observations")
	}
	type key struct {
		date time.Time
		v    Variable
	}
	seen := make(map[key]float64, len(obs))
	first, last := truncateDate(obs[0].Date), truncateDate(obs[0].Date)
	for _, o := range obs {
		d := truncateDate(o.Date)
		if freq == Monthly {
			d = monthStart(d)
		}
		k := key{d, o.Variable}
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("observation table: duplicate %s on %s", o.Variable, d.Format("2006-01-02"))
		}
		seen[k] = o.Value
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	if freq == Monthly {
		first, last = monthStart(first), monthStart(last)
	}

	probe := &ObservationTable{freq: freq}
	var dates []time.Time
	for d := first; !d.After(last); d = probe.step(d, 1) {
		dates = append(dates, d)
	}

	columns := make(map[Variable][]float64)
	for k := range seen {
		if _, ok := columns[k.v]; !ok {
			col := make([]float64, len(dates))
			for i := range col {
				col[i] = Missing
			}
			columns[k.v] = col
		}
	}
	index := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		index[d] = i
	}
	for k, val := range seen {
		columns[k.v][index[k.date]] = val
	}
	return NewObservationTable(freq, dates, columns)
}

// TableFromRaw converts a provider payload into a daily table restricted to
// vars. Dates absent from the payload, and variables absent on a date, are
// recorded as Missing so that gap filling handles them uniformly.
func TableFromRaw(raw RawReadings, vars []Variable) (*ObservationTable, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("observation table: empty payload")
	}
	var obs []Observation
	for key, readings := range raw {
		d, err := ParseDateKey(key)
		if err != nil {
			return nil, err
		}
		for _, v := range vars {
			val, ok := readings[v]
			if !ok {
				continue
			}
			obs = append(obs, Observation{Date: d, Variable: v, Value: val})
		}
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("observation table: payload has none of the requested variables")
	}
	t, err := TableFromObservations(Daily, obs)
	if err != nil {
		return nil, err
	}
	for _, v := range vars {
		if _, ok := t.columns[v]; !ok {
			return nil, fmt.Errorf("observation table: payload missing variable %s", v)
		}
	}
	return t, nil
}

// ParseDateKey parses "20060102" or "2006-01-02" as a UTC date.
func ParseDateKey(key string) (time.Time, error) {
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if d, err := time.Parse(layout, key); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date key %q", key)
}

// Frequency returns the table's sampling period.
func (t *ObservationTable) Frequency() Frequency { return t.freq }

// Len returns the number of rows.
func (t *ObservationTable) Len() int { return len(t.dates) }

// Dates returns a copy of the row dates.
func (t *ObservationTable) Dates() []time.Time {
	return append([]time.Time(nil), t.dates...)
}

// Date returns the date of row i.
func (t *ObservationTable) Date(i int) time.Time { return t.dates[i] }

// FirstDate returns the earliest row date.
func (t *ObservationTable) FirstDate() time.Time { return t.dates[0] }

// LastDate returns the latest row date.
func (t *ObservationTable) LastDate() time.Time { return t.dates[len(t.dates)-1] }

// Has reports whether the table carries a column for v.
func (t *ObservationTable) Has(v Variable) bool {
	_, ok := t.columns[v]
	return ok
}

// Variables returns the table's variables in declaration order.
func (t *ObservationTable) Variables() []Variable {
	out := make([]Variable, 0, len(t.columns))
	for v := range t.columns {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Series returns a copy of the column for v.
func (t *ObservationTable) Series(v Variable) ([]float64, bool) {
	col, ok := t.columns[v]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), col...), true
}

// Value returns the value of v at row i, or NaN if v is absent.
func (t *ObservationTable) Value(v Variable, i int) float64 {
	col, ok := t.columns[v]
	if !ok {
		return math.NaN()
	}
	return col[i]
}

// Observations flattens the table back into individual readings.
func (t *ObservationTable) Observations() []Observation {
	var out []Observation
	for i, d := range t.dates {
		for _, v := range t.Variables() {
			out = append(out, Observation{Date: d, Variable: v, Value: t.columns[v][i]})
		}
	}
	return out
}

// WithColumns returns a new table with the same dates and the given columns
// replacing or extending the existing ones.
func (t *ObservationTable) WithColumns(columns map[Variable][]float64) (*ObservationTable, error) {
	merged := make(map[Variable][]float64, len(t.columns)+len(columns))
	for v, col := range t.columns {
		merged[v] = col
	}
	for v, col := range columns {
		merged[v] = col
	}
	return NewObservationTable(t.freq, t.dates, merged)
}

// Step advances d by n periods of the table's frequency.
func (t *ObservationTable) Step(d time.Time, n int) time.Time {
	return t.step(d, n)
}

// PeriodsBetween returns the whole number of periods from the table's last
// date to target. It is <= 0 when target is not after the last date.
func (t *ObservationTable) PeriodsBetween(target time.Time) int {
	target = truncateDate(target)
	last := t.LastDate()
	if t.freq == Monthly {
		return MonthsBetween(last, target)
	}
	return int(target.Sub(last).Hours() / 24)
}

// MonthlyOptions tunes ResampleMonthly.
type MonthlyOptions struct {
	// Sum lists variables aggregated by total rather than mean.
	Sum []Variable
	// DropIncomplete removes leading and trailing months not fully covered
	// by daily rows.
	DropIncomplete bool
}

// ResampleMonthly aggregates a daily table into calendar months keyed by
// the first of the month. NaN and Missing values are ignored; a month with
// no valid values for a variable yields NaN.
func (t *ObservationTable) ResampleMonthly(opts MonthlyOptions) (*ObservationTable, error) {
	if t.freq != Daily {
		return nil, fmt.Errorf("resample monthly: table is %s", t.freq)
	}
	sum := make(map[Variable]bool, len(opts.Sum))
	for _, v := range opts.Sum {
		sum[v] = true
	}

	first := monthStart(t.FirstDate())
	last := monthStart(t.LastDate())
	if opts.DropIncomplete {
		if !t.FirstDate().Equal(first) {
			first = first.AddDate(0, 1, 0)
		}
		if !t.LastDate().AddDate(0, 0, 1).Equal(last.AddDate(0, 1, 0)) {
			last = last.AddDate(0, -1, 0)
		}
	}
	if last.Before(first) {
		return nil, fmt.Errorf("resample monthly: no complete months between %s and %s",
			t.FirstDate().Format("2006-01-02"), t.LastDate().Format("2006-01-02"))
	}

	var months []time.Time
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
	}
	index := make(map[time.Time]int, len(months))
	for i, m := range months {
		index[m] = i
	}

	columns := make(map[Variable][]float64, len(t.columns))
	for v, col := range t.columns {
		totals := make([]float64, len(months))
		counts := make([]int, len(months))
		for i, d := range t.dates {
			m, ok := index[monthStart(d)]
			if !ok {
				continue
			}
			val := col[i]
			if math.IsNaN(val) || val == Missing {
				continue
			}
			totals[m] += val
			counts[m]++
		}
		out := make([]float64, len(months))
		for i := range out {
			switch {
			case counts[i] == 0:
				out[i] = math.NaN()
			case sum[v]:
				out[i] = totals[i]
			default:
				out[i] = totals[i] / float64(counts[i])
			}
		}
		columns[v] = out
	}
	return NewObservationTable(Monthly, months, columns)
}

func (t *ObservationTable) step(d time.Time, n int) time.Time {
	if t.freq == Monthly {
		return monthStart(d).AddDate(0, n, 0)
	}
	return d.AddDate(0, 0, n)
}

// MonthsBetween returns the calendar-month distance from a to b.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

func truncateDate(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStart(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

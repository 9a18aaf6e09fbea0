package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateHourlyShape(t *testing.T) {
	tests := []struct {
		name       string
		low, high  float64
		rainChance int
	}{
		{name: "typical day", low: 10, high: 24, rainChance: 40},
		{name: "flat day", low: 8, high: 8, rainChance: 8},
		{name: "no rain", low: -3, high: 5, rainChance: 0},
		{name: "certain rain", low: 15, high: 20, rainChance: 100},
		{name: "inverted inputs", low: 25, high: 12, rainChance: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := SimulateHourly(tt.low, tt.high, tt.rainChance)
			require.Len(t, p.Points, 8)
			assert.Len(t, p.Labels(), 8)
			assert.Len(t, p.Temperatures(), 8)
			assert.Len(t, p.RainChances(), 8)
			for _, rc := range p.RainChances() {
				assert.GreaterOrEqual(t, rc, 0)
				assert.LessOrEqual(t, rc, 95)
			}
		})
	}
}

func TestSimulateHourlyLabels(t *testing.T) {
	p := SimulateHourly(10, 20, 30)
	assert.Equal(t, []string{"8am", "10am", "12pm", "2pm", "4pm", "6pm", "8pm", "10pm"}, p.Labels())
}

func TestSimulateHourlyFlatDay(t *testing.T) {
	p := SimulateHourly(8, 8, 8)
	for _, temp := range p.Temperatures() {
		assert.Equal(t, 8.0, temp)
	}
}

func TestSimulateHourlyCurve(t *testing.T) {
	p := SimulateHourly(10, 20, 50)
	temps := p.Temperatures()

	// 14:00 is one hour from the 15:00 peak.
	assert.InDelta(t, 19.8, temps[3], 0.05)
	for _, temp := range temps {
		assert.GreaterOrEqual(t, temp, 10.0)
		assert.LessOrEqual(t, temp, 20.0)
	}

	// Rain peaks at noon and is capped.
	rain := p.RainChances()
	assert.Equal(t, 75, rain[2])
	assert.Less(t, rain[7], rain[2])
	assert.Equal(t, 95, SimulateHourly(10, 20, 100).RainChances()[2])
}

func TestSimulateHourlySwapsInvertedRange(t *testing.T) {
	assert.Equal(t, SimulateHourly(12, 25, 60), SimulateHourly(25, 12, 60))
}

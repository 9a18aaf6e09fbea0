package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeelsLike(t *testing.T) {
	tests := []struct {
		name     string
		temp     float64
		humidity float64
		check    func(t *testing.T, got float64)
	}{
		{
			name: "below threshold is unchanged",
			temp: 20, humidity: 90,
			check: func(t *testing.T, got float64) { assert.Equal(t, 20.0, got) },
		},
		{
			name: "below threshold ignores humidity",
			temp: 26.6, humidity: 10,
			check: func(t *testing.T, got float64) { assert.Equal(t, 26.6, got) },
		},
		{
			name: "heat index amplifies humid heat",
			temp: 35, humidity: 70,
			check: func(t *testing.T, got float64) { assert.Greater(t, got, 35.0) },
		},
		{
			name: "rounded to one decimal",
			temp: 30, humidity: 50,
			check: func(t *testing.T, got float64) { assert.Equal(t, round(got, 1), got) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, FeelsLike(tt.temp, tt.humidity))
		})
	}
}

func TestRainChance(t *testing.T) {
	tests := []struct {
		precip float64
		want   int
	}{
		{0, 0},
		{-1.2, 0},
		{0.02, 0},
		{0.03, 1},
		{2.5, 50},
		{5, 100},
		{6, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RainChance(tt.precip), "precip %v", tt.precip)
	}
}

func TestUnitConversions(t *testing.T) {
	assert.InDelta(t, 36.0, WindKmh(10), 1e-9)
	assert.Equal(t, 0, UVIndex(-5))
	assert.Equal(t, 0, UVIndex(0))
	assert.Equal(t, 0, UVIndex(24.9))
	assert.Equal(t, 2, UVIndex(50))
}

func TestOverviewCondition(t *testing.T) {
	assert.Equal(t, "Rain", OverviewCondition(71, 30))
	assert.Equal(t, "Cloudy", OverviewCondition(70, 14.9))
	assert.Equal(t, "Sunny", OverviewCondition(70, 15))
}

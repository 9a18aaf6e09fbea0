package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lox/paradeweather/internal/models"
)

func TestClassifyTemperatureBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  Label
	}{
		{name: "exactly 35 is hot", value: 35.0, want: LabelHot},
		{name: "just above 35 is very hot", value: 35.01, want: LabelVeryHot},
		{name: "exactly 30 is comfortable", value: 30.0, want: LabelComfortable},
		{name: "above 30 is hot", value: 30.5, want: LabelHot},
		{name: "exactly 15 is comfortable", value: 15.0, want: LabelComfortable},
		{name: "exactly 5 is cold", value: 5.0, want: LabelCold},
		{name: "just below 5 is very cold", value: 4.99, want: LabelVeryCold},
		{name: "negative", value: -12, want: LabelVeryCold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range []models.Variable{models.Temp, models.TempMax, models.TempMin} {
				assert.Equal(t, tt.want, Classify(v, tt.value), v.String())
			}
		})
	}
}

func TestClassifyOtherVariables(t *testing.T) {
	tests := []struct {
		name     string
		variable models.Variable
		value    float64
		want     Label
	}{
		{name: "very wet month", variable: models.Precip, value: 250, want: LabelVeryWet},
		{name: "200mm is wet", variable: models.Precip, value: 200, want: LabelWet},
		{name: "100mm is light rain", variable: models.Precip, value: 100, want: LabelLightRain},
		{name: "30mm is light rain", variable: models.Precip, value: 30, want: LabelLightRain},
		{name: "dry month", variable: models.Precip, value: 29.9, want: LabelDry},
		{name: "stormy", variable: models.Wind, value: 25.1, want: LabelStormy},
		{name: "25 m/s is windy", variable: models.Wind, value: 25, want: LabelWindy},
		{name: "breezy", variable: models.Wind, value: 6, want: LabelBreezy},
		{name: "5 m/s is calm", variable: models.Wind, value: 5, want: LabelCalm},
		{name: "oppressive humidity", variable: models.Humidity, value: 85, want: LabelVeryUncomfortable},
		{name: "humid", variable: models.Humidity, value: 70, want: LabelHumid},
		{name: "30 percent is comfortable", variable: models.Humidity, value: 30, want: LabelComfortable},
		{name: "dry air", variable: models.Humidity, value: 20, want: LabelDryAir},
		{name: "uv has no bands", variable: models.UVProxy, value: 40, want: LabelUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.variable, tt.value))
		})
	}
}

func TestClassifyName(t *testing.T) {
	assert.Equal(t, LabelHot, ClassifyName("T2M", 32))
	assert.Equal(t, LabelHot, ClassifyName("temp_max", 32))
	assert.Equal(t, LabelWet, ClassifyName("PRECTOTCORR", 150))
	assert.Equal(t, LabelUnknown, ClassifyName("PRESSURE", 1013))
	assert.Equal(t, LabelUnknown, ClassifyName("", 0))
}

func TestOverallLabel(t *testing.T) {
	labels := map[models.Variable]Label{
		models.Humidity: LabelHumid,
		models.Wind:     LabelCalm,
		models.Temp:     LabelHot,
		models.Precip:   LabelDry,
	}
	assert.Equal(t, "Hot & Dry & Calm & Humid", OverallLabel(labels))

	delete(labels, models.Precip)
	assert.Equal(t, "Hot & Calm & Humid", OverallLabel(labels))

	assert.Equal(t, "", OverallLabel(nil))
}

package forecast

import (
	"strings"

	"github.com/lox/paradeweather/internal/models"
)

// Label is a human-readable condition for one variable's value.
type Label string

const (
	LabelVeryHot     Label = "Very Hot"
	LabelHot         Label = "Hot"
	LabelComfortable Label = "Comfortable"
	LabelCold        Label = "Cold"
	LabelVeryCold    Label = "Very Cold"

	LabelVeryWet   Label = "Very Wet"
	LabelWet       Label = "Wet"
	LabelLightRain Label = "Light Rain"
	LabelDry       Label = "Dry"

	LabelStormy Label = "Stormy"
	LabelWindy  Label = "Windy"
	LabelBreezy Label = "Breezy"
	LabelCalm   Label = "Calm"

	LabelVeryUncomfortable Label = "Very Uncomfortable"
	LabelHumid             Label = "Humid"
	LabelDryAir            Label = "Dry Air"

	LabelUnknown Label = "Unknown"
)

// overallOrder is the fixed order labels appear in the overall summary.
var overallOrder = []models.Variable{models.Temp, models.Precip, models.Wind, models.Humidity}

// Classify maps value to a label for v. Bands are evaluated from the top
// down. Precipitation bands are millimetres per month. Variables without
// bands return LabelUnknown.
func Classify(v models.Variable, value float64) Label {
	switch v {
	case models.Temp, models.TempMax, models.TempMin:
		return classifyTemperature(value)
	case models.Precip:
		return classifyPrecipitation(value)
	case models.Wind:
		return classifyWind(value)
	case models.Humidity:
		return classifyHumidity(value)
	default:
		return LabelUnknown
	}
}

// ClassifyName is Classify keyed by variable name. Unrecognised names
// return LabelUnknown rather than failing.
func ClassifyName(name string, value float64) Label {
	v, err := models.ParseVariable(name)
	if err != nil {
		return LabelUnknown
	}
	return Classify(v, value)
}

// OverallLabel joins the labels present in labels, in a fixed variable
// order, with " & ".
func OverallLabel(labels map[models.Variable]Label) string {
	var parts []string
	for _, v := range overallOrder {
		if l, ok := labels[v]; ok {
			parts = append(parts, string(l))
		}
	}
	return strings.Join(parts, " & ")
}

func classifyTemperature(c float64) Label {
	switch {
	case c > 35:
		return LabelVeryHot
	case c > 30:
		return LabelHot
	case c >= 15:
		return LabelComfortable
	case c >= 5:
		return LabelCold
	default:
		return LabelVeryCold
	}
}

func classifyPrecipitation(mm float64) Label {
	switch {
	case mm > 200:
		return LabelVeryWet
	case mm > 100:
		return LabelWet
	case mm >= 30:
		return LabelLightRain
	default:
		return LabelDry
	}
}

func classifyWind(ms float64) Label {
	switch {
	case ms > 25:
		return LabelStormy
	case ms > 15:
		return LabelWindy
	case ms > 5:
		return LabelBreezy
	default:
		return LabelCalm
	}
}

func classifyHumidity(pct float64) Label {
	switch {
	case pct > 80:
		return LabelVeryUncomfortable
	case pct > 60:
		return LabelHumid
	case pct >= 30:
		return LabelComfortable
	default:
		return LabelDryAir
	}
}

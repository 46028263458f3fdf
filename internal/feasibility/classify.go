package feasibility

import "math"

// Class is one feasibility classification bucket.
type Class struct {
	Key   string  `json:"key" yaml:"key"`
	Label string  `json:"label" yaml:"label"`
	Color string  `json:"color" yaml:"color"`
	Min   float64 `json:"-" yaml:"-"` // inclusive lower bound of the score
}

// Classes are the scored buckets from highest to lowest. Classify walks
// them in order, so each bound is defined once here.
var Classes = []Class{
	{Key: "very_high", Label: "100%", Color: "#1b5e20", Min: 100},
	{Key: "high", Label: "75-100%", Color: "#81c784", Min: 75},
	{Key: "moderate_high", Label: "50-75%", Color: "#c5e1a5", Min: 50},
	{Key: "moderate", Label: "25-50%", Color: "#ffd700", Min: 25},
	{Key: "low", Label: "1-25%", Color: "#ff8c00", Min: 1},
	{Key: "very_low", Label: "0%", Color: "#ff0000", Min: math.Inf(-1)},
}

// NoData is the class of units without a score.
var NoData = Class{Key: "no_data", Label: "No Data", Color: "#E0E0E0", Min: math.NaN()}

// Thresholds for the high/low counts in Stats.
const (
	HighThreshold = 75.0
	LowThreshold  = 25.0
)

// Classify maps a score to its class. NaN is NoData.
func Classify(score float64) Class {
	if math.IsNaN(score) {
		return NoData
	}
	for _, c := range Classes {
		if score >= c.Min {
			return c
		}
	}
	return Classes[len(Classes)-1]
}

// AllClasses returns the scored classes followed by NoData.
func AllClasses() []Class {
	out := make([]Class, 0, len(Classes)+1)
	out = append(out, Classes...)
	return append(out, NoData)
}

// Package feasibility scores units against weighted range criteria,
// classifies the scores and summarizes them. Every function is pure and
// safe for concurrent use on a shared collection.
package feasibility

import (
	"math"
	"strings"

	"github.com/iwmi/leaf-dss/internal/schema"
	"github.com/iwmi/leaf-dss/internal/unit"
)

// Columns added by Apply.
const (
	ColScore = "feasibility"
	ColClass = "feasibility_class"
	ColLabel = "feasibility_label"
	ColColor = "feasibility_color"
)

// Criterion accepts units whose Column value lies in [Min, Max].
type Criterion struct {
	Column string  `json:"column"`
	Min    float64 `json:"min_val"`
	Max    float64 `json:"max_val"`
	Weight float64 `json:"weight"`
}

// Logic is the criteria combination mode.
type Logic string

// Supported combination modes. Both use the weighted-ratio score.
const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// ParseLogic is case-insensitive and defaults to AND.
func ParseLogic(s string) Logic {
	if strings.EqualFold(strings.TrimSpace(s), string(LogicOr)) {
		return LogicOr
	}
	return LogicAnd
}

// Match returns 1 for units whose column value lies in [min, max], 0 for
// values outside it and NaN for units without a value. An absent column
// yields NaN for every unit.
func Match(coll unit.Collection, column string, min, max float64) []float64 {
	out := make([]float64, coll.Len())
	values, ok := coll.Numeric(column)
	if !ok {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = math.NaN()
		case v >= min && v <= max:
			out[i] = 1
		default:
			out[i] = 0
		}
	}
	return out
}

// Score computes 100 * sum(w*match) / sum(w) over the criteria applicable
// to each unit. Units where no criterion applies, or every applicable
// weight is zero, get NaN. An empty criteria list scores every unit NaN.
// logic is accepted for the request shape only; AND and OR both use the
// weighted ratio.
func Score(coll unit.Collection, criteria []Criterion, logic Logic) []float64 {
	n := coll.Len()
	matched := make([]float64, n)
	applicable := make([]float64, n)

	for _, c := range criteria {
		c = c.normalized()
		if c.Column == "" {
			continue
		}
		for i, m := range Match(coll, c.Column, c.Min, c.Max) {
			if math.IsNaN(m) {
				continue
			}
			matched[i] += m * c.Weight
			applicable[i] += c.Weight
		}
	}

	out := make([]float64, n)
	for i := range out {
		if applicable[i] > 0 {
			out[i] = matched[i] / applicable[i] * 100
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

func (c Criterion) normalized() Criterion {
	c.Column = strings.TrimSpace(c.Column)
	if math.IsNaN(c.Min) {
		c.Min = math.Inf(-1)
	}
	if math.IsNaN(c.Max) {
		c.Max = math.Inf(1)
	}
	if math.IsNaN(c.Weight) || c.Weight < 0 {
		c.Weight = 0
	}
	return c
}

// Apply returns a copy of coll with the score, class key, label and color
// columns. Undefined scores are stored as nil.
func Apply(coll unit.Collection, criteria []Criterion, logic Logic) unit.Collection {
	out := coll.Clone()
	scores := Score(out, criteria, logic)
	for _, col := range []string{ColScore, ColClass, ColLabel, ColColor} {
		out.AddColumn(col)
	}
	for i, s := range scores {
		class := Classify(s)
		attrs := out.Units[i].Attrs
		if math.IsNaN(s) {
			attrs[ColScore] = nil
		} else {
			attrs[ColScore] = s
		}
		attrs[ColClass] = class.Key
		attrs[ColLabel] = class.Label
		attrs[ColColor] = class.Color
	}
	return out
}

// Result is a scored collection with statistics over the requested scope.
// Units always holds every unit regardless of scope.
type Result struct {
	Units unit.Collection
	Stats Stats
}

// Evaluate scores every unit and summarizes the units in scope.
func Evaluate(coll unit.Collection, criteria []Criterion, logic Logic, scope string) Result {
	scored := Apply(coll, criteria, logic)
	return Result{Units: scored, Stats: Statistics(scored, scope)}
}

// CriteriaFromConfig converts intervention variable configs to criteria.
func CriteriaFromConfig(configs []schema.VariableConfig) []Criterion {
	out := make([]Criterion, 0, len(configs))
	for _, vc := range configs {
		out = append(out, Criterion{
			Column: vc.Field,
			Min:    vc.RangeMin,
			Max:    vc.RangeMax,
			Weight: vc.Weight,
		})
	}
	return out
}

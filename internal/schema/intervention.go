package schema

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/iwmi/leaf-dss/internal/unit"
)

// ErrUnknownIntervention is returned when an intervention name is not in
// the catalog.
var ErrUnknownIntervention = eris.New("schema: unknown intervention")

// Preference is the preferred direction of a variable within an
// intervention.
type Preference string

// Supported preferences.
const (
	PreferHigher   Preference = "higher"
	PreferLower    Preference = "lower"
	PreferModerate Preference = "moderate"
)

// ParsePreference normalizes a preference cell; anything unrecognized is
// moderate.
func ParsePreference(s string) Preference {
	switch p := Preference(strings.ToLower(strings.TrimSpace(s))); p {
	case PreferHigher, PreferLower, PreferModerate:
		return p
	}
	return PreferModerate
}

// placeholderPhrases mark cluster cells that are drafting notes rather than
// intervention names. "internventions" is a typo present in the source data.
var placeholderPhrases = []string{
	"new internventions",
	"new interventions",
	"should be possible",
}

// IsValidCluster reports whether a cluster label names a real intervention.
func IsValidCluster(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	for _, p := range placeholderPhrases {
		if strings.Contains(name, p) {
			return false
		}
	}
	return true
}

// VariableConfig is one variable of an intervention with its acceptable
// range, weight and the observed data range of the column.
type VariableConfig struct {
	Field       string     `json:"field"`
	RangeMin    float64    `json:"range_min"`
	RangeMax    float64    `json:"range_max"`
	Weight      float64    `json:"weight"`
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Group       string     `json:"group"`
	Preference  Preference `json:"preference"`
	DataMin     float64    `json:"data_min"`
	DataMax     float64    `json:"data_max"`
	DataMean    float64    `json:"data_mean"`
}

// Intervention is a named bundle of variable configs.
type Intervention struct {
	Key         string           `json:"key"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Variables   []VariableConfig `json:"variables,omitempty"`
}

// Interventions returns the catalog in first-seen order without variable
// configs.
func (d *Definitions) Interventions() []Intervention {
	out := make([]Intervention, 0, len(d.clusters))
	for _, c := range d.clusters {
		out = append(out, Intervention{Key: c, Name: c, Description: describe(c)})
	}
	return out
}

// InterventionConfig expands every intervention into variable configs.
// Ranges missing from the table fall back to the observed range of the
// column in units.
func (d *Definitions) InterventionConfig(units unit.Collection) map[string][]VariableConfig {
	stats := make(map[string]ColumnStats)
	out := make(map[string][]VariableConfig, len(d.clusters))
	for _, c := range d.clusters {
		out[c] = []VariableConfig{}
	}

	for _, e := range d.entries {
		st, ok := stats[e.field]
		if !ok {
			st = Stats(units, e.field)
			stats[e.field] = st
		}
		cfg := VariableConfig{
			Field:       e.field,
			RangeMin:    st.Min,
			RangeMax:    st.Max,
			Weight:      1.0,
			Label:       e.label,
			Description: e.description,
			Group:       d.GroupOf(e.field),
			Preference:  e.preference,
			DataMin:     st.Min,
			DataMax:     st.Max,
			DataMean:    st.Mean,
		}
		if e.rangeMin != nil {
			cfg.RangeMin = *e.rangeMin
		}
		if e.rangeMax != nil {
			cfg.RangeMax = *e.rangeMax
		}
		if e.weight != nil {
			cfg.Weight = *e.weight
		}
		out[e.cluster] = append(out[e.cluster], cfg)
	}
	return out
}

// Intervention returns the named intervention with its variable configs.
func (d *Definitions) Intervention(name string, units unit.Collection) (Intervention, error) {
	name = strings.TrimSpace(name)
	for _, c := range d.clusters {
		if c != name {
			continue
		}
		return Intervention{
			Key:         c,
			Name:        c,
			Description: describe(c),
			Variables:   d.InterventionConfig(units)[c],
		}, nil
	}
	return Intervention{}, eris.Wrapf(ErrUnknownIntervention, "%q", name)
}

func describe(name string) string {
	return name + " focuses on sustainable agricultural practices tailored to local conditions."
}

// ColumnStats is the observed numeric range of a column.
type ColumnStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Stats computes min/max/mean over the numeric values of col. Absent or
// entirely non-numeric columns yield the 0/100/50 slider defaults.
func Stats(units unit.Collection, col string) ColumnStats {
	st := ColumnStats{Min: 0, Max: 100, Mean: 50}
	vals, ok := units.Numeric(col)
	if !ok {
		return st
	}

	lo, hi, sum, n := math.Inf(1), math.Inf(-1), 0.0, 0
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		sum += v
		n++
	}
	if n == 0 {
		return st
	}
	return ColumnStats{Min: lo, Max: hi, Mean: sum / float64(n)}
}

package feasibility

import (
	"encoding/json"
	"math"
	"strings"

	mstats "github.com/montanaflynn/stats"

	"github.com/iwmi/leaf-dss/internal/unit"
)

// Stats summarizes the scores of a set of units. Mean, Median, Min and Max
// are NaN when no unit has a score and serialize as null.
type Stats struct {
	Total        int
	WithData     int
	WithoutData  int
	Mean         float64
	Median       float64
	Min          float64
	Max          float64
	HighCount    int
	LowCount     int
	Distribution map[string]int // keyed by class label, every class present
}

type statsJSON struct {
	Total        int            `json:"total"`
	WithData     int            `json:"with_data"`
	WithoutData  int            `json:"without_data"`
	Mean         *float64       `json:"mean"`
	Median       *float64       `json:"median"`
	Min          *float64       `json:"min"`
	Max          *float64       `json:"max"`
	HighCount    int            `json:"high_count"`
	LowCount     int            `json:"low_count"`
	Distribution map[string]int `json:"distribution"`
}

// MarshalJSON writes non-finite numbers as null.
func (s Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(statsJSON{
		Total:        s.Total,
		WithData:     s.WithData,
		WithoutData:  s.WithoutData,
		Mean:         finite(s.Mean),
		Median:       finite(s.Median),
		Min:          finite(s.Min),
		Max:          finite(s.Max),
		HighCount:    s.HighCount,
		LowCount:     s.LowCount,
		Distribution: s.Distribution,
	})
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Statistics summarizes a scored collection. A non-empty scope restricts
// the summary to units whose region name equals it; when no unit matches by
// name the region id is compared as text. A scope matching nothing yields
// Total 0.
func Statistics(coll unit.Collection, scope string) Stats {
	coll = InScope(coll, scope)

	st := Stats{
		Total:        coll.Len(),
		Mean:         math.NaN(),
		Median:       math.NaN(),
		Min:          math.NaN(),
		Max:          math.NaN(),
		Distribution: make(map[string]int, len(Classes)+1),
	}
	for _, c := range AllClasses() {
		st.Distribution[c.Label] = 0
	}

	var scores mstats.Float64Data
	for _, u := range coll.Units {
		s, ok := unit.Float(u.Get(ColScore))
		if !ok {
			st.Distribution[NoData.Label]++
			continue
		}
		scores = append(scores, s)
		st.Distribution[Classify(s).Label]++
		if s >= HighThreshold {
			st.HighCount++
		}
		if s < LowThreshold {
			st.LowCount++
		}
	}
	st.WithData = len(scores)
	st.WithoutData = st.Total - st.WithData

	if len(scores) > 0 {
		st.Mean, _ = scores.Mean()
		st.Median, _ = scores.Median()
		st.Min, _ = scores.Min()
		st.Max, _ = scores.Max()
	}
	return st
}

// InScope filters coll to the units of a parent region. An empty scope
// returns coll unchanged.
func InScope(coll unit.Collection, scope string) unit.Collection {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return coll
	}
	keys := coll.Keys

	empty := coll.Filter(func(unit.Unit) bool { return false })
	if keys.Region != "" && coll.HasColumn(keys.Region) {
		byName := coll.Filter(func(u unit.Unit) bool { return unit.Text(u.Get(keys.Region)) == scope })
		if byName.Len() > 0 {
			return byName
		}
	}
	if keys.RegionID != "" && coll.HasColumn(keys.RegionID) {
		return coll.Filter(func(u unit.Unit) bool { return unit.Text(u.Get(keys.RegionID)) == scope })
	}
	return empty
}

// Package catalog derives the read-only listings served next to the scoring
// engine: variable catalogs, district/block/GP hierarchies, lookups and
// summaries.
package catalog

import (
	"slices"
	"strings"

	"github.com/iwmi/leaf-dss/internal/schema"
	"github.com/iwmi/leaf-dss/internal/unit"
)

// Identity and bookkeeping columns excluded from the variable catalogs.
var (
	BlockSkip = []string{"BLOCK_ID", "STATE_ID", "DISTRICT_I", "Block_name", "id"}
	GPSkip    = []string{"GP_CODE", "GP_ID", "GP_NAME", "VIL_COUNT", "Dist_Name", "Block_Name", "NUMBER OF VILLAGE"}
)

// SkipFor returns the skip list of a collection kind.
func SkipFor(kind unit.Kind) []string {
	if kind == unit.KindGP {
		return GPSkip
	}
	return BlockSkip
}

// Variable is one scorable column with its definition and observed range.
type Variable struct {
	Field       string  `json:"field"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Group       string  `json:"group"`
	DataMin     float64 `json:"data_min"`
	DataMax     float64 `json:"data_max"`
	DataMean    float64 `json:"data_mean"`
}

// Variables lists every column of coll that holds at least one numeric
// value, in column order, skipping the given identity columns. Metadata
// comes from defs; GP columns without a definition are grouped by
// CategorizeGP and described by their code.
func Variables(coll unit.Collection, defs *schema.Definitions, skip []string) []Variable {
	out := []Variable{}
	for _, col := range coll.Columns {
		if slices.Contains(skip, col) || !hasNumeric(coll, col) {
			continue
		}

		def, known := defs.Variable(col)
		v := Variable{
			Field:       col,
			Label:       def.Label,
			Description: def.Description,
			Group:       def.Group,
		}
		if !known && coll.Kind == unit.KindGP {
			v.Description = col
			v.Group = CategorizeGP(col)
		}

		st := schema.Stats(coll, col)
		v.DataMin, v.DataMax, v.DataMean = st.Min, st.Max, st.Mean
		out = append(out, v)
	}
	return out
}

// ColumnStats returns the observed range of column in coll, with the 0/100/50
// fallbacks for absent or empty columns.
func ColumnStats(coll unit.Collection, column string) schema.ColumnStats {
	return schema.Stats(coll, column)
}

func hasNumeric(coll unit.Collection, col string) bool {
	for _, u := range coll.Units {
		if _, ok := unit.Float(u.Get(col)); ok {
			return true
		}
	}
	return false
}

// gpCategories maps name fragments to groups. Order matters: the first
// matching category wins.
var gpCategories = []struct {
	group    string
	keywords []string
}{
	{"Livestock", []string{"poultry", "pig", "cattle", "buffalo", "goat", "sheep", "horse", "donkey", "camel", "mule", "livestock"}},
	{"Livestock Services", []string{"veterinary", "milk collection"}},
	{"Transport & Connectivity", []string{"road", "transport", "railway"}},
	{"Finance & Markets", []string{"bank", "atm", "market", "mandies"}},
	{"Utilities", []string{"electricity", "internet", "telephone", "broadband"}},
	{"Land & Agriculture", []string{"fodder", "crop", "pasture", "grazing"}},
	{"Collectives", []string{"shg", "shgs"}},
	{"Activities", []string{"duckery", "farming", "fishery", "goatery", "piggery", "poultry_activity"}},
}

// CategorizeGP guesses the group of an undefined GP column from its name.
func CategorizeGP(col string) string {
	lower := strings.ToLower(col)
	for _, c := range gpCategories {
		for _, k := range c.keywords {
			if strings.Contains(lower, k) {
				return c.group
			}
		}
	}
	return schema.DefaultGroup
}

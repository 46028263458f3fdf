// Package join merges indicator tables onto geometry collections and
// attaches lookup-derived columns such as district and block names.
package join

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/iwmi/leaf-dss/internal/unit"
)

// NormalizeCode converts a join key to a nullable integer. Integral numbers
// and numeric strings ("12", "12.0") normalize to 12; anything else is null.
func NormalizeCode(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	}

	f, ok := unit.Float(v)
	if !ok || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// KeyFold normalizes a name key: trimmed and upper-cased. Null values
// report false.
func KeyFold(v any) (string, bool) {
	s := strings.TrimSpace(unit.Text(v))
	if s == "" {
		return "", false
	}
	return strings.ToUpper(s), true
}

var titleCaser = cases.Title(language.Und)

// Title title-cases a name ("MARGHERITA" becomes "Margherita").
func Title(s string) string {
	return titleCaser.String(strings.ToLower(s))
}

// Options controls a left join.
type Options struct {
	// Key is the join column present in both collections.
	Key string
	// DropFromBase lists base columns removed before merging so the
	// indicator version wins.
	DropFromBase []string
}

// Left joins indicator rows onto base by normalized Key. Every base unit is
// retained in order; units without a match get nil for every indicator
// column. Indicator rows with a null key never match and the first row of
// a duplicated key wins. The base key column is rewritten with its
// normalized value.
func Left(base, ind unit.Collection, opts Options) unit.Collection {
	log := zap.L().With(zap.String("component", "join"))
	out := base.Clone()
	for _, col := range opts.DropFromBase {
		if col != opts.Key {
			out.DropColumn(col)
		}
	}

	index := make(map[int64]int, len(ind.Units))
	duplicates := 0
	for i, u := range ind.Units {
		code, ok := NormalizeCode(u.Get(opts.Key))
		if !ok {
			continue
		}
		if _, seen := index[code]; seen {
			duplicates++
			continue
		}
		index[code] = i
	}
	if duplicates > 0 {
		log.Warn("join: duplicate indicator keys, first row kept",
			zap.String("key", opts.Key), zap.Int("duplicates", duplicates))
	}

	indCols := make([]string, 0, len(ind.Columns))
	for _, col := range ind.Columns {
		if col != opts.Key {
			indCols = append(indCols, col)
		}
	}
	for _, col := range indCols {
		out.AddColumn(col)
	}
	out.AddColumn(opts.Key)

	matched := 0
	for i := range out.Units {
		attrs := out.Units[i].Attrs
		code, ok := NormalizeCode(attrs[opts.Key])
		if ok {
			attrs[opts.Key] = code
		} else {
			attrs[opts.Key] = nil
		}

		row, hit := index[code]
		if !ok || !hit {
			for _, col := range indCols {
				attrs[col] = nil
			}
			continue
		}
		matched++
		src := ind.Units[row]
		for _, col := range indCols {
			attrs[col] = src.Get(col)
		}
	}

	log.Debug("join: left join complete",
		zap.String("key", opts.Key),
		zap.Int("base", out.Len()),
		zap.Int("indicators", ind.Len()),
		zap.Int("matched", matched))
	return out
}

// Lookup describes a column derived by looking up another column's value.
type Lookup[K comparable, V any] struct {
	Source  string
	Target  string
	Mapping map[K]V
	// Key normalizes the source value; false means null.
	Key func(any) (K, bool)
	// Transform is applied to matched values when set.
	Transform func(V) V
	// Missing is stored when the source is null or unmatched.
	Missing any
}

// Attach adds l.Target to coll in place and returns the number of units
// whose source value matched.
func Attach[K comparable, V any](coll *unit.Collection, l Lookup[K, V]) int {
	coll.AddColumn(l.Target)
	matched := 0
	for i := range coll.Units {
		var value any = l.Missing
		if k, ok := l.Key(coll.Units[i].Get(l.Source)); ok {
			if v, hit := l.Mapping[k]; hit {
				if l.Transform != nil {
					v = l.Transform(v)
				}
				value = v
				matched++
			}
		}
		coll.Set(i, l.Target, value)
	}
	return matched
}

// SetConstant adds a column holding the same value on every unit.
func SetConstant(coll *unit.Collection, col string, value any) {
	coll.AddColumn(col)
	for i := range coll.Units {
		coll.Set(i, col, value)
	}
}

// CodeText renders a normalized code for display, or "" when null.
func CodeText(v any) string {
	if code, ok := NormalizeCode(v); ok {
		return strconv.FormatInt(code, 10)
	}
	return unit.Text(v)
}

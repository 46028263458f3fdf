// Package unit defines the scored geographic units (blocks and gram
// panchayats) and the attribute-table collection shared by every stage of
// the engine.
package unit

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Kind identifies the administrative level of a collection.
type Kind string

// Supported unit levels.
const (
	KindBlock Kind = "block"
	KindGP    Kind = "gp"
)

// ParseKind maps a user-supplied level name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "block", "blocks", "":
		return KindBlock, nil
	case "gp", "gps", "sub_unit", "grampanchayat":
		return KindGP, nil
	}
	return "", eris.Errorf("unit: unknown level %q", s)
}

// Keys names the attribute columns that carry the identity of a unit.
// Empty names mean the collection has no such column.
type Keys struct {
	Code     string
	Name     string
	Region   string // parent region (district) display name
	RegionID string // parent region numeric identifier
	Parent   string // parent unit name (block of a GP)
}

// Unit is one polygon feature with its attribute row. Attribute values are
// nil (no data), float64, int64 or string.
type Unit struct {
	Geometry *geom.MultiPolygon
	Attrs    map[string]any
}

// Get returns the attribute value for col, or nil.
func (u Unit) Get(col string) any {
	if u.Attrs == nil {
		return nil
	}
	return u.Attrs[col]
}

// Collection is an ordered attribute table of units of one kind.
type Collection struct {
	Kind    Kind
	Keys    Keys
	Columns []string
	Units   []Unit
}

// Len returns the number of units.
func (c Collection) Len() int { return len(c.Units) }

// HasColumn reports whether col is part of the schema.
func (c Collection) HasColumn(col string) bool {
	return slices.Contains(c.Columns, col)
}

// AddColumn appends col to the schema if it is not already present.
func (c *Collection) AddColumn(col string) {
	if !c.HasColumn(col) {
		c.Columns = append(c.Columns, col)
	}
}

// DropColumn removes col from the schema and from every unit.
func (c *Collection) DropColumn(col string) {
	idx := slices.Index(c.Columns, col)
	if idx < 0 {
		return
	}
	c.Columns = slices.Delete(slices.Clone(c.Columns), idx, idx+1)
	for i := range c.Units {
		delete(c.Units[i].Attrs, col)
	}
}

// Set assigns a value on unit i, adding the column if needed.
func (c *Collection) Set(i int, col string, v any) {
	c.AddColumn(col)
	if c.Units[i].Attrs == nil {
		c.Units[i].Attrs = make(map[string]any)
	}
	c.Units[i].Attrs[col] = v
}

// Clone returns a copy whose schema and attribute maps are independent of
// the receiver. Geometries are shared and must be treated as read-only.
func (c Collection) Clone() Collection {
	out := Collection{
		Kind:    c.Kind,
		Keys:    c.Keys,
		Columns: slices.Clone(c.Columns),
		Units:   make([]Unit, len(c.Units)),
	}
	for i, u := range c.Units {
		attrs := make(map[string]any, len(u.Attrs)+4)
		for k, v := range u.Attrs {
			attrs[k] = v
		}
		out.Units[i] = Unit{Geometry: u.Geometry, Attrs: attrs}
	}
	return out
}

// Filter returns a collection with the units for which keep is true. Units
// are shared with the receiver.
func (c Collection) Filter(keep func(Unit) bool) Collection {
	out := Collection{Kind: c.Kind, Keys: c.Keys, Columns: c.Columns}
	for _, u := range c.Units {
		if keep(u) {
			out.Units = append(out.Units, u)
		}
	}
	return out
}

// Numeric coerces col to float64 for every unit; missing and unparsable
// values are NaN. ok is false when the column is not in the schema.
func (c Collection) Numeric(col string) (values []float64, ok bool) {
	if !c.HasColumn(col) {
		return nil, false
	}
	values = make([]float64, len(c.Units))
	for i, u := range c.Units {
		if f, ok := Float(u.Get(col)); ok {
			values[i] = f
		} else {
			values[i] = math.NaN()
		}
	}
	return values, true
}

// Float coerces an attribute value to a finite-or-infinite float64.
// Nil, NaN, empty and unparsable values report false.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), !math.IsNaN(float64(x))
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Text renders an attribute value as display text. Integral floats drop
// their fractional part so codes compare equal across sources.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

package export

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/iwmi/leaf-dss/internal/unit"
)

// SRID of exported geometries.
const SRID = 4326

// GeomColumn is the geometry column of table exports.
const GeomColumn = "geom"

// ColumnType is the inferred storage type of an attribute column.
type ColumnType int

// Inferred column types.
const (
	TypeText ColumnType = iota
	TypeInteger
	TypeReal
)

// InferTypes types every column of coll: integer when every non-null value
// is an integer, real when every non-null value is numeric, else text.
// Columns without any value are text.
func InferTypes(coll unit.Collection) []ColumnType {
	out := make([]ColumnType, len(coll.Columns))
	for i, col := range coll.Columns {
		out[i] = inferType(coll, col)
	}
	return out
}

func inferType(coll unit.Collection, col string) ColumnType {
	seen, allInt := false, true
	for _, u := range coll.Units {
		switch u.Get(col).(type) {
		case nil:
			continue
		case int64, int, int32:
		case float64, float32:
			if _, ok := unit.Float(u.Get(col)); !ok {
				continue
			}
			allInt = false
		default:
			return TypeText
		}
		seen = true
	}
	switch {
	case !seen:
		return TypeText
	case allInt:
		return TypeInteger
	}
	return TypeReal
}

// value converts an attribute to a storable value of type t.
func value(v any, t ColumnType) any {
	if v == nil {
		return nil
	}
	switch t {
	case TypeInteger:
		if f, ok := unit.Float(v); ok {
			return int64(f)
		}
		return nil
	case TypeReal:
		if f, ok := unit.Float(v); ok {
			return f
		}
		return nil
	}
	return unit.Text(v)
}

// rows flattens coll into storable rows. withGeom appends the EWKB geometry.
func rows(coll unit.Collection, types []ColumnType, withGeom bool) ([][]any, error) {
	out := make([][]any, 0, coll.Len())
	for i, u := range coll.Units {
		row := make([]any, 0, len(coll.Columns)+1)
		for j, col := range coll.Columns {
			row = append(row, value(u.Get(col), types[j]))
		}
		if withGeom {
			g, err := EncodeEWKB(u.Geometry)
			if err != nil {
				return nil, eris.Wrapf(err, "export: unit %d", i)
			}
			if g == nil {
				row = append(row, nil)
			} else {
				row = append(row, g)
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// EncodeEWKB encodes mp as little-endian EWKB with SRID 4326. A nil
// geometry encodes as nil.
func EncodeEWKB(mp *geom.MultiPolygon) ([]byte, error) {
	if mp == nil {
		return nil, nil
	}
	g := geom.NewMultiPolygonFlat(mp.Layout(), mp.FlatCoords(), mp.Endss()).SetSRID(SRID)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "export: encode EWKB")
	}
	return data, nil
}

// WriteCSV writes the attribute table of coll without geometry. Nulls are
// empty cells.
func WriteCSV(w io.Writer, coll unit.Collection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(coll.Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	record := make([]string, len(coll.Columns))
	for _, u := range coll.Units {
		for i, col := range coll.Columns {
			record[i] = unit.Text(sanitize(u.Get(col)))
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

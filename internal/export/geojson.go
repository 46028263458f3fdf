// Package export writes unit collections as GeoJSON, CSV, SQLite tables
// and Postgres tables.
package export

import (
	"encoding/json"
	"io"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/iwmi/leaf-dss/internal/unit"
)

// FeatureCollection converts coll to a GeoJSON feature collection. Every
// collection column becomes a property; non-finite numbers become null.
// Units without geometry get a null geometry.
func FeatureCollection(coll unit.Collection) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, coll.Len())}
	for _, u := range coll.Units {
		f := &geojson.Feature{Properties: Properties(coll, u)}
		if u.Geometry != nil {
			f.Geometry = u.Geometry
		}
		fc.Features = append(fc.Features, f)
	}
	return fc
}

// Properties returns the JSON-safe attribute map of u over coll's columns.
func Properties(coll unit.Collection, u unit.Unit) map[string]any {
	props := make(map[string]any, len(coll.Columns))
	for _, col := range coll.Columns {
		props[col] = sanitize(u.Get(col))
	}
	return props
}

func sanitize(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil
		}
	}
	return v
}

// WriteGeoJSON encodes coll as a FeatureCollection to w.
func WriteGeoJSON(w io.Writer, coll unit.Collection) error {
	if err := json.NewEncoder(w).Encode(FeatureCollection(coll)); err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	return nil
}

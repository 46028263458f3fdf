// Package shape reads polygon shapefiles into unit collections, normalizing
// the coordinate reference system to WGS84 lon/lat and simplifying
// boundaries for interactive maps.
package shape

import (
	"os"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/iwmi/leaf-dss/internal/unit"
)

// Options configures Read.
type Options struct {
	// Tolerance is the Douglas-Peucker threshold in degrees; 0 disables
	// simplification.
	Tolerance float64
}

// Read opens a polygon shapefile (and its .dbf/.prj siblings) and returns
// its features as a collection. Field names and text values are trimmed;
// numeric fields become float64 or int64 and blank values become nil.
// Records without usable polygon geometry are skipped.
func Read(shpPath string, opts Options) (unit.Collection, error) {
	crs, err := ReadCRS(shpPath)
	if err != nil {
		return unit.Collection{}, err
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return unit.Collection{}, eris.Wrapf(err, "shape: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimSpace(strings.TrimRight(f.String(), "\x00"))
	}

	coll := unit.Collection{Columns: dedupe(names)}
	var skipped int

	for reader.Next() {
		_, s := reader.Shape()

		mp := ToMultiPolygon(s)
		if mp == nil {
			skipped++
			continue
		}
		if err := crs.Reproject(mp); err != nil {
			return unit.Collection{}, eris.Wrapf(err, "shape: reproject %s", shpPath)
		}
		if opts.Tolerance > 0 {
			mp = Simplify(mp, opts.Tolerance)
		}

		attrs := make(map[string]any, len(fields))
		for i, f := range fields {
			name := names[i]
			if _, seen := attrs[name]; seen {
				continue
			}
			raw := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			attrs[name] = typedValue(raw, f)
		}

		coll.Units = append(coll.Units, unit.Unit{Geometry: mp, Attrs: attrs})
	}

	if skipped > 0 {
		zap.L().Debug("shape: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return coll, nil
}

// ReadCRS reads the .prj sibling of shpPath. A missing .prj means the data
// is assumed to be WGS84 already.
func ReadCRS(shpPath string) (CRS, error) {
	prjPath := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	data, err := os.ReadFile(prjPath)
	if os.IsNotExist(err) {
		return CRS{Kind: Geographic}, nil
	}
	if err != nil {
		return CRS{}, eris.Wrapf(err, "shape: read projection %s", prjPath)
	}
	crs, err := DetectCRS(string(data))
	if err != nil {
		return CRS{}, eris.Wrapf(err, "shape: projection of %s", shpPath)
	}
	return crs, nil
}

func typedValue(raw string, f shp.Field) any {
	if raw == "" {
		return nil
	}
	switch f.Fieldtype {
	case 'N', 'F':
		if f.Precision == 0 {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return n
			}
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
		return nil
	}
	return raw
}

// dedupe keeps the first occurrence of each field name.
func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

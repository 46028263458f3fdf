package shape

import (
	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// ToMultiPolygon converts a go-shp polygon record to a geom.MultiPolygon.
// Clockwise rings start a new polygon and counter-clockwise rings are holes
// of the preceding polygon, following the shapefile ring convention. Returns
// nil for nil, empty or non-polygon shapes.
func ToMultiPolygon(s shp.Shape) *geom.MultiPolygon {
	var parts []int32
	var points []shp.Point

	switch p := s.(type) {
	case *shp.Polygon:
		if p == nil {
			return nil
		}
		parts, points = p.Parts, p.Points
	case *shp.PolygonZ:
		if p == nil {
			return nil
		}
		parts, points = p.Parts, p.Points
	case *shp.PolygonM:
		if p == nil {
			return nil
		}
		parts, points = p.Parts, p.Points
	default:
		return nil
	}

	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("shape: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := range parts {
		start := parts[i]
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || end-start < 4 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, points[j].X, points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if xy.IsRingCounterClockwise(geom.XY, flat) && current != nil {
			if err := current.Push(ring); err != nil {
				zap.L().Debug("shape: skipping malformed hole", zap.Int("part", i), zap.Error(err))
			}
			continue
		}

		flush()
		current = geom.NewPolygon(geom.XY)
		if err := current.Push(ring); err != nil {
			zap.L().Debug("shape: skipping malformed ring", zap.Int("part", i), zap.Error(err))
			current = nil
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

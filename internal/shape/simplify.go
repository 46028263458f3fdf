package shape

import (
	"slices"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// minRingCoords is the smallest closed ring (a triangle plus closure).
const minRingCoords = 4

// Simplify applies Douglas-Peucker to every ring of mp. A ring that would
// collapse below a valid ring keeps its original coordinates, so no polygon
// or hole disappears. A simplified hole that leaves its simplified shell
// keeps its original coordinates; when even the original hole leaves it, the
// whole polygon is kept as is. Shared edges between neighbouring polygons
// are simplified independently. The result is a new geometry; mp is not
// modified.
func Simplify(mp *geom.MultiPolygon, tolerance float64) *geom.MultiPolygon {
	if mp == nil || tolerance <= 0 {
		return mp
	}

	layout := mp.Layout()
	out := geom.NewMultiPolygon(layout).SetSRID(mp.SRID())
	stride := mp.Stride()

	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		rings := simplifyPolygon(poly, layout, tolerance, stride)

		simplified := geom.NewPolygon(layout)
		for _, flat := range rings {
			if err := simplified.Push(geom.NewLinearRingFlat(layout, flat)); err != nil {
				return mp
			}
		}
		if err := out.Push(simplified); err != nil {
			return mp
		}
	}
	return out
}

// simplifyPolygon returns the rings of poly, shell first, simplified so
// that every hole stays inside the shell.
func simplifyPolygon(poly *geom.Polygon, layout geom.Layout, tolerance float64, stride int) [][]float64 {
	n := poly.NumLinearRings()
	if n == 0 {
		return nil
	}

	original := make([][]float64, n)
	for j := range original {
		original[j] = slices.Clone(poly.LinearRing(j).FlatCoords())
	}

	shell := simplifyRing(original[0], tolerance, stride)
	rings := [][]float64{shell}
	for _, hole := range original[1:] {
		s := simplifyRing(hole, tolerance, stride)
		switch {
		case ringWithin(layout, s, shell, stride):
			rings = append(rings, s)
		case ringWithin(layout, hole, shell, stride):
			rings = append(rings, hole)
		default:
			return original
		}
	}
	return rings
}

// ringWithin reports whether every vertex of ring lies inside or on shell.
func ringWithin(layout geom.Layout, ring, shell []float64, stride int) bool {
	for i := 0; i+stride <= len(ring); i += stride {
		if !xy.IsPointInRing(layout, geom.Coord(ring[i:i+stride]), shell) {
			return false
		}
	}
	return true
}

// simplifyRing splits the closed ring at the vertex farthest from its start
// and simplifies both open chains, so the start/end segment is never
// degenerate.
func simplifyRing(flat []float64, tolerance float64, stride int) []float64 {
	n := len(flat) / stride
	if n <= minRingCoords {
		return slices.Clone(flat)
	}

	k := farthestFromStart(flat, stride)
	if k == 0 {
		return slices.Clone(flat)
	}

	head := chain(flat[:(k+1)*stride], tolerance, stride)
	tail := chain(flat[k*stride:], tolerance, stride)

	idx := head
	for _, t := range tail[1:] {
		idx = append(idx, t+k)
	}
	if len(idx) < minRingCoords {
		return slices.Clone(flat)
	}

	kept := make([]float64, 0, len(idx)*stride)
	for _, i := range idx {
		kept = append(kept, flat[i*stride:(i+1)*stride]...)
	}
	return kept
}

// chain simplifies an open polyline and guarantees both endpoints are kept.
func chain(flat []float64, tolerance float64, stride int) []int {
	last := len(flat)/stride - 1
	idx := xy.SimplifyFlatCoords(flat, tolerance, stride)
	slices.Sort(idx)
	idx = slices.Compact(idx)
	if len(idx) == 0 || idx[0] != 0 {
		idx = append([]int{0}, idx...)
	}
	if idx[len(idx)-1] != last {
		idx = append(idx, last)
	}
	return idx
}

func farthestFromStart(flat []float64, stride int) int {
	x0, y0 := flat[0], flat[1]
	best, bestD := 0, 0.0
	for i := 1; i < len(flat)/stride; i++ {
		dx, dy := flat[i*stride]-x0, flat[i*stride+1]-y0
		if d := dx*dx + dy*dy; d > bestD {
			best, bestD = i, d
		}
	}
	return best
}

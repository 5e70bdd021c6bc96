package geometry

import (
	"fmt"
	"math"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Boolean operations are delegated to the Martinez-Rueda implementation in
// polygol; these helpers bridge between orb multi-polygons and its
// coordinate slices.

func toPolygol(shape orb.MultiPolygon) polygol.Geom {
	out := make(polygol.Geom, 0, len(shape))
	for _, poly := range shape {
		rings := make([][][]float64, 0, len(poly))
		for _, ring := range poly {
			coords := make([][]float64, 0, len(ring)+1)
			for _, pt := range ring {
				coords = append(coords, []float64{pt.X(), pt.Y()})
			}
			if len(coords) > 0 {
				first, last := coords[0], coords[len(coords)-1]
				if first[0] != last[0] || first[1] != last[1] {
					coords = append(coords, []float64{first[0], first[1]})
				}
			}
			rings = append(rings, coords)
		}
		out = append(out, rings)
	}
	return out
}

func fromPolygol(g polygol.Geom) orb.MultiPolygon {
	var out orb.MultiPolygon
	for _, rings := range g {
		var poly orb.Polygon
		for _, coords := range rings {
			ring := make(orb.Ring, 0, len(coords))
			for _, c := range coords {
				ring = append(ring, orb.Point{c[0], c[1]})
			}
			poly = append(poly, ring)
		}
		if len(poly) > 0 && math.Abs(planar.Area(poly)) > areaEps {
			out = append(out, poly)
		}
	}
	return out
}

// Intersection returns a AND b.
func Intersection(a, b orb.MultiPolygon) (orb.MultiPolygon, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, nil
	}
	res, err := polygol.Intersection(toPolygol(a), toPolygol(b))
	if err != nil {
		return nil, fmt.Errorf("intersection: %w", err)
	}
	return fromPolygol(res), nil
}

// Union returns the union of all given shapes.
func Union(shapes ...orb.MultiPolygon) (orb.MultiPolygon, error) {
	var nonEmpty []polygol.Geom
	for _, s := range shapes {
		if len(s) > 0 {
			nonEmpty = append(nonEmpty, toPolygol(s))
		}
	}
	if len(nonEmpty) == 0 {
		return nil, nil
	}
	if len(nonEmpty) == 1 {
		return fromPolygol(nonEmpty[0]), nil
	}
	res, err := polygol.Union(nonEmpty[0], nonEmpty[1:]...)
	if err != nil {
		return nil, fmt.Errorf("union: %w", err)
	}
	return fromPolygol(res), nil
}

// Difference returns a minus b.
func Difference(a, b orb.MultiPolygon) (orb.MultiPolygon, error) {
	if len(a) == 0 {
		return nil, nil
	}
	if len(b) == 0 {
		return a, nil
	}
	res, err := polygol.Difference(toPolygol(a), toPolygol(b))
	if err != nil {
		return nil, fmt.Errorf("difference: %w", err)
	}
	return fromPolygol(res), nil
}

func translate(shape orb.MultiPolygon, dx, dy float64) orb.MultiPolygon {
	out := make(orb.MultiPolygon, len(shape))
	for i, poly := range shape {
		outPoly := make(orb.Polygon, len(poly))
		for j, ring := range poly {
			outRing := make(orb.Ring, len(ring))
			for k, pt := range ring {
				outRing[k] = orb.Point{pt.X() + dx, pt.Y() + dy}
			}
			outPoly[j] = outRing
		}
		out[i] = outPoly
	}
	return out
}

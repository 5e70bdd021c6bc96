package geometry

import (
	"fmt"

	"github.com/paulmach/orb"
)

// MinkowskiDifference erodes the shape by a w x h rectangular window. The
// result is the locus of valid lower-left window corners: a rectangle of that
// size anchored at any point of the result lies entirely inside the shape.
// The erosion of the convex hull is reduced by the dilation of the hull's
// non-convex defect, so concavities shrink the valid region correctly.
//
// An empty result means no placement exists; it is not an error. The window
// dimensions are in the same linear units as the geometry, which must be in a
// projected CRS.
func MinkowskiDifference(g Geometry, w, h float64) (Geometry, error) {
	if !g.CRS.IsProjected() {
		return Geometry{}, fmt.Errorf("minkowski difference of %s geometry: %w", g.CRS, ErrCRSNotProjected)
	}
	if g.IsEmpty() {
		return Geometry{CRS: g.CRS}, nil
	}

	hull := ConvexHull(g.Shape)
	if hull == nil {
		return Geometry{CRS: g.CRS}, nil
	}
	hullMP := orb.MultiPolygon{hull}

	eroded, err := convexMinkowskiDifference(hullMP, w, h)
	if err != nil {
		return Geometry{}, err
	}

	defect, err := Difference(hullMP, g.Shape)
	if err != nil {
		return Geometry{}, err
	}
	if len(defect) == 0 {
		return Geometry{Shape: eroded, CRS: g.CRS}, nil
	}

	grownDefect, err := minkowskiSum(defect, -w, -h)
	if err != nil {
		return Geometry{}, err
	}
	result, err := Difference(eroded, grownDefect)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{Shape: result, CRS: g.CRS}, nil
}

// convexMinkowskiDifference erodes a convex shape by intersecting it with
// its translations by the window corner offsets.
func convexMinkowskiDifference(shape orb.MultiPolygon, w, h float64) (orb.MultiPolygon, error) {
	result := shape
	for _, off := range [][2]float64{{-w, 0}, {0, -h}, {-w, -h}} {
		var err error
		result, err = Intersection(result, translate(shape, off[0], off[1]))
		if err != nil {
			return nil, err
		}
		if len(result) == 0 {
			return nil, nil
		}
	}
	return result, nil
}

// MinkowskiSum dilates the shape by a w x h rectangular window: the result
// covers every point reachable by a window whose lower-left corner stays
// inside the shape. The geometry must be in a projected CRS.
func MinkowskiSum(g Geometry, w, h float64) (Geometry, error) {
	if !g.CRS.IsProjected() {
		return Geometry{}, fmt.Errorf("minkowski sum of %s geometry: %w", g.CRS, ErrCRSNotProjected)
	}
	shape, err := minkowskiSum(g.Shape, w, h)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{Shape: shape, CRS: g.CRS}, nil
}

// Buffer grows the shape outward by r units on every side, as a Minkowski
// sum with a 2r x 2r square centered on the origin. The geometry must be in
// a projected CRS.
func Buffer(g Geometry, r float64) (Geometry, error) {
	if !g.CRS.IsProjected() {
		return Geometry{}, fmt.Errorf("buffer of %s geometry: %w", g.CRS, ErrCRSNotProjected)
	}
	shape, err := minkowskiSum(g.Shape, 2*r, 2*r)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{Shape: translate(shape, -r, -r), CRS: g.CRS}, nil
}

// minkowskiSum triangulates the shape and unions the convex dilation of each
// triangle by the four window-corner translations.
func minkowskiSum(shape orb.MultiPolygon, w, h float64) (orb.MultiPolygon, error) {
	if len(shape) == 0 {
		return nil, nil
	}
	ts, err := Triangulate(shape)
	if err != nil {
		return nil, err
	}
	parts := make([]orb.MultiPolygon, 0, len(ts.Triangles))
	for _, tri := range ts.Triangles {
		parts = append(parts, orb.MultiPolygon{convexMinkowskiSum(tri, w, h)})
	}
	return Union(parts...)
}

// convexMinkowskiSum dilates a triangle by taking the convex hull of its
// four window-corner translations.
func convexMinkowskiSum(tri Triangle, w, h float64) orb.Polygon {
	var pts orb.MultiPolygon
	base := orb.MultiPolygon{tri.Polygon()}
	for _, off := range [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		pts = append(pts, translate(base, off[0], off[1])...)
	}
	return ConvexHull(pts)
}

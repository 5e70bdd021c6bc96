// Package sampler draws area-unbiased random points and rectangles from
// polygonal shapes.
package sampler

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/paulmach/orb"

	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
)

// ErrSamplingExhausted is returned when the bounded point-sampling retries
// keep landing outside the target shape.
var ErrSamplingExhausted = errors.New("point sampling exhausted its retries")

// ErrWindowTooLarge is returned when eroding the sampling region by the
// requested window leaves no valid placement.
var ErrWindowTooLarge = errors.New("window does not fit inside the sampling area")

// pointTries bounds the containment re-check loop in RandomPoint. Triangle
// selection can place a point fractionally outside the shape at clipped
// edges, and integer rounding can move it out entirely.
const pointTries = 10

// RandomPoint samples a uniformly random point inside the shape. A triangle
// is selected with probability proportional to its area, then a point is
// drawn inside it via barycentric coordinates. Pass a precomputed triangle
// set to avoid re-triangulating the same shape on every draw; pass nil to
// triangulate on the fly. With intCoords the point is rounded to the integer
// grid before the containment check.
func RandomPoint(rnd *rand.Rand, shape geometry.Geometry, ts *geometry.TriangleSet, intCoords bool) (orb.Point, error) {
	if ts == nil {
		var err error
		ts, err = geometry.Triangulate(shape.Shape)
		if err != nil {
			return orb.Point{}, err
		}
	}
	total := ts.TotalArea()
	if total <= 0 {
		return orb.Point{}, fmt.Errorf("shape has no area: %w", ErrSamplingExhausted)
	}

	cum := ts.CumAreas()
	for try := 0; try < pointTries; try++ {
		idx := searchCumulative(cum, rnd.Float64()*total)
		pt := randomPointInTriangle(rnd, ts.Triangles[idx])
		if intCoords {
			pt = orb.Point{math.Round(pt.X()), math.Round(pt.Y())}
		}
		if shape.Contains(pt) {
			return pt, nil
		}
	}
	return orb.Point{}, ErrSamplingExhausted
}

// RandomRectangle samples an axis-aligned w x h rectangle that lies entirely
// inside the shape, uniformly over all valid placements. The shape is eroded
// by the window first; the sampled point anchors the rectangle's lower-left
// corner, on the integer grid when intCoords is set.
func RandomRectangle(rnd *rand.Rand, shape geometry.Geometry, w, h float64, intCoords bool) (orb.Polygon, error) {
	eroded, err := geometry.MinkowskiDifference(shape, w, h)
	if err != nil {
		return nil, err
	}
	if eroded.IsEmpty() {
		return nil, fmt.Errorf("%.0fx%.0f window in area %.0f: %w", w, h, shape.Area(), ErrWindowTooLarge)
	}

	anchor, err := RandomPoint(rnd, eroded, nil, intCoords)
	if err != nil {
		return nil, err
	}
	x, y := anchor.X(), anchor.Y()
	return orb.Polygon{orb.Ring{
		{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}, {x, y},
	}}, nil
}

// searchCumulative finds the smallest index i with cum[i+1] >= target, where
// cum is non-decreasing with cum[0] == 0 and target lies in [0, cum[n]).
func searchCumulative(cum []float64, target float64) int {
	left, right := 0, len(cum)-2
	for left < right {
		pivot := (left + right) / 2
		if cum[pivot+1] >= target {
			right = pivot
		} else {
			left = pivot + 1
		}
	}
	return left
}

// randomPointInTriangle draws a uniform point via barycentric coordinates,
// reflecting draws that fall into the mirrored half of the parallelogram.
func randomPointInTriangle(rnd *rand.Rand, t geometry.Triangle) orb.Point {
	u, v := rnd.Float64(), rnd.Float64()
	if u+v > 1 {
		u, v = 1-u, 1-v
	}
	a, b, c := t[0], t[1], t[2]
	return orb.Point{
		a.X() + u*(b.X()-a.X()) + v*(c.X()-a.X()),
		a.Y() + u*(b.Y()-a.Y()) + v*(c.Y()-a.Y()),
	}
}

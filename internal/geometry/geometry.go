// Package geometry implements the polygon operations behind task-window
// sampling: Minkowski erosion and dilation, convex hulls and Delaunay-based
// triangulation of non-convex shapes.
package geometry

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/sentinel-hub/classification-app-backend/internal/crs"
)

// ErrCRSNotProjected is returned by operations that assume locally Euclidean
// coordinates when they receive a geographic-CRS geometry.
var ErrCRSNotProjected = errors.New("operation requires a projected CRS")

// areaEps is the threshold below which clipped fragments are discarded.
const areaEps = 1e-9

// Geometry is a polygon or multi-polygon tagged with its coordinate system.
type Geometry struct {
	Shape orb.MultiPolygon
	CRS   crs.CRS
}

// New normalizes an orb polygon or multi-polygon into a Geometry.
func New(shape orb.Geometry, c crs.CRS) Geometry {
	switch s := shape.(type) {
	case orb.Polygon:
		return Geometry{Shape: orb.MultiPolygon{s}, CRS: c}
	case orb.MultiPolygon:
		return Geometry{Shape: s, CRS: c}
	default:
		return Geometry{CRS: c}
	}
}

// IsEmpty reports whether the geometry has no interior.
func (g Geometry) IsEmpty() bool {
	return len(g.Shape) == 0 || g.Area() < areaEps
}

// Area returns the planar area of the shape.
func (g Geometry) Area() float64 {
	return math.Abs(planar.Area(g.Shape))
}

// Contains reports whether the point lies inside the shape.
func (g Geometry) Contains(p orb.Point) bool {
	return planar.MultiPolygonContains(g.Shape, p)
}

// Transform reprojects the geometry into another coordinate system.
func (g Geometry) Transform(to crs.CRS) (Geometry, error) {
	shape, err := crs.TransformMultiPolygon(g.Shape, g.CRS, to)
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{Shape: shape, CRS: to}, nil
}

// Scale multiplies every coordinate by the per-axis factors, relative to the
// origin. Used to move between linear geo units and pixel units.
func (g Geometry) Scale(fx, fy float64) Geometry {
	out := make(orb.MultiPolygon, len(g.Shape))
	for i, poly := range g.Shape {
		outPoly := make(orb.Polygon, len(poly))
		for j, ring := range poly {
			outRing := make(orb.Ring, len(ring))
			for k, pt := range ring {
				outRing[k] = orb.Point{pt.X() * fx, pt.Y() * fy}
			}
			outPoly[j] = outRing
		}
		out[i] = outPoly
	}
	return Geometry{Shape: out, CRS: g.CRS}
}

// BBox is an axis-aligned bounding box with a coordinate system.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
	CRS                    crs.CRS
}

// NewBBox orders the coordinate pairs so that max >= min on both axes.
func NewBBox(x1, y1, x2, y2 float64, c crs.CRS) BBox {
	return BBox{
		MinX: math.Min(x1, x2),
		MinY: math.Min(y1, y2),
		MaxX: math.Max(x1, x2),
		MaxY: math.Max(y1, y2),
		CRS:  c,
	}
}

// BBoxFromBound converts an orb bound.
func BBoxFromBound(b orb.Bound, c crs.CRS) BBox {
	return BBox{MinX: b.Min.X(), MinY: b.Min.Y(), MaxX: b.Max.X(), MaxY: b.Max.Y(), CRS: c}
}

// IsValid reports whether the box is ordered and has non-zero area.
func (b BBox) IsValid() bool {
	return b.MaxX > b.MinX && b.MaxY > b.MinY
}

// Polygon returns the box as a closed ring polygon.
func (b BBox) Polygon() orb.Polygon {
	return orb.Polygon{orb.Ring{
		{b.MinX, b.MinY}, {b.MaxX, b.MinY}, {b.MaxX, b.MaxY}, {b.MinX, b.MaxY}, {b.MinX, b.MinY},
	}}
}

// Coords returns the box as [min-x, min-y, max-x, max-y].
func (b BBox) Coords() [4]float64 {
	return [4]float64{b.MinX, b.MinY, b.MaxX, b.MaxY}
}

// Bound returns the matching bound of the geometry's shape.
func (g Geometry) Bound() BBox {
	return BBoxFromBound(g.Shape.Bound(), g.CRS)
}

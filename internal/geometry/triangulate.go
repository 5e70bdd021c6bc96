package geometry

import (
	"fmt"
	"math"

	"github.com/fogleman/delaunay"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Triangle is a triangle given by its three corners.
type Triangle [3]orb.Point

// Area returns the triangle's area.
func (t Triangle) Area() float64 {
	a, b, c := t[0], t[1], t[2]
	return math.Abs((b.X()-a.X())*(c.Y()-a.Y())-(b.Y()-a.Y())*(c.X()-a.X())) / 2
}

// Polygon returns the triangle as a closed-ring polygon.
func (t Triangle) Polygon() orb.Polygon {
	return orb.Polygon{orb.Ring{t[0], t[1], t[2], t[0]}}
}

// TriangleSet is a decomposition of a shape into non-overlapping triangles,
// with cumulative areas precomputed for area-weighted selection. It is built
// once per distinct shape and may be reused across draws.
type TriangleSet struct {
	Triangles []Triangle
	cum       []float64
}

// TotalArea returns the summed area of all triangles.
func (ts *TriangleSet) TotalArea() float64 {
	if len(ts.cum) == 0 {
		return 0
	}
	return ts.cum[len(ts.cum)-1]
}

// CumAreas returns the non-decreasing cumulative area array, with a leading
// zero, so CumAreas()[i+1] is the total area of the first i+1 triangles.
func (ts *TriangleSet) CumAreas() []float64 {
	return ts.cum
}

func newTriangleSet(tris []Triangle) *TriangleSet {
	cum := make([]float64, len(tris)+1)
	for i, t := range tris {
		cum[i+1] = cum[i] + t.Area()
	}
	return &TriangleSet{Triangles: tris, cum: cum}
}

// Triangulate decomposes a polygon or multi-polygon into triangles. The
// convex hull of each part is Delaunay-triangulated, every triangle is
// clipped against the original shape, multi-part leftovers are split and
// retriangulated, and zero-area fragments are dropped. The union of the
// returned triangles covers the shape exactly up to floating tolerance.
func Triangulate(shape orb.MultiPolygon) (*TriangleSet, error) {
	var tris []Triangle
	for _, poly := range shape {
		partTris, err := triangulatePolygon(poly)
		if err != nil {
			return nil, err
		}
		tris = append(tris, partTris...)
	}
	return newTriangleSet(tris), nil
}

func triangulatePolygon(poly orb.Polygon) ([]Triangle, error) {
	candidates, err := delaunayTriangles(poly)
	if err != nil {
		return nil, err
	}

	var out []Triangle
	for _, tri := range candidates {
		clipped, err := Intersection(orb.MultiPolygon{tri.Polygon()}, orb.MultiPolygon{poly})
		if err != nil {
			return nil, err
		}
		for _, piece := range clipped {
			if math.Abs(planar.Area(piece)) < areaEps {
				continue
			}
			pieceTris, err := splitPiece(piece)
			if err != nil {
				return nil, err
			}
			out = append(out, pieceTris...)
		}
	}
	return out, nil
}

// splitPiece turns a clipped fragment into triangles. Triangular fragments
// are taken as-is; anything else is ear-clipped along its outer ring.
func splitPiece(piece orb.Polygon) ([]Triangle, error) {
	if len(piece) == 1 {
		ring := piece[0]
		n := len(ring)
		if n > 1 && ring[0] == ring[n-1] {
			n--
		}
		if n == 3 {
			return []Triangle{{ring[0], ring[1], ring[2]}}, nil
		}
	}
	return earClip(piece)
}

func delaunayTriangles(poly orb.Polygon) ([]Triangle, error) {
	var pts []delaunay.Point
	seen := make(map[delaunay.Point]bool)
	for _, ring := range poly {
		for _, p := range ring {
			dp := delaunay.Point{X: p.X(), Y: p.Y()}
			if !seen[dp] {
				seen[dp] = true
				pts = append(pts, dp)
			}
		}
	}
	if len(pts) < 3 {
		return nil, nil
	}
	triangulation, err := delaunay.Triangulate(pts)
	if err != nil {
		return nil, fmt.Errorf("delaunay: %w", err)
	}
	var out []Triangle
	for i := 0; i+2 < len(triangulation.Triangles); i += 3 {
		a := triangulation.Points[triangulation.Triangles[i]]
		b := triangulation.Points[triangulation.Triangles[i+1]]
		c := triangulation.Points[triangulation.Triangles[i+2]]
		t := Triangle{{a.X, a.Y}, {b.X, b.Y}, {c.X, c.Y}}
		if t.Area() > areaEps {
			out = append(out, t)
		}
	}
	return out, nil
}

// earClip triangulates a simple polygon by ear removal. Fragments with holes
// fall back to hull triangulation clipped against the fragment.
func earClip(piece orb.Polygon) ([]Triangle, error) {
	if len(piece) > 1 {
		return clipHullTriangles(piece)
	}
	ring := piece[0]
	n := len(ring)
	if n > 1 && ring[0] == ring[n-1] {
		ring = ring[:n-1]
		n--
	}
	if n < 3 {
		return nil, nil
	}

	// Work on a counter-clockwise copy.
	verts := make([]orb.Point, n)
	copy(verts, ring)
	if signedArea(verts) < 0 {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			verts[i], verts[j] = verts[j], verts[i]
		}
	}

	var out []Triangle
	guard := 0
	for len(verts) > 3 && guard < n*n {
		guard++
		clipped := false
		for i := 0; i < len(verts); i++ {
			prev := verts[(i+len(verts)-1)%len(verts)]
			cur := verts[i]
			next := verts[(i+1)%len(verts)]
			if !isEar(verts, prev, cur, next) {
				continue
			}
			t := Triangle{prev, cur, next}
			if t.Area() > areaEps {
				out = append(out, t)
			}
			verts = append(verts[:i], verts[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			// Degenerate ring; approximate with clipped hull triangles.
			return clipHullTriangles(piece)
		}
	}
	if len(verts) == 3 {
		t := Triangle{verts[0], verts[1], verts[2]}
		if t.Area() > areaEps {
			out = append(out, t)
		}
	}
	return out, nil
}

func clipHullTriangles(piece orb.Polygon) ([]Triangle, error) {
	hullTris, err := delaunayTriangles(piece)
	if err != nil {
		return nil, err
	}
	var out []Triangle
	for _, tri := range hullTris {
		clipped, err := Intersection(orb.MultiPolygon{tri.Polygon()}, orb.MultiPolygon{piece})
		if err != nil {
			return nil, err
		}
		for _, part := range clipped {
			if len(part) == 1 {
				ring := part[0]
				n := len(ring)
				if n > 1 && ring[0] == ring[n-1] {
					n--
				}
				if n == 3 {
					t := Triangle{ring[0], ring[1], ring[2]}
					if t.Area() > areaEps {
						out = append(out, t)
					}
					continue
				}
			}
			// Remaining slivers are dropped; their area is negligible.
		}
	}
	return out, nil
}

func signedArea(verts []orb.Point) float64 {
	var area float64
	for i := 0; i < len(verts); i++ {
		j := (i + 1) % len(verts)
		area += verts[i].X()*verts[j].Y() - verts[j].X()*verts[i].Y()
	}
	return area / 2
}

func isEar(verts []orb.Point, a, b, c orb.Point) bool {
	if (b.X()-a.X())*(c.Y()-a.Y())-(b.Y()-a.Y())*(c.X()-a.X()) <= 0 {
		return false // reflex corner
	}
	tri := Triangle{a, b, c}
	for _, p := range verts {
		if p == a || p == b || p == c {
			continue
		}
		if pointInTriangle(p, tri) {
			return false
		}
	}
	return true
}

func pointInTriangle(p orb.Point, t Triangle) bool {
	sign := func(a, b, c orb.Point) float64 {
		return (a.X()-c.X())*(b.Y()-c.Y()) - (b.X()-c.X())*(a.Y()-c.Y())
	}
	d1 := sign(p, t[0], t[1])
	d2 := sign(p, t[1], t[2])
	d3 := sign(p, t[2], t[0])
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}

// Package crs classifies coordinate reference systems by EPSG code and
// provides transforms between WGS84 and its UTM zones.
package crs

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

// CRS is an EPSG code.
type CRS int

const (
	// Pixel marks coordinates measured in raster pixels rather than in a
	// geodetic system. It counts as projected: pixel space is Euclidean.
	Pixel CRS = 0

	// WGS84 is geographic lon/lat, EPSG:4326.
	WGS84 CRS = 4326

	// POPWeb is the web-mercator projection used by stored vector layers.
	POPWeb CRS = 3857
)

// IsGeographic reports whether the CRS is expressed in degrees.
func (c CRS) IsGeographic() bool {
	return c == WGS84
}

// IsProjected reports whether the CRS is locally Euclidean with linear units.
func (c CRS) IsProjected() bool {
	return !c.IsGeographic()
}

// IsUTM reports whether the CRS is a WGS84 UTM zone.
func (c CRS) IsUTM() bool {
	return (c >= 32601 && c <= 32660) || (c >= 32701 && c <= 32760)
}

func (c CRS) String() string {
	return fmt.Sprintf("EPSG:%d", int(c))
}

// Parse extracts an EPSG code from strings such as "EPSG:32633" or
// "urn:ogc:def:crs:EPSG::32633".
func Parse(s string) (CRS, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 || idx == len(s)-1 {
		return 0, fmt.Errorf("cannot parse CRS from %q", s)
	}
	code, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("cannot parse CRS from %q: %w", s, err)
	}
	return CRS(code), nil
}

// UTMFromLonLat returns the UTM zone CRS containing the given WGS84 point.
func UTMFromLonLat(lon, lat float64) CRS {
	zone := int(math.Floor((lon+180)/6))%60 + 1
	if lat >= 0 {
		return CRS(32600 + zone)
	}
	return CRS(32700 + zone)
}

func (c CRS) utm() (zone int, northern bool, ok bool) {
	switch {
	case c >= 32601 && c <= 32660:
		return int(c) - 32600, true, true
	case c >= 32701 && c <= 32760:
		return int(c) - 32700, false, true
	}
	return 0, false, false
}

func reference(c CRS) (wgs84.CoordinateReferenceSystem, error) {
	if c == WGS84 {
		return wgs84.LonLat(), nil
	}
	if c == POPWeb {
		return wgs84.WebMercator(), nil
	}
	if zone, northern, ok := c.utm(); ok {
		return wgs84.UTM(float64(zone), northern), nil
	}
	return nil, fmt.Errorf("unsupported CRS %s", c)
}

// Transformer returns a point transform between two coordinate systems.
func Transformer(from, to CRS) (func(orb.Point) orb.Point, error) {
	if from == to {
		return func(p orb.Point) orb.Point { return p }, nil
	}
	src, err := reference(from)
	if err != nil {
		return nil, err
	}
	dst, err := reference(to)
	if err != nil {
		return nil, err
	}
	transform := wgs84.Transform(src, dst)
	return func(p orb.Point) orb.Point {
		x, y, _ := transform(p.X(), p.Y(), 0)
		return orb.Point{x, y}
	}, nil
}

// TransformMultiPolygon reprojects every vertex of the shape.
func TransformMultiPolygon(shape orb.MultiPolygon, from, to CRS) (orb.MultiPolygon, error) {
	transform, err := Transformer(from, to)
	if err != nil {
		return nil, err
	}
	out := make(orb.MultiPolygon, len(shape))
	for i, poly := range shape {
		outPoly := make(orb.Polygon, len(poly))
		for j, ring := range poly {
			outRing := make(orb.Ring, len(ring))
			for k, pt := range ring {
				outRing[k] = transform(pt)
			}
			outPoly[j] = outRing
		}
		out[i] = outPoly
	}
	return out, nil
}

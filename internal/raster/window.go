package raster

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/paulmach/orb"

	"github.com/sentinel-hub/classification-app-backend/internal/crs"
	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
	"github.com/sentinel-hub/classification-app-backend/internal/sampler"
)

// Resolution returns the per-axis linear units per pixel of a raster that
// spans the given bounding box.
func Resolution(r *Raster, bbox geometry.BBox) (resX, resY float64) {
	return (bbox.MaxX - bbox.MinX) / float64(r.Width), (bbox.MaxY - bbox.MinY) / float64(r.Height)
}

// SampleWithBBox crops the part of a geo-referenced raster covered by the
// target bounding box, optionally padded outward by a pixel buffer and
// clamped to the raster bounds. It returns the crop together with the geo
// bbox recomputed from the actual pixel window, so the pair stays consistent
// under the y-flipped image convention.
func SampleWithBBox(r *Raster, rasterBBox geometry.BBox, target geometry.BBox, buffer int) (*Raster, geometry.BBox, error) {
	resX, resY := Resolution(r, rasterBBox)

	x1 := int(math.Max(math.Round((target.MinX-rasterBBox.MinX)/resX)-float64(buffer), 0))
	y1 := int(math.Max(math.Round((target.MinY-rasterBBox.MinY)/resY)-float64(buffer), 0))
	x2 := int(math.Min(math.Round((target.MaxX-rasterBBox.MinX)/resX)+float64(buffer), float64(r.Width)))
	y2 := int(math.Min(math.Round((target.MaxY-rasterBBox.MinY)/resY)+float64(buffer), float64(r.Height)))

	return sampleWithWindow(r, rasterBBox, x1, y1, x2, y2)
}

// sampleWithWindow crops by a pixel window given in geo orientation: (x1, y1)
// is the lower-left pixel corner, y counted upward from the minimum-y edge.
func sampleWithWindow(r *Raster, rasterBBox geometry.BBox, x1, y1, x2, y2 int) (*Raster, geometry.BBox, error) {
	crop, err := r.Crop(x1, r.Height-y2, x2, r.Height-y1)
	if err != nil {
		return nil, geometry.BBox{}, err
	}
	resX, resY := Resolution(r, rasterBBox)
	bbox := geometry.NewBBox(
		rasterBBox.MinX+resX*float64(x1),
		rasterBBox.MinY+resY*float64(y1),
		rasterBBox.MinX+resX*float64(x2),
		rasterBBox.MinY+resY*float64(y2),
		rasterBBox.CRS,
	)
	return crop, bbox, nil
}

// SampleRandomWindow crops a uniformly random w x h pixel window out of a
// geo-referenced raster and returns the crop with its geo bounding box.
func SampleRandomWindow(rnd *rand.Rand, r *Raster, rasterBBox geometry.BBox, w, h int) (*Raster, geometry.BBox, error) {
	if w > r.Width || h > r.Height {
		return nil, geometry.BBox{}, fmt.Errorf("%dx%d window in %dx%d raster: %w", w, h, r.Width, r.Height, sampler.ErrWindowTooLarge)
	}

	extent := geometry.New(orb.Polygon{orb.Ring{
		{0, 0}, {float64(r.Width), 0}, {float64(r.Width), float64(r.Height)}, {0, float64(r.Height)}, {0, 0},
	}}, crs.Pixel)

	rect, err := sampler.RandomRectangle(rnd, extent, float64(w), float64(h), true)
	if err != nil {
		return nil, geometry.BBox{}, err
	}
	bound := rect.Bound()
	return sampleWithWindow(r, rasterBBox,
		int(bound.Min.X()), int(bound.Min.Y()), int(bound.Max.X()), int(bound.Max.Y()))
}

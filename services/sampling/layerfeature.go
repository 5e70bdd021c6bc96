package sampling

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"github.com/sentinel-hub/classification-app-backend/internal/config"
	"github.com/sentinel-hub/classification-app-backend/internal/crs"
	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
	"github.com/sentinel-hub/classification-app-backend/internal/imaging"
	"github.com/sentinel-hub/classification-app-backend/internal/provider"
	"github.com/sentinel-hub/classification-app-backend/internal/raster"
	"github.com/sentinel-hub/classification-app-backend/internal/sampler"
)

// simplifyTolerance is applied in pixel units before sampling; feature
// outlines routinely carry far more vertices than window placement needs.
const simplifyTolerance = 2

// LayerFeatureSampling cycles through the features of a stored vector layer
// and cuts a random window out of each feature's pre-rendered mask raster.
type LayerFeatureSampling struct {
	rasters provider.RasterFetchProvider
	source  *config.Source
	win     WindowConfig
	cycle   featureCycle
}

// NewLayerFeatureSampling builds the strategy. A non-nil interval restricts
// it to a slice of the layer, which lets several workers split one layer.
func NewLayerFeatureSampling(layers provider.VectorLayerProvider, rasters provider.RasterFetchProvider, source *config.Source, win WindowConfig, interval *[2]int, rnd *rand.Rand) *LayerFeatureSampling {
	return &LayerFeatureSampling{
		rasters: rasters,
		source:  source,
		win:     win,
		cycle: featureCycle{
			fetch: func(ctx context.Context) ([]*provider.Feature, error) {
				return layers.ListFeatures(ctx, source.Layer, interval)
			},
			rnd: rnd,
		},
	}
}

func (s *LayerFeatureSampling) NextTask(ctx context.Context) (*Task, error) {
	feature, err := s.cycle.next(ctx)
	if err != nil {
		return nil, err
	}
	return s.makeTask(ctx, feature)
}

func (s *LayerFeatureSampling) makeTask(ctx context.Context, feature *provider.Feature) (*Task, error) {
	maskURL, err := maskObjectPath(feature)
	if err != nil {
		return nil, err
	}
	mask, bbox, err := s.rasters.Fetch(ctx, maskURL)
	if err != nil {
		return nil, err
	}
	if bbox == nil {
		return nil, fmt.Errorf("mask %s carries no geo-referencing", maskURL)
	}

	sampled, sampledBBox, vector, err := s.sampleFeatureWindow(mask, *bbox, feature.Geometry)
	if err != nil {
		return nil, err
	}

	class := s.source.Layers[0].Classes[0]
	rgb, err := imaging.HexToRGB(class.Color)
	if err != nil {
		return nil, err
	}
	encoded, err := imaging.EncodePNG(imaging.ColorizeBinary(sampled, rgb))
	if err != nil {
		return nil, err
	}

	acqTime, err := featureDate(feature)
	if err != nil {
		return nil, err
	}

	task := newTask(sampledBBox, acqTime, s.win.Width, s.win.Height, []LayerData{{
		Layer: s.source.Layers[0].Title,
		Image: encoded,
	}})
	task.FeatureID = feature.ID
	task.VectorData = []*geojson.Geometry{geojson.NewGeometry(vector)}
	return task, nil
}

// sampleFeatureWindow places the window inside the feature outline, working
// in the mask's pixel units so erosion distances match window pixels. It
// returns the cropped mask, its bbox and the reduced outline used for
// sampling, the latter back in geo coordinates.
func (s *LayerFeatureSampling) sampleFeatureWindow(mask *raster.Raster, bbox geometry.BBox, outline geometry.Geometry) (*raster.Raster, geometry.BBox, orb.MultiPolygon, error) {
	resX, resY := raster.Resolution(mask, bbox)

	outline, err := outline.Transform(bbox.CRS)
	if err != nil {
		return nil, geometry.BBox{}, nil, err
	}
	extent := geometry.NewBBox(bbox.MinX/resX, bbox.MinY/resY, bbox.MaxX/resX, bbox.MaxY/resY, crs.Pixel)
	pixOutline := geometry.Geometry{Shape: outline.Shape, CRS: crs.Pixel}.Scale(1/resX, 1/resY)

	maxDim := s.win.Width
	if s.win.Height > maxDim {
		maxDim = s.win.Height
	}
	buffered, err := geometry.Buffer(pixOutline, float64(maxDim))
	if err != nil {
		return nil, geometry.BBox{}, nil, err
	}

	shape := buffered.Shape
	if reduced, ok := simplify.DouglasPeucker(simplifyTolerance).Simplify(shape.Clone()).(orb.MultiPolygon); ok {
		shape = reduced
	}
	shape, err = geometry.Intersection(shape, orb.MultiPolygon{extent.Polygon()})
	if err != nil {
		return nil, geometry.BBox{}, nil, err
	}

	rect, err := sampler.RandomRectangle(s.cycle.rnd, geometry.Geometry{Shape: shape, CRS: crs.Pixel},
		float64(s.win.Width), float64(s.win.Height), true)
	if err != nil {
		return nil, geometry.BBox{}, nil, err
	}
	b := rect.Bound()
	target := geometry.NewBBox(b.Min[0]*resX, b.Min[1]*resY, b.Max[0]*resX, b.Max[1]*resY, bbox.CRS)

	sampled, sampledBBox, err := raster.SampleWithBBox(mask, bbox, target, 0)
	if err != nil {
		return nil, geometry.BBox{}, nil, err
	}

	vector := geometry.Geometry{Shape: shape, CRS: crs.Pixel}.Scale(resX, resY).Shape
	return sampled, sampledBBox, vector, nil
}

// maskObjectPath digs the rendered mask URL out of the feature attributes.
func maskObjectPath(feature *provider.Feature) (string, error) {
	masks, ok := feature.Properties["Mask"].([]any)
	if !ok || len(masks) == 0 {
		return "", fmt.Errorf("feature %d has no mask attachment", feature.ID)
	}
	entry, ok := masks[0].(map[string]any)
	if !ok {
		return "", fmt.Errorf("feature %d has a malformed mask attachment", feature.ID)
	}
	url, ok := entry["objectPath"].(string)
	if !ok || url == "" {
		return "", fmt.Errorf("feature %d mask has no object path", feature.ID)
	}
	return url, nil
}

// featureDate reads the acquisition date of the imagery the feature was
// labelled on.
func featureDate(feature *provider.Feature) (time.Time, error) {
	raw, ok := feature.Properties["SAT_IMAGE_DATE"].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("feature %d has no acquisition date", feature.ID)
	}
	day, _, _ := strings.Cut(raw, "T")
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return time.Time{}, fmt.Errorf("feature %d acquisition date: %w", feature.ID, err)
	}
	return t, nil
}

package sampling

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/sentinel-hub/classification-app-backend/internal/config"
	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
	"github.com/sentinel-hub/classification-app-backend/internal/imaging"
	"github.com/sentinel-hub/classification-app-backend/internal/provider"
	"github.com/sentinel-hub/classification-app-backend/internal/raster"
)

// legacyResolution is the ground resolution the old application rendered
// masks at, in meters per pixel.
const legacyResolution = 10.0

// legacyClassLayer maps the old application's per-class mask names onto the
// layers of the current UI.
var legacyClassLayer = map[string]string{
	"Opaque clouds": "Clouds",
	"Thick clouds":  "Clouds",
	"Thin clouds":   "Clouds",
	"Shadows":       "Shadows",
	"Land":          "Surface",
	"Water":         "Surface",
	"Snow":          "Surface",
}

// LegacyResultsSampling replays results stored by the old application. Each
// feature records a tile id plus a pixel offset and size; the bbox is
// reconstructed from the tile origin and the masks are merged per layer.
type LegacyResultsSampling struct {
	index   provider.TileIndexProvider
	rasters provider.RasterFetchProvider
	source  *config.Source
	cycle   featureCycle
}

func NewLegacyResultsSampling(layers provider.VectorLayerProvider, index provider.TileIndexProvider, rasters provider.RasterFetchProvider, source *config.Source, interval *[2]int, rnd *rand.Rand) *LegacyResultsSampling {
	return &LegacyResultsSampling{
		index:   index,
		rasters: rasters,
		source:  source,
		cycle: featureCycle{
			fetch: func(ctx context.Context) ([]*provider.Feature, error) {
				return layers.ListFeatures(ctx, source.Layer, interval)
			},
			rnd: rnd,
		},
	}
}

func (s *LegacyResultsSampling) NextTask(ctx context.Context) (*Task, error) {
	feature, err := s.cycle.next(ctx)
	if err != nil {
		return nil, err
	}
	return s.makeTask(ctx, feature)
}

func (s *LegacyResultsSampling) makeTask(ctx context.Context, feature *provider.Feature) (*Task, error) {
	tileID, err := intProp(feature, "TileId")
	if err != nil {
		return nil, err
	}
	sizeX, err := intProp(feature, "Size X")
	if err != nil {
		return nil, err
	}
	sizeY, err := intProp(feature, "Size Y")
	if err != nil {
		return nil, err
	}
	offsetX, err := intProp(feature, "Offset X")
	if err != nil {
		return nil, err
	}
	offsetY, err := intProp(feature, "Offset Y")
	if err != nil {
		return nil, err
	}

	info, err := s.index.GetTileInfo(ctx, tileID)
	if err != nil {
		return nil, err
	}
	bbox := legacyBBox(info, offsetX, offsetY, sizeX, sizeY)

	data, err := s.collectMasks(ctx, feature)
	if err != nil {
		return nil, err
	}

	task := newTask(bbox, dateOnly(info.SensingTime), sizeX, sizeY, data)
	task.TileID = strconv.Itoa(tileID)
	task.FeatureID = feature.ID
	return task, nil
}

// legacyBBox reconstructs a result bbox from the tile origin. Offsets count
// pixels right and down from the tile's upper-left corner.
func legacyBBox(info *provider.TileInfo, offsetX, offsetY, sizeX, sizeY int) geometry.BBox {
	x := info.OriginX + legacyResolution*float64(offsetX)
	y := info.OriginY - legacyResolution*float64(offsetY)
	return geometry.NewBBox(x, y,
		x+legacyResolution*float64(sizeX),
		y-legacyResolution*float64(sizeY),
		info.CRS)
}

// collectMasks downloads the per-class masks, groups them by target layer
// and merges each group into one coloured image.
func (s *LegacyResultsSampling) collectMasks(ctx context.Context, feature *provider.Feature) ([]LayerData, error) {
	entries, ok := feature.Properties["Masks"].([]any)
	if !ok || len(entries) == 0 {
		return nil, fmt.Errorf("feature %d has no mask attachments", feature.ID)
	}

	type layerMasks map[string]*raster.Raster
	grouped := map[string]layerMasks{}
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("feature %d has a malformed mask attachment", feature.ID)
		}
		url, _ := entry["objectPath"].(string)
		name, _ := entry["niceName"].(string)
		className := legacyClassName(name)
		layerName, known := legacyClassLayer[className]
		if !known {
			continue
		}
		mask, _, err := s.rasters.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		if grouped[layerName] == nil {
			grouped[layerName] = layerMasks{}
		}
		grouped[layerName][className] = mask
	}

	data := make([]LayerData, 0, len(s.source.Layers))
	for _, layer := range s.source.Layers {
		classes := grouped[layer.Title]
		if classes == nil {
			continue
		}
		var masks []*raster.Raster
		var colors []imaging.RGB
		for _, class := range layer.Classes {
			mask, present := classes[class.Title]
			if !present {
				continue
			}
			rgb, err := imaging.HexToRGB(class.Color)
			if err != nil {
				return nil, err
			}
			masks = append(masks, mask)
			colors = append(colors, rgb)
		}
		if len(masks) == 0 {
			continue
		}
		merged, err := imaging.MergeMasks(masks, colors)
		if err != nil {
			return nil, err
		}
		encoded, err := imaging.EncodePNG(merged)
		if err != nil {
			return nil, err
		}
		data = append(data, LayerData{Layer: layer.Title, Image: encoded})
	}
	return data, nil
}

// legacyClassName extracts the class from a mask file name such as
// "result_42_Opaque clouds.png".
func legacyClassName(name string) string {
	if i := strings.LastIndex(name, "_"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	return name
}

// intProp reads a numeric feature attribute that may arrive as a JSON
// number or a string.
func intProp(feature *provider.Feature, name string) (int, error) {
	switch v := feature.Properties[name].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("feature %d attribute %q: %w", feature.ID, name, err)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("feature %d has no attribute %q", feature.ID, name)
	default:
		return 0, fmt.Errorf("feature %d attribute %q has unexpected type %T", feature.ID, name, v)
	}
}

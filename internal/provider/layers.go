package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/sentinel-hub/classification-app-backend/internal/crs"
	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
)

// LayerClient lists stored vector features from a layer service.
type LayerClient struct {
	baseURL string
	http    *http.Client
}

// NewLayerClient creates a vector layer client.
func NewLayerClient(baseURL string) *LayerClient {
	return &LayerClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type layerFeaturePayload struct {
	AtID       string          `json:"@id"`
	ID         json.Number     `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	CRS        crsRef          `json:"crs"`
	Properties map[string]any  `json:"properties"`
}

// ListFeatures fetches the features of a layer, optionally sliced to the
// half-open index interval.
func (c *LayerClient) ListFeatures(ctx context.Context, layerID int, interval *[2]int) ([]*Feature, error) {
	body, err := getBytes(ctx, c.http, fmt.Sprintf("%s/layers/%d/features", c.baseURL, layerID))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Features []layerFeaturePayload `json:"features"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("layer %d: %w", layerID, err)
	}

	items := payload.Features
	if interval != nil {
		lo, hi := interval[0], interval[1]
		if lo < 0 {
			lo = 0
		}
		if hi > len(items) {
			hi = len(items)
		}
		if lo >= hi {
			return nil, nil
		}
		items = items[lo:hi]
	}

	features := make([]*Feature, 0, len(items))
	for _, item := range items {
		f, err := item.toFeature(layerID)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, nil
}

func (p *layerFeaturePayload) toFeature(layerID int) (*Feature, error) {
	id, err := featureID(p)
	if err != nil {
		return nil, fmt.Errorf("layer %d: %w", layerID, err)
	}

	f := &Feature{ID: id, Properties: p.Properties}
	if len(p.Geometry) > 0 {
		g, err := geojson.UnmarshalGeometry(p.Geometry)
		if err != nil {
			return nil, fmt.Errorf("layer %d feature %d geometry: %w", layerID, id, err)
		}
		featureCRS := crs.POPWeb
		if p.CRS.Properties.Name != "" {
			featureCRS, err = crs.Parse(p.CRS.Properties.Name)
			if err != nil {
				return nil, fmt.Errorf("layer %d feature %d: %w", layerID, id, err)
			}
		}
		f.Geometry = geometry.New(g.Geometry(), featureCRS)
	}
	return f, nil
}

// featureID prefers the numeric id field, falling back to the trailing
// number of an "@id" reference such as "feature/123".
func featureID(p *layerFeaturePayload) (int, error) {
	if p.ID != "" {
		return strconv.Atoi(p.ID.String())
	}
	if idx := strings.LastIndex(p.AtID, "/"); idx >= 0 {
		return strconv.Atoi(p.AtID[idx+1:])
	}
	return 0, fmt.Errorf("feature has no id")
}

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/sentinel-hub/classification-app-backend/internal/crs"
	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
)

// FeatureServiceClient queries a WFS-style tile search endpoint.
type FeatureServiceClient struct {
	baseURL string
	http    *http.Client
}

// NewFeatureServiceClient creates a feature service client.
func NewFeatureServiceClient(baseURL string) *FeatureServiceClient {
	return &FeatureServiceClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type featureTilePayload struct {
	Geometry   json.RawMessage `json:"geometry"`
	Properties struct {
		ID   string  `json:"id"`
		CRS  string  `json:"crs"`
		Date string  `json:"date"`
		Area float64 `json:"area"`
	} `json:"properties"`
}

// Query searches for tiles intersecting the bbox within the time interval,
// keeping only those at or under the cloud cover limit. Returned tile
// geometries are in the bbox's coordinate system; the tile's native CRS comes
// from the feature properties.
func (c *FeatureServiceClient) Query(ctx context.Context, bbox geometry.BBox, from, to time.Time, maxCloudCover float64) ([]*TileInfo, error) {
	params := url.Values{}
	params.Set("bbox", fmt.Sprintf("%f,%f,%f,%f", bbox.MinX, bbox.MinY, bbox.MaxX, bbox.MaxY))
	params.Set("crs", bbox.CRS.String())
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))
	params.Set("maxcc", fmt.Sprintf("%f", maxCloudCover))

	body, err := getBytes(ctx, c.http, fmt.Sprintf("%s?%s", c.baseURL, params.Encode()))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Features []featureTilePayload `json:"features"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("feature query: %w", err)
	}

	tiles := make([]*TileInfo, 0, len(payload.Features))
	for _, f := range payload.Features {
		tile, err := f.toTileInfo(bbox.CRS)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, tile)
	}
	return tiles, nil
}

func (f *featureTilePayload) toTileInfo(deliveredCRS crs.CRS) (*TileInfo, error) {
	info := &TileInfo{ESAID: f.Properties.ID, CoverArea: f.Properties.Area}

	var err error
	if f.Properties.CRS != "" {
		info.CRS, err = crs.Parse(f.Properties.CRS)
		if err != nil {
			return nil, fmt.Errorf("tile %s: %w", f.Properties.ID, err)
		}
	}
	if f.Properties.Date != "" {
		info.SensingTime, err = time.Parse("2006-01-02", f.Properties.Date)
		if err != nil {
			return nil, fmt.Errorf("tile %s date: %w", f.Properties.ID, err)
		}
	}
	if len(f.Geometry) > 0 {
		g, err := geojson.UnmarshalGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("tile %s geometry: %w", f.Properties.ID, err)
		}
		info.CoverGeometry = geometry.New(g.Geometry(), deliveredCRS)
	}
	return info, nil
}

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/sentinel-hub/classification-app-backend/internal/crs"
	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
	"github.com/sentinel-hub/classification-app-backend/internal/schema"
)

// sensingTimeLayout matches index timestamps such as
// "2018-03-01T10:20:30.123456".
const sensingTimeLayout = "2006-01-02T15:04:05.000000"

// IndexClient talks to the tile index REST endpoint.
type IndexClient struct {
	baseURL   string
	http      *http.Client
	validator *schema.Validator
}

// NewIndexClient creates a tile index client. The validator may be nil to
// skip payload validation.
func NewIndexClient(baseURL string, validator *schema.Validator) *IndexClient {
	return &IndexClient{
		baseURL:   baseURL,
		http:      &http.Client{Timeout: 30 * time.Second},
		validator: validator,
	}
}

type crsRef struct {
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

type tileInfoPayload struct {
	ID            json.Number     `json:"id"`
	PdiID         string          `json:"pdiId"`
	SensingTime   string          `json:"sensingTime"`
	CoverArea     json.Number     `json:"coverArea"`
	CoverGeometry json.RawMessage `json:"coverGeometry"`
	TileOrigin    struct {
		Coordinates []float64 `json:"coordinates"`
		CRS         crsRef    `json:"crs"`
	} `json:"tileOrigin"`
}

// GetTileInfo fetches metadata for a tile by its archive index id.
func (c *IndexClient) GetTileInfo(ctx context.Context, id int) (*TileInfo, error) {
	return c.getTile(ctx, strconv.Itoa(id))
}

// GetArchiveSize returns the index id of the most recent tile, which equals
// the archive size.
func (c *IndexClient) GetArchiveSize(ctx context.Context) (int, error) {
	info, err := c.getTile(ctx, "lastTile")
	if err != nil {
		return 0, err
	}
	return info.IndexID, nil
}

func (c *IndexClient) getTile(ctx context.Context, key string) (*TileInfo, error) {
	body, err := getBytes(ctx, c.http, fmt.Sprintf("%s/%s", c.baseURL, key))
	if err != nil {
		return nil, err
	}
	if c.validator != nil {
		if err := c.validator.ValidateBytes(body); err != nil {
			return nil, fmt.Errorf("tile %s: %w", key, err)
		}
	}

	var payload tileInfoPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("tile %s: %w", key, err)
	}
	return payload.toTileInfo()
}

func (p *tileInfoPayload) toTileInfo() (*TileInfo, error) {
	indexID, err := strconv.Atoi(p.ID.String())
	if err != nil {
		return nil, fmt.Errorf("tile index id %q: %w", p.ID, err)
	}

	info := &TileInfo{IndexID: indexID, ESAID: p.PdiID}

	if p.SensingTime != "" {
		info.SensingTime, err = time.Parse(sensingTimeLayout, p.SensingTime)
		if err != nil {
			return nil, fmt.Errorf("tile %d sensing time: %w", indexID, err)
		}
	}
	if p.CoverArea != "" {
		info.CoverArea, err = p.CoverArea.Float64()
		if err != nil {
			return nil, fmt.Errorf("tile %d cover area: %w", indexID, err)
		}
	}
	if p.TileOrigin.CRS.Properties.Name != "" {
		info.CRS, err = crs.Parse(p.TileOrigin.CRS.Properties.Name)
		if err != nil {
			return nil, fmt.Errorf("tile %d: %w", indexID, err)
		}
	}
	if len(p.TileOrigin.Coordinates) >= 2 {
		info.OriginX = p.TileOrigin.Coordinates[0]
		info.OriginY = p.TileOrigin.Coordinates[1]
	}
	if len(p.CoverGeometry) > 0 {
		g, err := geojson.UnmarshalGeometry(p.CoverGeometry)
		if err != nil {
			return nil, fmt.Errorf("tile %d cover geometry: %w", indexID, err)
		}
		info.CoverGeometry = geometry.New(g.Geometry(), info.CRS)
	}
	return info, nil
}

// getBytes performs a GET and returns the body, mapping transport and
// non-200 failures onto ErrExternalData.
func getBytes(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrExternalData, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrExternalData, url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrExternalData, url, err)
	}
	return body, nil
}

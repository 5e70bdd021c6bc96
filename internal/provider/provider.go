// Package provider defines the external collaborators the sampling engine
// draws candidate data from, together with their HTTP implementations. The
// engine never retries a failed fetch; failures surface as
// ErrExternalData and the strategy decides whether to draw a different
// candidate.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sentinel-hub/classification-app-backend/internal/crs"
	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
	"github.com/sentinel-hub/classification-app-backend/internal/raster"
)

// ErrExternalData is returned when a collaborator fetch fails or times out.
var ErrExternalData = errors.New("external data unavailable")

// TileInfo describes one unit of satellite coverage known to a tile index or
// feature service.
type TileInfo struct {
	// IndexID is the tile's position in the archive index.
	IndexID int
	// ESAID is the provider-side product identifier.
	ESAID string
	// SensingTime is the acquisition time of the tile.
	SensingTime time.Time
	// CRS is the tile's native projected coordinate system.
	CRS crs.CRS
	// CoverGeometry is the data coverage footprint. Its CRS is the system
	// the coordinates were delivered in, which for feature-service results
	// differs from the tile's native CRS.
	CoverGeometry geometry.Geometry
	// CoverArea is the covered area in square units of the native CRS.
	CoverArea float64
	// OriginX, OriginY are the geo coordinates of the tile's upper-left
	// corner, used by offset-based legacy results.
	OriginX, OriginY float64
}

// Feature is a stored vector record with its attributes.
type Feature struct {
	ID         int
	Geometry   geometry.Geometry
	Properties map[string]any
}

// TileIndexProvider exposes a numbered archive of tiles.
type TileIndexProvider interface {
	// GetTileInfo fetches metadata for one tile by its index id.
	GetTileInfo(ctx context.Context, id int) (*TileInfo, error)
	// GetArchiveSize returns the current number of tiles in the archive.
	GetArchiveSize(ctx context.Context) (int, error)
}

// FeatureServiceProvider searches tiles by area, time and cloud cover.
type FeatureServiceProvider interface {
	Query(ctx context.Context, bbox geometry.BBox, from, to time.Time, maxCloudCover float64) ([]*TileInfo, error)
}

// VectorLayerProvider lists the features of a stored vector layer. A non-nil
// interval restricts the listing to [interval[0], interval[1]).
type VectorLayerProvider interface {
	ListFeatures(ctx context.Context, layerID int, interval *[2]int) ([]*Feature, error)
}

// RasterFetchProvider downloads a raster blob by URL. The returned bounding
// box is nil when the payload carries no geo-referencing.
type RasterFetchProvider interface {
	Fetch(ctx context.Context, url string) (*raster.Raster, *geometry.BBox, error)
}

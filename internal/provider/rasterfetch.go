package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
	"github.com/sentinel-hub/classification-app-backend/internal/raster"
)

// RasterClient downloads raster blobs over HTTP. GeoTIFF payloads come back
// with their geo bounding box; plain images with a nil one.
type RasterClient struct {
	http *http.Client
}

// NewRasterClient creates a raster download client.
func NewRasterClient() *RasterClient {
	return &RasterClient{http: &http.Client{Timeout: 60 * time.Second}}
}

// Fetch downloads and decodes a raster by URL.
func (c *RasterClient) Fetch(ctx context.Context, url string) (*raster.Raster, *geometry.BBox, error) {
	data, err := getBytes(ctx, c.http, url)
	if err != nil {
		return nil, nil, err
	}
	return DecodeRasterBlob(data)
}

// DecodeRasterBlob decodes fetched raster bytes, recovering geo-referencing
// when the payload is a GeoTIFF.
func DecodeRasterBlob(data []byte) (*raster.Raster, *geometry.BBox, error) {
	if raster.IsTIFF(data) {
		r, bbox, err := raster.DecodeGeoTIFF(data)
		if err != nil {
			return nil, nil, err
		}
		return r, &bbox, nil
	}
	r, err := raster.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return r, nil, nil
}

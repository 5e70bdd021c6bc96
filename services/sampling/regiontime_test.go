package sampling

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/sentinel-hub/classification-app-backend/internal/crs"
	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
	"github.com/sentinel-hub/classification-app-backend/internal/provider"
)

func wgs84AOI() geometry.Geometry {
	return geometry.Geometry{
		Shape: orb.MultiPolygon{orb.Polygon{orb.Ring{
			{14.0, 46.0}, {15.0, 46.0}, {15.0, 46.5}, {14.0, 46.5}, {14.0, 46.0},
		}}},
		CRS: crs.WGS84,
	}
}

func regionTile() *provider.TileInfo {
	return &provider.TileInfo{
		ESAID:       "S2A_OPER_REGION",
		SensingTime: time.Date(2017, 7, 14, 10, 0, 0, 0, time.UTC),
		CRS:         crs.CRS(32633),
		CoverGeometry: geometry.Geometry{
			Shape: orb.MultiPolygon{orb.Polygon{orb.Ring{
				{13.5, 45.5}, {15.5, 45.5}, {15.5, 47.0}, {13.5, 47.0}, {13.5, 45.5},
			}}},
			CRS: crs.WGS84,
		},
	}
}

func TestSplitInterval(t *testing.T) {
	from := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

	// Short intervals stay whole.
	chunks := splitInterval(from, from.Add(10*24*time.Hour), maxChunkSpan)
	assert.Len(t, chunks, 1)
	assert.Equal(t, from, chunks[0][0])

	// A year splits into 14 even chunks of at most four weeks.
	to := from.Add(365 * 24 * time.Hour)
	chunks = splitInterval(from, to, maxChunkSpan)
	assert.Len(t, chunks, 14)
	assert.Equal(t, from, chunks[0][0])
	assert.Equal(t, to, chunks[len(chunks)-1][1])
	for i, chunk := range chunks {
		assert.LessOrEqual(t, chunk[1].Sub(chunk[0]), maxChunkSpan)
		if i > 0 {
			assert.Equal(t, chunks[i-1][1], chunk[0])
		}
	}
}

func TestRegionTimeSamplingDrawsTask(t *testing.T) {
	service := &fakeFeatureService{tiles: []*provider.TileInfo{regionTile()}}
	from := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2017, 12, 31, 0, 0, 0, 0, time.UTC)

	s, err := NewRegionTimeSampling(service, wgs84AOI(), from, to, 0.2,
		WindowConfig{Width: 50, Height: 50, Resolution: 10, Buffer: 5}, rand.New(rand.NewSource(4)))
	assert.NoError(t, err)

	task, err := s.NextTask(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "S2A_OPER_REGION", task.TileID)
	assert.Equal(t, time.Date(2017, 7, 14, 0, 0, 0, 0, time.UTC), task.AcqTime)

	// The window is placed in the tile's native UTM zone.
	assert.Equal(t, crs.CRS(32633), task.BBox.CRS)
	assert.InDelta(t, 600, task.BBox.MaxX-task.BBox.MinX, 1e-6)
	assert.Greater(t, task.BBox.MinY, 5000000.0)
}

func TestRegionTimeSamplingNoTiles(t *testing.T) {
	service := &fakeFeatureService{}
	from := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC)

	s, err := NewRegionTimeSampling(service, wgs84AOI(), from, to, 1,
		WindowConfig{Width: 50, Height: 50, Resolution: 10, Buffer: 5}, rand.New(rand.NewSource(4)))
	assert.NoError(t, err)

	_, err = s.NextTask(context.Background())
	assert.ErrorIs(t, err, ErrSamplingFailed)
	// Every attempt probed every time chunk before giving up.
	assert.Equal(t, maxDrawAttempts*len(s.chunks), service.calls)
}

func TestRegionTimeSamplingServiceError(t *testing.T) {
	service := &fakeFeatureService{err: provider.ErrExternalData}
	from := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2017, 2, 1, 0, 0, 0, 0, time.UTC)

	s, err := NewRegionTimeSampling(service, wgs84AOI(), from, to, 1,
		WindowConfig{Width: 50, Height: 50, Resolution: 10, Buffer: 5}, rand.New(rand.NewSource(4)))
	assert.NoError(t, err)

	_, err = s.NextTask(context.Background())
	assert.ErrorIs(t, err, provider.ErrExternalData)
	assert.Equal(t, 1, service.calls)
}

func TestRegionTimeSamplingRejectsEmptyAOI(t *testing.T) {
	from := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := NewRegionTimeSampling(&fakeFeatureService{}, geometry.Geometry{CRS: crs.WGS84},
		from, from.Add(time.Hour), 1, WindowConfig{Width: 10, Height: 10, Resolution: 10}, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

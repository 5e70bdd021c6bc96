package sampling

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
	"github.com/sentinel-hub/classification-app-backend/internal/provider"
	"github.com/sentinel-hub/classification-app-backend/internal/sampler"
)

// maxChunkSpan caps a single feature-service time query. Longer intervals are
// split into equal chunks no wider than this.
const maxChunkSpan = 4 * 7 * 24 * time.Hour

const (
	probeEpsGeographic = 0.0001
	probeEpsProjected  = 0.01
)

// RegionTimeSampling draws tasks from a fixed area of interest and time
// interval: probe a random point of the AOI, query the feature service for
// tiles around it one time chunk at a time, then place a window inside the
// tile-AOI intersection.
type RegionTimeSampling struct {
	service       provider.FeatureServiceProvider
	aoi           geometry.Geometry
	chunks        [][2]time.Time
	maxCloudCover float64
	win           WindowConfig
	rnd           *rand.Rand

	tris *geometry.TriangleSet
}

func NewRegionTimeSampling(service provider.FeatureServiceProvider, aoi geometry.Geometry, from, to time.Time, maxCloudCover float64, win WindowConfig, rnd *rand.Rand) (*RegionTimeSampling, error) {
	if aoi.IsEmpty() {
		return nil, fmt.Errorf("empty area of interest")
	}
	tris, err := geometry.Triangulate(aoi.Shape)
	if err != nil {
		return nil, fmt.Errorf("triangulating area of interest: %w", err)
	}
	return &RegionTimeSampling{
		service:       service,
		aoi:           aoi,
		chunks:        splitInterval(from, to, maxChunkSpan),
		maxCloudCover: maxCloudCover,
		win:           win,
		rnd:           rnd,
		tris:          tris,
	}, nil
}

func (s *RegionTimeSampling) NextTask(ctx context.Context) (*Task, error) {
	return drawTask(maxDrawAttempts, func() (*Task, error) {
		return s.attempt(ctx)
	})
}

func (s *RegionTimeSampling) attempt(ctx context.Context) (*Task, error) {
	tile, err := s.randomTile(ctx)
	if err != nil {
		return nil, err
	}
	geom, err := s.samplingGeometry(tile)
	if err != nil {
		return nil, err
	}
	bbox, err := sampleWindowBBox(s.rnd, geom, s.win)
	if err != nil {
		return nil, err
	}
	task := newTask(bbox, dateOnly(tile.SensingTime), s.win.Width, s.win.Height, nil)
	task.TileID = tile.ESAID
	return task, nil
}

// randomTile probes a random AOI point and walks the time chunks in a fresh
// random order until one yields tiles.
func (s *RegionTimeSampling) randomTile(ctx context.Context) (*provider.TileInfo, error) {
	pt, err := sampler.RandomPoint(s.rnd, s.aoi, s.tris, false)
	if err != nil {
		return nil, err
	}
	eps := probeEpsProjected
	if s.aoi.CRS.IsGeographic() {
		eps = probeEpsGeographic
	}
	probe := geometry.NewBBox(pt[0]-eps, pt[1]-eps, pt[0]+eps, pt[1]+eps, s.aoi.CRS)

	order := s.rnd.Perm(len(s.chunks))
	for _, i := range order {
		chunk := s.chunks[i]
		tiles, err := s.service.Query(ctx, probe, chunk[0], chunk[1], s.maxCloudCover)
		if err != nil {
			return nil, err
		}
		if len(tiles) > 0 {
			return tiles[s.rnd.Intn(len(tiles))], nil
		}
	}
	return nil, fmt.Errorf("no tiles found around point (%f, %f)", pt[0], pt[1])
}

// samplingGeometry intersects the tile cover with the AOI in the tile's
// native UTM CRS.
func (s *RegionTimeSampling) samplingGeometry(tile *provider.TileInfo) (geometry.Geometry, error) {
	if !tile.CRS.IsUTM() {
		return geometry.Geometry{}, fmt.Errorf("tile %s is not in a UTM CRS (%s)", tile.ESAID, tile.CRS)
	}
	tileGeom, err := tile.CoverGeometry.Transform(tile.CRS)
	if err != nil {
		return geometry.Geometry{}, err
	}
	aoi, err := s.aoi.Transform(tile.CRS)
	if err != nil {
		return geometry.Geometry{}, err
	}
	shape, err := geometry.Intersection(tileGeom.Shape, aoi.Shape)
	if err != nil {
		return geometry.Geometry{}, err
	}
	return geometry.Geometry{Shape: shape, CRS: tile.CRS}, nil
}

// splitInterval cuts [from, to] into the fewest equal chunks no wider than
// max. A degenerate or inverted interval yields a single chunk.
func splitInterval(from, to time.Time, max time.Duration) [][2]time.Time {
	total := to.Sub(from)
	if total <= max {
		return [][2]time.Time{{from, to}}
	}
	n := int((total + max - 1) / max)
	delta := total / time.Duration(n)
	chunks := make([][2]time.Time, 0, n)
	start := from
	for i := 0; i < n; i++ {
		end := start.Add(delta)
		if i == n-1 {
			end = to
		}
		chunks = append(chunks, [2]time.Time{start, end})
		start = end
	}
	return chunks
}

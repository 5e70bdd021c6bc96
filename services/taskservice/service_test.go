package taskservice

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"

	"github.com/sentinel-hub/classification-app-backend/internal/config"
	"github.com/sentinel-hub/classification-app-backend/internal/crs"
	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
	"github.com/sentinel-hub/classification-app-backend/internal/provider"
)

const testCatalog = `
sources:
  - id: archive
    name: Cloud classification
    type: s2-l1c-archive
    window_width: 100
    window_height: 100
    resolution: 10
    buffer: 10
    layers:
      - title: Clouds
        classes:
          - title: Opaque clouds
            color: "#ffffff"
`

type stubIndex struct {
	tile *provider.TileInfo
	size int
}

func (s *stubIndex) GetTileInfo(_ context.Context, id int) (*provider.TileInfo, error) {
	tile := *s.tile
	tile.IndexID = id
	return &tile, nil
}

func (s *stubIndex) GetArchiveSize(context.Context) (int, error) {
	return s.size, nil
}

func archiveTile(coverArea float64) *provider.TileInfo {
	return &provider.TileInfo{
		ESAID:       "S2A_OPER_TEST",
		SensingTime: time.Date(2017, 5, 1, 10, 0, 0, 0, time.UTC),
		CRS:         crs.CRS(32633),
		CoverGeometry: geometry.Geometry{
			Shape: orb.MultiPolygon{orb.Polygon{orb.Ring{
				{0, 0}, {10000, 0}, {10000, 10000}, {0, 10000}, {0, 0},
			}}},
			CRS: crs.CRS(32633),
		},
		CoverArea: coverArea,
	}
}

func newTestService(t *testing.T, index provider.TileIndexProvider) *Service {
	t.Helper()
	catalog, err := config.Parse([]byte(testCatalog))
	assert.NoError(t, err)

	service, err := NewService(
		Config{HTTPAddr: ":0", DisableWorkers: true},
		catalog,
		Providers{Index: index},
		nil, nil,
		rand.New(rand.NewSource(2)),
	)
	assert.NoError(t, err)
	service.httpServer.RegisterRoutes(service)
	return service
}

func TestNewServiceRejectsMissingProvider(t *testing.T) {
	catalog, err := config.Parse([]byte(testCatalog))
	assert.NoError(t, err)

	_, err = NewService(Config{}, catalog, Providers{}, nil, nil, rand.New(rand.NewSource(1)))
	assert.ErrorContains(t, err, "no tile index configured")
}

func TestNextTaskUnknownSource(t *testing.T) {
	service := newTestService(t, &stubIndex{size: 10, tile: archiveTile(2e10)})

	_, err := service.NextTask(context.Background(), "missing")
	assert.ErrorContains(t, err, "unknown source")
}

func TestListSourcesHandler(t *testing.T) {
	service := newTestService(t, &stubIndex{size: 10, tile: archiveTile(2e10)})

	rec := httptest.NewRecorder()
	service.httpServer.router.ServeHTTP(rec, httptest.NewRequest("GET", "/sources", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var infos []sourceInfo
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	assert.Len(t, infos, 1)
	assert.Equal(t, "archive", infos[0].ID)
	assert.Equal(t, "s2-l1c-archive", infos[0].Type)
	assert.Equal(t, "Clouds", infos[0].Layers[0].Title)
}

func TestNextTaskHandler(t *testing.T) {
	service := newTestService(t, &stubIndex{size: 10, tile: archiveTile(2e10)})

	rec := httptest.NewRecorder()
	service.httpServer.router.ServeHTTP(rec, httptest.NewRequest("GET", "/sources/archive/task", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.NotEmpty(t, payload["id"])
	assert.Equal(t, float64(32633), payload["crs"])
	assert.Equal(t, "2017-05-01", payload["datetime"])
	assert.Len(t, payload["bbox"], 4)
}

func TestNextTaskHandlerUnknownSource(t *testing.T) {
	service := newTestService(t, &stubIndex{size: 10, tile: archiveTile(2e10)})

	rec := httptest.NewRecorder()
	service.httpServer.router.ServeHTTP(rec, httptest.NewRequest("GET", "/sources/nope/task", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNextTaskHandlerSamplingFailure(t *testing.T) {
	// Slivers below the coverage gate are rejected until the strategy
	// gives up.
	service := newTestService(t, &stubIndex{size: 10, tile: archiveTile(1e8)})

	rec := httptest.NewRecorder()
	service.httpServer.router.ServeHTTP(rec, httptest.NewRequest("GET", "/sources/archive/task", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWindowConfigDefaults(t *testing.T) {
	win := windowConfig(&config.Source{WindowWidth: 64, WindowHeight: 32})
	assert.Equal(t, 64, win.Width)
	assert.Equal(t, 32, win.Height)
	assert.Equal(t, 10.0, win.Resolution)
	assert.Equal(t, 10, win.Buffer)

	win = windowConfig(&config.Source{WindowWidth: 64, WindowHeight: 32, Resolution: 20, Buffer: 5})
	assert.Equal(t, 20.0, win.Resolution)
	assert.Equal(t, 5, win.Buffer)
}

func TestBuildStrategyUnsupportedType(t *testing.T) {
	_, err := buildStrategy(&config.Source{ID: "x", Type: "mystery"}, Providers{}, rand.New(rand.NewSource(1)))
	assert.ErrorContains(t, err, "unsupported source type")
}

const twoSourceCatalog = `
sources:
  - id: archive-a
    name: Cloud classification A
    type: s2-l1c-archive
    window_width: 100
    window_height: 100
    layers:
      - title: Clouds
        classes:
          - title: Opaque clouds
            color: "#ffffff"
  - id: archive-b
    name: Cloud classification B
    type: s2-l1c-archive
    window_width: 100
    window_height: 100
    layers:
      - title: Clouds
        classes:
          - title: Opaque clouds
            color: "#ffffff"
`

// Workers draw from their sources in parallel; the strategies must not share
// a random generator.
func TestConcurrentDrawsAcrossSources(t *testing.T) {
	catalog, err := config.Parse([]byte(twoSourceCatalog))
	assert.NoError(t, err)

	service, err := NewService(
		Config{HTTPAddr: ":0", DisableWorkers: true},
		catalog,
		Providers{Index: &stubIndex{size: 10, tile: archiveTile(2e10)}},
		nil, nil,
		rand.New(rand.NewSource(7)),
	)
	assert.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"archive-a", "archive-b"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				if _, err := service.NextTask(context.Background(), id); err != nil {
					errs[i] = err
					return
				}
			}
		}(i, id)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
}

type recordingFeatures struct {
	maxCC []float64
}

func (r *recordingFeatures) Query(_ context.Context, _ geometry.BBox, _, _ time.Time, maxCloudCover float64) ([]*provider.TileInfo, error) {
	r.maxCC = append(r.maxCC, maxCloudCover)
	return nil, nil
}

func regionSource(maxCC *float64) *config.Source {
	return &config.Source{
		ID:            "region",
		Type:          config.SourceRegionTime,
		WindowWidth:   100,
		WindowHeight:  100,
		MaxCloudCover: maxCC,
		TimeFrom:      "2017-01-01",
		TimeTo:        "2017-01-14",
		AOI: map[string]any{
			"type":        "Polygon",
			"coordinates": []any{[]any{[]any{13.3, 45.4}, []any{16.6, 45.4}, []any{16.6, 46.9}, []any{13.3, 46.9}, []any{13.3, 45.4}}},
		},
	}
}

func TestBuildStrategyCloudCover(t *testing.T) {
	zero := 0.0

	for name, tc := range map[string]struct {
		maxCC *float64
		want  float64
	}{
		"unset defaults to any cover": {maxCC: nil, want: 1},
		"explicit zero stays zero":    {maxCC: &zero, want: 0},
	} {
		t.Run(name, func(t *testing.T) {
			features := &recordingFeatures{}
			strategy, err := buildStrategy(regionSource(tc.maxCC), Providers{Features: features}, rand.New(rand.NewSource(3)))
			assert.NoError(t, err)

			// No tiles come back, so the draw fails, but every query must
			// carry the configured cover limit.
			_, err = strategy.NextTask(context.Background())
			assert.Error(t, err)
			assert.NotEmpty(t, features.maxCC)
			for _, got := range features.maxCC {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

// Package taskservice serves sampling tasks over HTTP. Each configured
// source gets one strategy instance guarded by a mutex, plus an optional
// background worker that keeps a buffer of pre-drawn tasks.
package taskservice

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/sentinel-hub/classification-app-backend/internal/config"
	"github.com/sentinel-hub/classification-app-backend/internal/eventbus"
	"github.com/sentinel-hub/classification-app-backend/internal/objstore"
	"github.com/sentinel-hub/classification-app-backend/internal/provider"
	"github.com/sentinel-hub/classification-app-backend/services/sampling"
)

type Config struct {
	HTTPAddr       string
	KafkaBrokers   []string
	TaskBucket     string
	WorkerBuffer   int
	WorkerRetry    time.Duration
	DisableWorkers bool
}

// Providers bundles the external collaborators the strategies draw from.
type Providers struct {
	Index    provider.TileIndexProvider
	Features provider.FeatureServiceProvider
	Layers   provider.VectorLayerProvider
	Rasters  provider.RasterFetchProvider
}

// strategySlot serializes access to one strategy. Strategies keep internal
// cursors and caches, so only one draw may run at a time.
type strategySlot struct {
	mu       sync.Mutex
	strategy sampling.Strategy
	source   *config.Source
}

func (s *strategySlot) draw(ctx context.Context) (*sampling.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy.NextTask(ctx)
}

type Service struct {
	catalog    *config.Catalog
	slots      map[string]*strategySlot
	workers    map[string]*worker
	httpServer *HTTPServer
	bus        *eventbus.EventBus
	store      *objstore.Client
	cfg        Config
}

func NewService(cfg Config, catalog *config.Catalog, providers Providers, bus *eventbus.EventBus, store *objstore.Client, rnd *rand.Rand) (*Service, error) {
	if cfg.WorkerBuffer == 0 {
		cfg.WorkerBuffer = 4
	}
	if cfg.WorkerRetry == 0 {
		cfg.WorkerRetry = 30 * time.Second
	}

	s := &Service{
		catalog:    catalog,
		slots:      make(map[string]*strategySlot),
		workers:    make(map[string]*worker),
		httpServer: NewHTTPServer(cfg.HTTPAddr),
		bus:        bus,
		store:      store,
		cfg:        cfg,
	}
	for _, source := range catalog.Sources {
		// Workers draw concurrently and rand.Rand is not safe for concurrent
		// use, so each strategy owns a generator seeded from the parent.
		strategy, err := buildStrategy(source, providers, rand.New(rand.NewSource(rnd.Int63())))
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", source.ID, err)
		}
		slot := &strategySlot{strategy: strategy, source: source}
		s.slots[source.ID] = slot
		if !cfg.DisableWorkers {
			s.workers[source.ID] = newWorker(s, slot, cfg.WorkerBuffer, cfg.WorkerRetry)
		}
	}
	return s, nil
}

func (s *Service) Start(ctx context.Context) {
	log.Printf("TaskService starting with %d sources", len(s.slots))

	s.httpServer.RegisterRoutes(s)
	s.httpServer.Start()

	for id, w := range s.workers {
		log.Printf("Starting background worker for source %q", id)
		go w.run(ctx)
	}
}

func (s *Service) Stop() {
	s.httpServer.Stop()
	if s.bus != nil {
		s.bus.Close()
	}
}

// NextTask hands out a task for the source, preferring the worker's buffer
// and falling back to a synchronous draw.
func (s *Service) NextTask(ctx context.Context, sourceID string) (*sampling.Task, error) {
	slot, ok := s.slots[sourceID]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", sourceID)
	}
	if w, ok := s.workers[sourceID]; ok {
		select {
		case task := <-w.tasks:
			return task, nil
		default:
		}
	}
	return slot.draw(ctx)
}

func (s *Service) publish(eventType, sourceID, taskID string) {
	if s.bus == nil {
		return
	}
	event := eventbus.NewEvent(eventType, sourceID, taskID, nil)
	if err := s.bus.Publish(context.Background(), eventbus.TopicTaskEvents, event); err != nil {
		log.Printf("Failed to publish %s for task %s: %v", eventType, taskID, err)
	}
}

// windowConfig derives the sampling window from a source, applying the
// deployment defaults for unset fields.
func windowConfig(source *config.Source) sampling.WindowConfig {
	win := sampling.WindowConfig{
		Width:      source.WindowWidth,
		Height:     source.WindowHeight,
		Resolution: source.Resolution,
		Buffer:     source.Buffer,
	}
	if win.Resolution == 0 {
		win.Resolution = 10
	}
	if win.Buffer == 0 {
		win.Buffer = 10
	}
	return win
}

func buildStrategy(source *config.Source, providers Providers, rnd *rand.Rand) (sampling.Strategy, error) {
	win := windowConfig(source)
	switch source.Type {
	case config.SourceArchive:
		if providers.Index == nil {
			return nil, fmt.Errorf("no tile index configured")
		}
		return sampling.NewArchiveIndexSampling(providers.Index, win, rnd, time.Now), nil

	case config.SourceRegionTime:
		if providers.Features == nil {
			return nil, fmt.Errorf("no feature service configured")
		}
		aoi, err := source.AOIGeometry()
		if err != nil {
			return nil, err
		}
		from, to, err := source.TimeInterval()
		if err != nil {
			return nil, err
		}
		maxCC := 1.0
		if source.MaxCloudCover != nil {
			maxCC = *source.MaxCloudCover
		}
		return sampling.NewRegionTimeSampling(providers.Features, aoi, from, to, maxCC, win, rnd)

	case config.SourceVectorLayer:
		if providers.Layers == nil || providers.Rasters == nil {
			return nil, fmt.Errorf("no layer or raster provider configured")
		}
		return sampling.NewLayerFeatureSampling(providers.Layers, providers.Rasters, source, win, nil, rnd), nil

	case config.SourceLegacyResults:
		if providers.Layers == nil || providers.Index == nil || providers.Rasters == nil {
			return nil, fmt.Errorf("no layer, index or raster provider configured")
		}
		return sampling.NewLegacyResultsSampling(providers.Layers, providers.Index, providers.Rasters, source, nil, rnd), nil

	default:
		return nil, fmt.Errorf("unsupported source type %q", source.Type)
	}
}

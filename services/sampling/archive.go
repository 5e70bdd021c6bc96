package sampling

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sentinel-hub/classification-app-backend/internal/provider"
)

// referenceTileArea is the nominal footprint of a full acquisition tile in
// square meters. Partial tiles are accepted with probability proportional to
// their fraction of this area.
const referenceTileArea = 12055600804.0

// minCoverFraction rejects slivers outright before the probabilistic gate.
const minCoverFraction = 0.1

// archiveSizeTTL bounds how stale the cached archive size may get.
const archiveSizeTTL = 24 * time.Hour

// archiveSizeCache remembers the last archive size lookup. The zero value
// forces a refresh on first use.
type archiveSizeCache struct {
	size      int
	checkedAt time.Time
}

func (c archiveSizeCache) stale(now time.Time, ttl time.Duration) bool {
	return c.checkedAt.IsZero() || now.Sub(c.checkedAt) > ttl
}

// ArchiveIndexSampling draws tasks uniformly from the full acquisition
// archive: pick a random tile id, gate on cloud-free coverage, then place a
// window inside the tile's cover geometry.
type ArchiveIndexSampling struct {
	index provider.TileIndexProvider
	win   WindowConfig
	rnd   *rand.Rand
	now   func() time.Time

	cache archiveSizeCache
}

func NewArchiveIndexSampling(index provider.TileIndexProvider, win WindowConfig, rnd *rand.Rand, now func() time.Time) *ArchiveIndexSampling {
	if now == nil {
		now = time.Now
	}
	return &ArchiveIndexSampling{index: index, win: win, rnd: rnd, now: now}
}

func (s *ArchiveIndexSampling) NextTask(ctx context.Context) (*Task, error) {
	return drawTask(maxDrawAttempts, func() (*Task, error) {
		return s.attempt(ctx)
	})
}

func (s *ArchiveIndexSampling) attempt(ctx context.Context) (*Task, error) {
	size, cache, err := archiveSize(ctx, s.index, s.cache, s.now(), archiveSizeTTL)
	if err != nil {
		return nil, err
	}
	s.cache = cache

	id := s.rnd.Intn(size) + 1
	info, err := s.index.GetTileInfo(ctx, id)
	if err != nil {
		return nil, err
	}

	fraction := info.CoverArea / referenceTileArea
	if fraction < minCoverFraction || s.rnd.Float64() > fraction {
		return nil, fmt.Errorf("tile %d rejected, cover fraction %.3f", id, fraction)
	}

	bbox, err := sampleWindowBBox(s.rnd, info.CoverGeometry, s.win)
	if err != nil {
		return nil, err
	}
	task := newTask(bbox, dateOnly(info.SensingTime), s.win.Width, s.win.Height, nil)
	task.TileID = info.ESAID
	return task, nil
}

// archiveSize returns the current archive size, consulting the index only
// when the cache has expired.
func archiveSize(ctx context.Context, index provider.TileIndexProvider, cache archiveSizeCache, now time.Time, ttl time.Duration) (int, archiveSizeCache, error) {
	if !cache.stale(now, ttl) {
		return cache.size, cache, nil
	}
	size, err := index.GetArchiveSize(ctx)
	if err != nil {
		return 0, cache, err
	}
	return size, archiveSizeCache{size: size, checkedAt: now}, nil
}

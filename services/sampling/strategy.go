package sampling

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sentinel-hub/classification-app-backend/internal/geometry"
	"github.com/sentinel-hub/classification-app-backend/internal/provider"
	"github.com/sentinel-hub/classification-app-backend/internal/sampler"
)

// ErrSamplingFailed is returned when a strategy exhausts its draw attempts
// without producing a task.
var ErrSamplingFailed = errors.New("failed to sample a new task")

// maxDrawAttempts bounds how many candidates a single NextTask call may
// reject before giving up.
const maxDrawAttempts = 16

// Strategy produces labelling tasks one at a time. Implementations are not
// safe for concurrent use; callers serialize access per strategy.
type Strategy interface {
	NextTask(ctx context.Context) (*Task, error)
}

// WindowConfig holds the sampling window geometry shared by all strategies.
// Resolution is in CRS units per pixel, Buffer in pixels on each side.
type WindowConfig struct {
	Width      int
	Height     int
	Resolution float64
	Buffer     int
}

// drawTask runs one candidate attempt repeatedly until it yields a task.
// External-collaborator failures abort immediately; everything else counts
// as a rejected candidate.
func drawTask(attempts int, attempt func() (*Task, error)) (*Task, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		task, err := attempt()
		if err == nil {
			return task, nil
		}
		if errors.Is(err, provider.ErrExternalData) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrSamplingFailed, attempts, lastErr)
}

// sampleWindowBBox erodes the geometry by the buffered window, samples a
// pixel-aligned rectangle anchor and scales the result back to CRS units.
// The geometry must be in a UTM CRS so that pixel distances are uniform.
func sampleWindowBBox(rnd *rand.Rand, geom geometry.Geometry, win WindowConfig) (geometry.BBox, error) {
	if !geom.CRS.IsUTM() {
		return geometry.BBox{}, fmt.Errorf("sampling requires a UTM geometry, got %s: %w",
			geom.CRS, geometry.ErrCRSNotProjected)
	}
	reduced := geom.Scale(1/win.Resolution, 1/win.Resolution)
	rect, err := sampler.RandomRectangle(rnd, reduced,
		float64(win.Width+2*win.Buffer), float64(win.Height+2*win.Buffer), true)
	if err != nil {
		return geometry.BBox{}, err
	}
	b := rect.Bound()
	return geometry.NewBBox(
		b.Min[0]*win.Resolution, b.Min[1]*win.Resolution,
		b.Max[0]*win.Resolution, b.Max[1]*win.Resolution,
		geom.CRS), nil
}

// featureCycle walks a lazily fetched, shuffled feature list. The list is
// fetched and shuffled exactly once; afterwards the cursor cycles forever.
type featureCycle struct {
	fetch func(ctx context.Context) ([]*provider.Feature, error)
	rnd   *rand.Rand

	items []*provider.Feature
	index int
}

func (c *featureCycle) next(ctx context.Context) (*provider.Feature, error) {
	if c.items == nil {
		items, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("%w: layer has no features", ErrSamplingFailed)
		}
		c.rnd.Shuffle(len(items), func(i, j int) {
			items[i], items[j] = items[j], items[i]
		})
		c.items = items
	}
	c.index = (c.index + 1) % len(c.items)
	return c.items[c.index], nil
}

// dateOnly truncates a timestamp to its calendar date in UTC.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

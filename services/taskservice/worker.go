package taskservice

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sentinel-hub/classification-app-backend/internal/eventbus"
	"github.com/sentinel-hub/classification-app-backend/services/sampling"
)

// worker pre-draws tasks for one source into a bounded buffer so HTTP
// requests rarely wait for a full sampling round. The full buffer is the
// backpressure; the worker blocks until a task is consumed.
type worker struct {
	service *Service
	slot    *strategySlot
	tasks   chan *sampling.Task
	retry   time.Duration
}

func newWorker(service *Service, slot *strategySlot, buffer int, retry time.Duration) *worker {
	return &worker{
		service: service,
		slot:    slot,
		tasks:   make(chan *sampling.Task, buffer),
		retry:   retry,
	}
}

func (w *worker) run(ctx context.Context) {
	sourceID := w.slot.source.ID
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := w.slot.draw(ctx)
		if err != nil {
			log.Printf("Worker for source %q: %v", sourceID, err)
			w.service.publish(eventbus.TypeTaskFailed, sourceID, "")
			select {
			case <-time.After(w.retry):
			case <-ctx.Done():
				return
			}
			continue
		}

		if err := w.storeTask(ctx, task); err != nil {
			log.Printf("Worker for source %q: %v", sourceID, err)
		} else {
			w.service.publish(eventbus.TypeTaskStored, sourceID, task.ID)
		}

		select {
		case w.tasks <- task:
		case <-ctx.Done():
			return
		}
	}
}

// storeTask archives the task payload so drawn tasks survive restarts.
func (w *worker) storeTask(ctx context.Context, task *sampling.Task) error {
	store := w.service.store
	if store == nil {
		return nil
	}
	bucket := w.service.cfg.TaskBucket
	if bucket == "" {
		return nil
	}
	key := fmt.Sprintf("tasks/%s/%s.json", w.slot.source.ID, task.ID)
	if err := store.PutJSON(ctx, bucket, key, task.AppPayload()); err != nil {
		return fmt.Errorf("store task %s: %w", task.ID, err)
	}
	return nil
}

package geoenrich

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/frclabs/reportcenter/internal/adapter/queue"
)

// JobSource delivers asynchronous enrichment jobs.
type JobSource interface {
	SubscribeEnrich(handler func(queue.EnrichJob)) (*nats.Subscription, error)
}

// Worker drives the enrichment service: it consumes per-event jobs from
// the queue and runs the periodic backfill that catches anything the
// queue lost.
type Worker struct {
	service  *Service
	jobs     JobSource
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	sub     *nats.Subscription
}

// NewWorker creates an enrichment worker.
func NewWorker(service *Service, jobs JobSource, backfillInterval time.Duration, logger *slog.Logger) *Worker {
	if backfillInterval == 0 {
		backfillInterval = 5 * time.Minute
	}
	return &Worker{
		service:  service,
		jobs:     jobs,
		interval: backfillInterval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start subscribes to the job queue and begins the backfill loop.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if w.jobs != nil {
		sub, err := w.jobs.SubscribeEnrich(func(job queue.EnrichJob) {
			if _, err := w.service.EnrichByID(ctx, job.OrgID, job.EventID, job.Force); err != nil {
				w.logger.Debug("queued enrichment failed",
					"event_id", job.EventID,
					"error", err,
				)
			}
		})
		if err != nil {
			return err
		}
		w.sub = sub
	}

	w.logger.Info("geo enrichment worker started", "backfill_interval", w.interval)

	go func() {
		// Catch up on startup before the first tick.
		if _, err := w.service.Backfill(ctx, false); err != nil {
			w.logger.Error("initial geo backfill failed", "error", err)
		}

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := w.service.Backfill(ctx, false); err != nil {
					w.logger.Error("geo backfill failed", "error", err)
				}
			case <-w.stopCh:
				w.logger.Info("geo enrichment worker stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop halts the backfill loop and unsubscribes from the queue.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	if w.sub != nil {
		w.sub.Unsubscribe()
		w.sub = nil
	}
	close(w.stopCh)
}

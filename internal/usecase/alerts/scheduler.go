package alerts

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs the full rule sweep on a fixed interval. At most one
// sweep is in flight at a time; a tick that lands during a running sweep
// is skipped, never queued.
type Scheduler struct {
	evaluator *Evaluator
	interval  time.Duration
	logger    *slog.Logger

	sweeping atomic.Bool
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
}

// NewScheduler creates a sweep scheduler.
func NewScheduler(evaluator *Evaluator, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval == 0 {
		interval = time.Minute
	}
	return &Scheduler{
		evaluator: evaluator,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start begins periodic sweeps.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("alert scheduler started", "interval", s.interval)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-s.stopCh:
				s.logger.Info("alert scheduler stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		close(s.stopCh)
		s.running = false
	}
}

// Sweep runs one full evaluation pass unless one is already in flight.
// It reports whether the sweep actually ran.
func (s *Scheduler) Sweep(ctx context.Context) bool {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Warn("skipping sweep, previous sweep still running")
		return false
	}
	defer s.sweeping.Store(false)

	start := time.Now()
	summary, err := s.evaluator.EvaluateAll(ctx)
	if err != nil {
		s.logger.Error("alert sweep failed", "error", err)
		return true
	}

	s.logger.Info("alert sweep complete",
		"rules_checked", summary.RulesChecked,
		"alerts_triggered", summary.AlertsTriggered,
		"notifications_sent", summary.NotificationsSent,
		"errors", len(summary.Errors),
		"duration", time.Since(start),
	)
	return true
}

package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store deletes aged rows from the backing tables.
type Store interface {
	TableRowCount(ctx context.Context, table string) (uint64, error)
	DeleteOlderThan(ctx context.Context, table, timestampColumn string, cutoff time.Time) error
}

// Config bounds how long raw data is kept.
type Config struct {
	// EventDays keeps raw security events; alert history is kept longer
	// since it is the audit trail of what fired.
	EventDays   int
	HistoryDays int
	// Interval between cleanup passes.
	Interval time.Duration
}

// TableResult is one table's cleanup outcome.
type TableResult struct {
	Table         string  `json:"table"`
	RowsBefore    uint64  `json:"rows_before"`
	RetentionDays int     `json:"retention_days"`
	DurationMs    float64 `json:"duration_ms"`
	Error         string  `json:"error,omitempty"`
}

// CleanupResult summarizes one full cleanup pass. Deletes are async
// mutations in ClickHouse, so row counts reflect the pre-delete state.
type CleanupResult struct {
	StartedAt time.Time     `json:"started_at"`
	Tables    []TableResult `json:"tables"`
}

// Service drops events and alert history past their retention windows.
type Service struct {
	store  Store
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewService creates a retention service.
func NewService(store Store, cfg Config, logger *slog.Logger) *Service {
	if cfg.EventDays <= 0 {
		cfg.EventDays = 30
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 365
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic cleanup passes.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunCleanup(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Info("retention worker started",
		"event_days", s.cfg.EventDays,
		"history_days", s.cfg.HistoryDays,
		"interval", s.cfg.Interval,
	)
}

// Stop halts the cleanup worker.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("retention worker stopped")
}

// RunCleanup deletes aged rows from every retained table. Per-table
// failures are recorded, never fatal.
func (s *Service) RunCleanup(ctx context.Context) *CleanupResult {
	now := time.Now().UTC()
	result := &CleanupResult{StartedAt: now}

	tasks := []struct {
		table, column string
		days          int
	}{
		{"security_events", "ingested_at", s.cfg.EventDays},
		{"alert_history", "triggered_at", s.cfg.HistoryDays},
	}

	for _, task := range tasks {
		start := time.Now()
		cutoff := now.AddDate(0, 0, -task.days)

		rowsBefore, _ := s.store.TableRowCount(ctx, task.table)
		err := s.store.DeleteOlderThan(ctx, task.table, task.column, cutoff)

		tr := TableResult{
			Table:         task.table,
			RowsBefore:    rowsBefore,
			RetentionDays: task.days,
			DurationMs:    float64(time.Since(start).Milliseconds()),
		}
		if err != nil {
			tr.Error = err.Error()
			s.logger.Error("retention cleanup failed",
				"table", task.table,
				"error", err,
			)
		}
		result.Tables = append(result.Tables, tr)
	}

	s.logger.Info("retention cleanup completed",
		"tables", len(result.Tables),
		"duration_ms", time.Since(now).Milliseconds(),
	)
	return result
}

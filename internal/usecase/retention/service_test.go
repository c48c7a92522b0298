package retention

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	counts  map[string]uint64
	deleted map[string]time.Time
	failOn  string
}

func (f *fakeStore) TableRowCount(_ context.Context, table string) (uint64, error) {
	return f.counts[table], nil
}

func (f *fakeStore) DeleteOlderThan(_ context.Context, table, _ string, cutoff time.Time) error {
	if table == f.failOn {
		return fmt.Errorf("mutation rejected")
	}
	if f.deleted == nil {
		f.deleted = make(map[string]time.Time)
	}
	f.deleted[table] = cutoff
	return nil
}

func TestRunCleanupDeletesBothTables(t *testing.T) {
	store := &fakeStore{counts: map[string]uint64{"security_events": 1000, "alert_history": 50}}
	svc := NewService(store, Config{EventDays: 30, HistoryDays: 365}, slog.Default())

	result := svc.RunCleanup(context.Background())
	require.Len(t, result.Tables, 2)

	assert.Equal(t, "security_events", result.Tables[0].Table)
	assert.Equal(t, uint64(1000), result.Tables[0].RowsBefore)
	assert.Empty(t, result.Tables[0].Error)

	// Events go after 30 days, history after a year.
	eventCutoff := store.deleted["security_events"]
	historyCutoff := store.deleted["alert_history"]
	assert.True(t, eventCutoff.After(historyCutoff))
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -30), eventCutoff, time.Minute)
}

func TestRunCleanupContinuesPastFailures(t *testing.T) {
	store := &fakeStore{failOn: "security_events"}
	svc := NewService(store, Config{}, slog.Default())

	result := svc.RunCleanup(context.Background())
	require.Len(t, result.Tables, 2)

	assert.NotEmpty(t, result.Tables[0].Error)
	assert.Empty(t, result.Tables[1].Error, "one table failing must not stop the others")
	assert.Contains(t, store.deleted, "alert_history")
}

func TestConfigDefaults(t *testing.T) {
	svc := NewService(&fakeStore{}, Config{}, slog.Default())

	assert.Equal(t, 30, svc.cfg.EventDays)
	assert.Equal(t, 365, svc.cfg.HistoryDays)
	assert.Equal(t, 6*time.Hour, svc.cfg.Interval)
}

package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetentionRepository issues the bulk deletes behind retention cleanup.
type RetentionRepository struct {
	conn   *Connection
	logger *slog.Logger
}

// NewRetentionRepository creates a retention repository.
func NewRetentionRepository(conn *Connection, logger *slog.Logger) *RetentionRepository {
	return &RetentionRepository{conn: conn, logger: logger}
}

// retainedTables whitelists what retention may touch; table names are
// interpolated into DDL and must never come from user input.
var retainedTables = map[string]bool{
	"security_events": true,
	"alert_history":   true,
}

// TableRowCount returns the current row count of one retained table.
func (r *RetentionRepository) TableRowCount(ctx context.Context, table string) (uint64, error) {
	if !retainedTables[table] {
		return 0, fmt.Errorf("table %q is not managed by retention", table)
	}
	var count uint64
	row := r.conn.QueryRow(ctx, fmt.Sprintf("SELECT count() FROM %s", table))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

// DeleteOlderThan drops rows before the cutoff. The delete is an async
// mutation; rows disappear shortly after, not atomically.
func (r *RetentionRepository) DeleteOlderThan(ctx context.Context, table, timestampColumn string, cutoff time.Time) error {
	if !retainedTables[table] {
		return fmt.Errorf("table %q is not managed by retention", table)
	}
	query := fmt.Sprintf("ALTER TABLE %s DELETE WHERE %s < ?", table, timestampColumn)
	if err := r.conn.Exec(ctx, query, cutoff); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	r.logger.Info("retention delete issued", "table", table, "cutoff", cutoff)
	return nil
}

package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/entity"
)

// ServersRepository stores auto-discovered server aliases.
type ServersRepository struct {
	conn   *Connection
	logger *slog.Logger
}

// NewServersRepository creates a new servers repository
func NewServersRepository(conn *Connection, logger *slog.Logger) *ServersRepository {
	return &ServersRepository{
		conn:   conn,
		logger: logger,
	}
}

const serverColumns = `id, org_id, hostname, display_name, description,
	active, first_seen, last_seen`

// SaveServer inserts a server alias or a new version of one. The table is
// a ReplacingMergeTree keyed by (org_id, hostname) versioned by last_seen.
func (r *ServersRepository) SaveServer(ctx context.Context, s *entity.ServerAlias) error {
	query := fmt.Sprintf(`INSERT INTO server_aliases (%s) VALUES (
		?, ?, ?, ?, ?, ?, ?, ?)`, serverColumns)

	err := r.conn.Exec(ctx, query,
		s.ID, s.OrgID, s.Hostname, s.DisplayName, s.Description,
		s.Active, s.FirstSeen, s.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("failed to save server: %w", err)
	}
	return nil
}

// GetByHostname retrieves one server alias by its hostname key.
func (r *ServersRepository) GetByHostname(ctx context.Context, orgID uuid.UUID, hostname string) (*entity.ServerAlias, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM server_aliases FINAL
		WHERE org_id = ? AND hostname = ?
		LIMIT 1
	`, serverColumns)

	rows, err := r.conn.Query(ctx, query, orgID, hostname)
	if err != nil {
		return nil, fmt.Errorf("failed to query server: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, entity.ErrNotFound
	}
	return scanServer(rows)
}

// ListServers returns all known servers for one tenant.
func (r *ServersRepository) ListServers(ctx context.Context, orgID uuid.UUID) ([]entity.ServerAlias, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM server_aliases FINAL
		WHERE org_id = ?
		ORDER BY hostname
	`, serverColumns)

	rows, err := r.conn.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query servers: %w", err)
	}
	defer rows.Close()

	var servers []entity.ServerAlias
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, *s)
	}
	return servers, rows.Err()
}

// TouchLastSeen advances a server's last_seen watermark.
func (r *ServersRepository) TouchLastSeen(ctx context.Context, s *entity.ServerAlias, seenAt time.Time) error {
	if seenAt.After(s.LastSeen) {
		s.LastSeen = seenAt
	}
	return r.SaveServer(ctx, s)
}

func scanServer(rows rowScanner) (*entity.ServerAlias, error) {
	var s entity.ServerAlias
	if err := rows.Scan(
		&s.ID, &s.OrgID, &s.Hostname, &s.DisplayName, &s.Description,
		&s.Active, &s.FirstSeen, &s.LastSeen,
	); err != nil {
		return nil, fmt.Errorf("failed to scan server: %w", err)
	}
	return &s, nil
}

package servers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/entity"
)

// Store is the server alias persistence the service depends on.
type Store interface {
	GetByHostname(ctx context.Context, orgID uuid.UUID, hostname string) (*entity.ServerAlias, error)
	SaveServer(ctx context.Context, s *entity.ServerAlias) error
	ListServers(ctx context.Context, orgID uuid.UUID) ([]entity.ServerAlias, error)
	TouchLastSeen(ctx context.Context, s *entity.ServerAlias, seenAt time.Time) error
}

// EventCounter provides per-server activity counts.
type EventCounter interface {
	CountEvents(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter) (uint64, error)
}

// Service auto-discovers servers from the hostnames seen at ingestion.
type Service struct {
	store  Store
	events EventCounter
	logger *slog.Logger
}

// NewService creates a server discovery service.
func NewService(store Store, events EventCounter, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		events: events,
		logger: logger,
	}
}

// skippedHostnames are placeholder hosts emitted by parsers that never
// identify a real machine.
var skippedHostnames = map[string]bool{
	"unknown":  true,
	"haproxy":  true,
	"nginx":    true,
	"crowdsec": true,
	"fail2ban": true,
}

// Discover records a hostname sighting, creating the alias on first
// contact and advancing last_seen afterwards. Placeholder hostnames are
// ignored.
func (s *Service) Discover(ctx context.Context, orgID uuid.UUID, hostname string, seenAt time.Time) error {
	if hostname == "" || skippedHostnames[hostname] {
		return nil
	}

	existing, err := s.store.GetByHostname(ctx, orgID, hostname)
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			return err
		}
		alias := &entity.ServerAlias{
			ID:          uuid.New(),
			OrgID:       orgID,
			Hostname:    hostname,
			DisplayName: hostname,
			Active:      true,
			FirstSeen:   seenAt,
			LastSeen:    seenAt,
		}
		if err := s.store.SaveServer(ctx, alias); err != nil {
			return err
		}
		s.logger.Info("discovered new server", "org_id", orgID, "hostname", hostname)
		return nil
	}

	return s.store.TouchLastSeen(ctx, existing, seenAt)
}

// List returns all known servers for a tenant.
func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]entity.ServerAlias, error) {
	return s.store.ListServers(ctx, orgID)
}

// ListStats returns servers with their recent activity. A server is
// healthy when it produced events in the last 24 hours.
func (s *Service) ListStats(ctx context.Context, orgID uuid.UUID) ([]entity.ServerStats, error) {
	aliases, err := s.store.ListServers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	stats := make([]entity.ServerStats, 0, len(aliases))
	for _, alias := range aliases {
		total, err := s.events.CountEvents(ctx, orgID, entity.EventFilter{SourceHost: alias.Hostname})
		if err != nil {
			return nil, err
		}
		recent, err := s.events.CountEvents(ctx, orgID, entity.EventFilter{
			SourceHost: alias.Hostname,
			StartTime:  now.Add(-24 * time.Hour),
		})
		if err != nil {
			return nil, err
		}
		stats = append(stats, entity.ServerStats{
			Server:     alias,
			TotalLogs:  total,
			RecentLogs: recent,
			Healthy:    recent > 0,
		})
	}
	return stats, nil
}

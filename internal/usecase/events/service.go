package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/entity"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Store is the event query surface backed by ClickHouse.
type Store interface {
	GetEvent(ctx context.Context, orgID, eventID uuid.UUID) (*entity.SecurityEvent, error)
	QueryEvents(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter, limit, offset int) ([]entity.SecurityEvent, error)
	CountEvents(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter) (uint64, error)
	TopSourceIPs(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter, limit int) ([]entity.IPCount, error)
	CountryCounts(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter, limit int) ([]entity.CountryCount, error)
	DistinctHosts(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter) ([]string, error)
}

// Service answers read queries over stored events.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// ListResult is one page of events with the unpaged total.
type ListResult struct {
	Events []entity.SecurityEvent `json:"events"`
	Total  uint64                 `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// List returns a filtered, paginated slice of events, newest first.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter, limit, offset int) (*ListResult, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	events, err := s.store.QueryEvents(ctx, orgID, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountEvents(ctx, orgID, filter)
	if err != nil {
		return nil, err
	}

	return &ListResult{Events: events, Total: total, Limit: limit, Offset: offset}, nil
}

// Get returns one event by id.
func (s *Service) Get(ctx context.Context, orgID, eventID uuid.UUID) (*entity.SecurityEvent, error) {
	return s.store.GetEvent(ctx, orgID, eventID)
}

// TopAttackers returns the busiest source IPs over a lookback window.
func (s *Service) TopAttackers(ctx context.Context, orgID uuid.UUID, window time.Duration, limit int) ([]entity.IPCount, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.TopSourceIPs(ctx, orgID, windowFilter(window), limit)
}

// ByCountry returns event counts grouped by source country.
func (s *Service) ByCountry(ctx context.Context, orgID uuid.UUID, window time.Duration, limit int) ([]entity.CountryCount, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.CountryCounts(ctx, orgID, windowFilter(window), limit)
}

// Hostnames returns the distinct source hosts seen over a lookback window.
func (s *Service) Hostnames(ctx context.Context, orgID uuid.UUID, window time.Duration) ([]string, error) {
	return s.store.DistinctHosts(ctx, orgID, windowFilter(window))
}

func windowFilter(window time.Duration) entity.EventFilter {
	if window <= 0 {
		window = 24 * time.Hour
	}
	now := time.Now().UTC()
	return entity.EventFilter{StartTime: now.Add(-window), EndTime: now}
}

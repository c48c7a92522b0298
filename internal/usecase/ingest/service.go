package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/adapter/parser"
	"github.com/frclabs/reportcenter/internal/adapter/queue"
	"github.com/frclabs/reportcenter/internal/entity"
)

// maxReportedErrors bounds the parse diagnostics returned per batch.
const maxReportedErrors = 10

// EventStore persists parsed events.
type EventStore interface {
	InsertEvents(ctx context.Context, events []*entity.SecurityEvent) error
}

// EnrichPublisher schedules asynchronous geo enrichment.
type EnrichPublisher interface {
	PublishEnrich(job queue.EnrichJob) error
}

// Discoverer records hostname sightings for server discovery.
type Discoverer interface {
	Discover(ctx context.Context, orgID uuid.UUID, hostname string, seenAt time.Time) error
}

// Service runs the ingestion pipeline: parse, store, discover, schedule
// enrichment. Enrichment problems never fail the write path.
type Service struct {
	parsers   *parser.Registry
	events    EventStore
	publisher EnrichPublisher
	discovery Discoverer
	logger    *slog.Logger
}

// NewService creates an ingestion service.
func NewService(parsers *parser.Registry, events EventStore, publisher EnrichPublisher, discovery Discoverer, logger *slog.Logger) *Service {
	return &Service{
		parsers:   parsers,
		events:    events,
		publisher: publisher,
		discovery: discovery,
		logger:    logger,
	}
}

// ParseError reports one rejected line with its batch position.
type ParseError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// Result summarizes one ingested batch.
type Result struct {
	Accepted int          `json:"accepted"`
	Failed   int          `json:"failed"`
	Errors   []ParseError `json:"errors,omitempty"`
	EventIDs []uuid.UUID  `json:"event_ids,omitempty"`
}

// IngestBatch parses and stores a batch of raw lines from one source.
// A non-empty serverName overrides the host each parser derived, since
// the reporting agent knows its own hostname best. Unparseable lines are
// skipped and counted; only the first few carry error detail to keep
// responses bounded.
func (s *Service) IngestBatch(ctx context.Context, orgID uuid.UUID, sourceType, serverName string, lines []string) (*Result, error) {
	p, err := s.parsers.Get(sourceType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &Result{}
	var events []*entity.SecurityEvent

	for i, line := range lines {
		if line == "" {
			continue
		}
		event, err := p.Parse(line)
		if err != nil {
			result.Failed++
			if len(result.Errors) < maxReportedErrors {
				result.Errors = append(result.Errors, ParseError{Line: i + 1, Error: err.Error()})
			}
			continue
		}

		event.EventID = uuid.New()
		event.OrgID = orgID
		event.IngestedAt = now
		if serverName != "" {
			event.SourceHost = serverName
		}
		events = append(events, event)
		result.EventIDs = append(result.EventIDs, event.EventID)
	}
	result.Accepted = len(events)

	if len(events) == 0 {
		return result, nil
	}

	if err := s.events.InsertEvents(ctx, events); err != nil {
		return nil, fmt.Errorf("store events: %w", err)
	}

	s.discoverHosts(ctx, orgID, events, now)
	s.scheduleEnrichment(events)

	s.logger.Info("batch ingested",
		"org_id", orgID,
		"source", sourceType,
		"accepted", result.Accepted,
		"failed", result.Failed,
	)
	return result, nil
}

// discoverHosts records each distinct source host once per batch.
func (s *Service) discoverHosts(ctx context.Context, orgID uuid.UUID, events []*entity.SecurityEvent, seenAt time.Time) {
	seen := make(map[string]bool)
	for _, e := range events {
		if e.SourceHost == "" || seen[e.SourceHost] {
			continue
		}
		seen[e.SourceHost] = true
		if err := s.discovery.Discover(ctx, orgID, e.SourceHost, seenAt); err != nil {
			s.logger.Warn("server discovery failed", "hostname", e.SourceHost, "error", err)
		}
	}
}

// scheduleEnrichment publishes one enrichment job per stored event.
// Publish failures are logged and left for the backfill sweep to repair.
func (s *Service) scheduleEnrichment(events []*entity.SecurityEvent) {
	if s.publisher == nil {
		return
	}
	for _, e := range events {
		job := queue.EnrichJob{EventID: e.EventID, OrgID: e.OrgID}
		if err := s.publisher.PublishEnrich(job); err != nil {
			s.logger.Warn("enrich dispatch failed, backfill will retry",
				"event_id", e.EventID,
				"error", err,
			)
		}
	}
}

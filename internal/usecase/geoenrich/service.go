package geoenrich

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/frclabs/reportcenter/internal/adapter/external/geoip"
	"github.com/frclabs/reportcenter/internal/entity"
)

// Outcome classifies one enrichment attempt.
type Outcome string

const (
	// OutcomeEnriched means geo fields were looked up and written.
	OutcomeEnriched Outcome = "enriched"
	// OutcomeSkipped means no external call was needed: the event was
	// already enriched, or its source IP is private.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the lookup failed and the event is unmodified.
	OutcomeFailed Outcome = "failed"
)

// EventStore is the event persistence the worker depends on.
type EventStore interface {
	GetEvent(ctx context.Context, orgID, eventID uuid.UUID) (*entity.SecurityEvent, error)
	UpdateGeo(ctx context.Context, event *entity.SecurityEvent) error
	EventsNeedingGeo(ctx context.Context, lookback time.Duration, limit int, force bool) ([]entity.SecurityEvent, error)
}

// Locator resolves IP geolocation.
type Locator interface {
	Lookup(ctx context.Context, ip string) (*geoip.Result, error)
}

// Config holds enrichment worker settings.
type Config struct {
	// LookupInterval spaces external lookups; ip-api.com allows 45/min.
	LookupInterval time.Duration
	BackfillBatch  int
	BackfillWindow time.Duration
}

// Service enriches stored events with geolocation data. Lookups are
// throttled globally so concurrent consumers share one rate budget.
type Service struct {
	events  EventStore
	locator Locator
	limiter *rate.Limiter
	config  Config
	logger  *slog.Logger
}

// NewService creates a geo enrichment service.
func NewService(events EventStore, locator Locator, cfg Config, logger *slog.Logger) *Service {
	if cfg.LookupInterval == 0 {
		cfg.LookupInterval = 1500 * time.Millisecond
	}
	if cfg.BackfillBatch == 0 {
		cfg.BackfillBatch = 40
	}
	if cfg.BackfillWindow == 0 {
		cfg.BackfillWindow = 24 * time.Hour
	}
	return &Service{
		events:  events,
		locator: locator,
		limiter: rate.NewLimiter(rate.Every(cfg.LookupInterval), 1),
		config:  cfg,
		logger:  logger,
	}
}

// Enrich performs one enrichment attempt on an event already in hand.
//
// The invariant GeoEnriched == HasCoordinates holds after every outcome:
// a failed lookup leaves the event untouched, a private IP gets the XX
// sentinel with no coordinates and GeoEnriched false.
func (s *Service) Enrich(ctx context.Context, event *entity.SecurityEvent, force bool) (Outcome, error) {
	if !force && event.GeoEnriched && event.HasCoordinates() {
		return OutcomeSkipped, nil
	}
	if event.SrcIP == "" {
		return OutcomeSkipped, nil
	}

	if geoip.IsPrivateIP(event.SrcIP) {
		applyResult(event, geoip.PrivateNetworkResult(event.SrcIP))
		if err := s.events.UpdateGeo(ctx, event); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeSkipped, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return OutcomeFailed, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := s.locator.Lookup(ctx, event.SrcIP)
	if err != nil {
		return OutcomeFailed, err
	}

	applyResult(event, result)
	if err := s.events.UpdateGeo(ctx, event); err != nil {
		return OutcomeFailed, err
	}

	s.logger.Debug("event enriched",
		"event_id", event.EventID,
		"ip", event.SrcIP,
		"country", event.CountryCode,
	)
	return OutcomeEnriched, nil
}

// EnrichByID loads an event and enriches it, for queue consumers.
func (s *Service) EnrichByID(ctx context.Context, orgID, eventID uuid.UUID, force bool) (Outcome, error) {
	event, err := s.events.GetEvent(ctx, orgID, eventID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("load event %s: %w", eventID, err)
	}
	return s.Enrich(ctx, event, force)
}

// applyResult copies lookup fields onto the event. The enrichment flag
// and timestamp are set only when the result carries coordinates; the
// sentinel and coordinate-less lookups leave both unset.
func applyResult(event *entity.SecurityEvent, r *geoip.Result) {
	event.CountryCode = r.CountryCode
	event.CountryName = r.CountryName
	event.City = r.City
	event.Region = r.Region
	event.Latitude = r.Latitude
	event.Longitude = r.Longitude
	event.Timezone = r.Timezone
	event.ASN = r.ASN
	event.ISP = r.ISP
	event.Org = r.Org

	event.GeoEnriched = event.HasCoordinates()
	if event.GeoEnriched {
		now := time.Now().UTC()
		event.GeoEnrichedAt = &now
	} else {
		event.GeoEnrichedAt = nil
	}
}

// BackfillResult summarizes one backfill pass.
type BackfillResult struct {
	Scanned  int `json:"scanned"`
	Enriched int `json:"enriched"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Backfill enriches a bounded batch of recent events that still lack geo
// data. Lookup failures are counted, not fatal; the next pass retries.
func (s *Service) Backfill(ctx context.Context, force bool) (*BackfillResult, error) {
	events, err := s.events.EventsNeedingGeo(ctx, s.config.BackfillWindow, s.config.BackfillBatch, force)
	if err != nil {
		return nil, fmt.Errorf("query events needing geo: %w", err)
	}

	result := &BackfillResult{Scanned: len(events)}
	for i := range events {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		outcome, err := s.Enrich(ctx, &events[i], force)
		switch outcome {
		case OutcomeEnriched:
			result.Enriched++
		case OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
			s.logger.Debug("backfill enrichment failed",
				"event_id", events[i].EventID,
				"error", err,
			)
		}
	}

	if result.Scanned > 0 {
		s.logger.Info("geo backfill pass complete",
			"scanned", result.Scanned,
			"enriched", result.Enriched,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
	}
	return result, nil
}

// PendingCount reports how many recent events still await enrichment.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	events, err := s.events.EventsNeedingGeo(ctx, s.config.BackfillWindow, 10000, false)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

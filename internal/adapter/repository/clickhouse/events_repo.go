package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/entity"
)

// EventsRepository handles security event storage in ClickHouse.
//
// The security_events table is a ReplacingMergeTree keyed by
// (org_id, event_id): geo enrichment re-inserts the full row and FINAL
// reads collapse to the latest version.
type EventsRepository struct {
	conn   *Connection
	logger *slog.Logger
}

// NewEventsRepository creates a new events repository
func NewEventsRepository(conn *Connection, logger *slog.Logger) *EventsRepository {
	return &EventsRepository{
		conn:   conn,
		logger: logger,
	}
}

const eventColumns = `event_id, org_id, source_type, source_host, timestamp,
	src_ip, src_port, dst_ip, dst_port,
	method, path, status_code, bytes_sent, user_agent,
	action, severity, reason,
	country_code, country_name, city, region, latitude, longitude,
	timezone, asn, isp, org, geo_enriched, geo_enriched_at,
	raw_log, metadata, ingested_at`

// InsertEvents stores a batch of parsed events.
func (r *EventsRepository) InsertEvents(ctx context.Context, events []*entity.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, fmt.Sprintf(
		"INSERT INTO security_events (%s)", eventColumns))
	if err != nil {
		return fmt.Errorf("failed to prepare event batch: %w", err)
	}

	for _, e := range events {
		if err := appendEvent(batch, e); err != nil {
			return fmt.Errorf("failed to append event %s: %w", e.EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to insert events: %w", err)
	}

	r.logger.Debug("Inserted events", "count", len(events))
	return nil
}

// UpdateGeo re-inserts an event with its geo columns filled. The
// ReplacingMergeTree deduplicates against the pre-enrichment row.
func (r *EventsRepository) UpdateGeo(ctx context.Context, event *entity.SecurityEvent) error {
	batch, err := r.conn.PrepareBatch(ctx, fmt.Sprintf(
		"INSERT INTO security_events (%s)", eventColumns))
	if err != nil {
		return fmt.Errorf("failed to prepare geo update: %w", err)
	}
	if err := appendEvent(batch, event); err != nil {
		return fmt.Errorf("failed to append geo update: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to update event geo: %w", err)
	}
	return nil
}

func appendEvent(batch driver.Batch, e *entity.SecurityEvent) error {
	return batch.Append(
		e.EventID, e.OrgID, string(e.SourceType), e.SourceHost, e.Timestamp,
		e.SrcIP, e.SrcPort, e.DstIP, e.DstPort,
		e.Method, e.Path, e.StatusCode, e.BytesSent, e.UserAgent,
		e.Action, e.Severity, e.Reason,
		e.CountryCode, e.CountryName, e.City, e.Region, e.Latitude, e.Longitude,
		e.Timezone, e.ASN, e.ISP, e.Org, e.GeoEnriched, e.GeoEnrichedAt,
		e.RawLog, e.Metadata, e.IngestedAt,
	)
}

// GetEvent retrieves one event by id.
func (r *EventsRepository) GetEvent(ctx context.Context, orgID, eventID uuid.UUID) (*entity.SecurityEvent, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM security_events FINAL
		WHERE org_id = ? AND event_id = ?
		LIMIT 1
	`, eventColumns)

	rows, err := r.conn.Query(ctx, query, orgID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query event: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, entity.ErrNotFound
	}
	return scanEvent(rows)
}

// QueryEvents retrieves events matching the filter, newest first.
func (r *EventsRepository) QueryEvents(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter, limit, offset int) ([]entity.SecurityEvent, error) {
	where, args := eventConditions(orgID, filter)

	query := fmt.Sprintf(`
		SELECT %s
		FROM security_events FINAL
		WHERE %s
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`, eventColumns, where)
	args = append(args, limit, offset)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []entity.SecurityEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// CountEvents counts events matching the filter.
func (r *EventsRepository) CountEvents(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter) (uint64, error) {
	where, args := eventConditions(orgID, filter)

	query := fmt.Sprintf(`SELECT count() FROM security_events FINAL WHERE %s`, where)

	var count uint64
	if err := r.conn.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// TopSourceIPs returns the most frequent source IPs matching the filter.
func (r *EventsRepository) TopSourceIPs(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter, limit int) ([]entity.IPCount, error) {
	where, args := eventConditions(orgID, filter)

	query := fmt.Sprintf(`
		SELECT src_ip, count() AS cnt
		FROM security_events FINAL
		WHERE %s AND src_ip != ''
		GROUP BY src_ip
		ORDER BY cnt DESC
		LIMIT ?
	`, where)
	args = append(args, limit)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top ips: %w", err)
	}
	defer rows.Close()

	var result []entity.IPCount
	for rows.Next() {
		var ip entity.IPCount
		if err := rows.Scan(&ip.IP, &ip.Count); err != nil {
			return nil, fmt.Errorf("failed to scan ip count: %w", err)
		}
		result = append(result, ip)
	}
	return result, rows.Err()
}

// CountryCounts returns event counts grouped by country, largest first.
func (r *EventsRepository) CountryCounts(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter, limit int) ([]entity.CountryCount, error) {
	where, args := eventConditions(orgID, filter)

	query := fmt.Sprintf(`
		SELECT country_code, any(country_name), count() AS cnt
		FROM security_events FINAL
		WHERE %s AND country_code != ''
		GROUP BY country_code
		ORDER BY cnt DESC
		LIMIT ?
	`, where)
	args = append(args, limit)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query country counts: %w", err)
	}
	defer rows.Close()

	var result []entity.CountryCount
	for rows.Next() {
		var c entity.CountryCount
		if err := rows.Scan(&c.CountryCode, &c.CountryName, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan country count: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// DistinctHosts returns the distinct source hosts matching the filter.
func (r *EventsRepository) DistinctHosts(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter) ([]string, error) {
	where, args := eventConditions(orgID, filter)

	query := fmt.Sprintf(`
		SELECT DISTINCT source_host
		FROM security_events FINAL
		WHERE %s AND source_host != ''
		ORDER BY source_host
	`, where)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hosts: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

// EventsNeedingGeo returns recent events still awaiting enrichment, oldest
// first so the backfill works through the backlog in order. With force set
// it returns recent events regardless of enrichment state.
func (r *EventsRepository) EventsNeedingGeo(ctx context.Context, lookback time.Duration, limit int, force bool) ([]entity.SecurityEvent, error) {
	conditions := []string{"ingested_at >= ?", "src_ip != ''"}
	args := []interface{}{time.Now().UTC().Add(-lookback)}
	if !force {
		// Private-network events carry the XX sentinel without being
		// enriched; they never need another pass.
		conditions = append(conditions, "geo_enriched = 0", "country_code = ''")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM security_events FINAL
		WHERE %s
		ORDER BY ingested_at ASC
		LIMIT ?
	`, eventColumns, strings.Join(conditions, " AND "))
	args = append(args, limit)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events needing geo: %w", err)
	}
	defer rows.Close()

	var events []entity.SecurityEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(rows rowScanner) (*entity.SecurityEvent, error) {
	var e entity.SecurityEvent
	var sourceType string
	if err := rows.Scan(
		&e.EventID, &e.OrgID, &sourceType, &e.SourceHost, &e.Timestamp,
		&e.SrcIP, &e.SrcPort, &e.DstIP, &e.DstPort,
		&e.Method, &e.Path, &e.StatusCode, &e.BytesSent, &e.UserAgent,
		&e.Action, &e.Severity, &e.Reason,
		&e.CountryCode, &e.CountryName, &e.City, &e.Region, &e.Latitude, &e.Longitude,
		&e.Timezone, &e.ASN, &e.ISP, &e.Org, &e.GeoEnriched, &e.GeoEnrichedAt,
		&e.RawLog, &e.Metadata, &e.IngestedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	e.SourceType = entity.SourceType(sourceType)
	return &e, nil
}

// eventConditions builds the WHERE clause for an org-scoped event filter.
func eventConditions(orgID uuid.UUID, f entity.EventFilter) (string, []interface{}) {
	conditions := []string{"org_id = ?"}
	args := []interface{}{orgID}

	if f.SourceType != "" {
		conditions = append(conditions, "source_type = ?")
		args = append(args, f.SourceType)
	}
	if f.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, f.Action)
	}
	if f.Severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, f.Severity)
	}
	if f.CountryCode != "" {
		conditions = append(conditions, "country_code = ?")
		args = append(args, f.CountryCode)
	}
	if f.SrcIP != "" {
		conditions = append(conditions, "src_ip = ?")
		args = append(args, f.SrcIP)
	}
	if f.SourceHost != "" {
		conditions = append(conditions, "source_host = ?")
		args = append(args, f.SourceHost)
	}
	if !f.StartTime.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, f.StartTime)
	}
	if !f.EndTime.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, f.EndTime)
	}

	return strings.Join(conditions, " AND "), args
}

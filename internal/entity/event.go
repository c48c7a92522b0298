package entity

import (
	"time"

	"github.com/google/uuid"
)

// SourceType identifies the log format an event was parsed from.
type SourceType string

const (
	SourceHAProxy  SourceType = "haproxy"
	SourceNginx    SourceType = "nginx"
	SourceCrowdSec SourceType = "crowdsec"
	SourceFail2ban SourceType = "fail2ban"
)

// Actions
const (
	ActionAllow     = "allow"
	ActionDeny      = "deny"
	ActionBan       = "ban"
	ActionRateLimit = "rate_limit"
	ActionChallenge = "challenge"
)

// Severity levels
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// SecurityEvent is the canonical representation of one ingested log line,
// independent of source format.
type SecurityEvent struct {
	EventID uuid.UUID `json:"event_id" ch:"event_id"`
	OrgID   uuid.UUID `json:"org_id" ch:"org_id"`

	// Source
	SourceType SourceType `json:"source_type" ch:"source_type"`
	SourceHost string     `json:"source_host" ch:"source_host"`
	Timestamp  time.Time  `json:"timestamp" ch:"timestamp"`

	// Network
	SrcIP   string `json:"src_ip" ch:"src_ip"`
	SrcPort uint16 `json:"src_port,omitempty" ch:"src_port"`
	DstIP   string `json:"dst_ip,omitempty" ch:"dst_ip"`
	DstPort uint16 `json:"dst_port,omitempty" ch:"dst_port"`

	// HTTP (haproxy/nginx only)
	Method     string `json:"method,omitempty" ch:"method"`
	Path       string `json:"path,omitempty" ch:"path"`
	StatusCode uint16 `json:"status_code,omitempty" ch:"status_code"`
	BytesSent  uint64 `json:"bytes_sent,omitempty" ch:"bytes_sent"`
	UserAgent  string `json:"user_agent,omitempty" ch:"user_agent"`

	// Classification
	Action   string `json:"action" ch:"action"`
	Severity string `json:"severity" ch:"severity"`
	Reason   string `json:"reason,omitempty" ch:"reason"`

	// Geo, filled by the enrichment worker
	CountryCode   string     `json:"country_code,omitempty" ch:"country_code"`
	CountryName   string     `json:"country_name,omitempty" ch:"country_name"`
	City          string     `json:"city,omitempty" ch:"city"`
	Region        string     `json:"region,omitempty" ch:"region"`
	Latitude      *float64   `json:"latitude,omitempty" ch:"latitude"`
	Longitude     *float64   `json:"longitude,omitempty" ch:"longitude"`
	Timezone      string     `json:"timezone,omitempty" ch:"timezone"`
	ASN           string     `json:"asn,omitempty" ch:"asn"`
	ISP           string     `json:"isp,omitempty" ch:"isp"`
	Org           string     `json:"org,omitempty" ch:"org"`
	GeoEnriched   bool       `json:"geo_enriched" ch:"geo_enriched"`
	GeoEnrichedAt *time.Time `json:"geo_enriched_at,omitempty" ch:"geo_enriched_at"`

	// Audit
	RawLog     string            `json:"raw_log,omitempty" ch:"raw_log"`
	Metadata   map[string]string `json:"metadata,omitempty" ch:"metadata"`
	IngestedAt time.Time         `json:"ingested_at" ch:"ingested_at"`
}

// HasCoordinates reports whether both latitude and longitude are present.
// GeoEnriched must be true if and only if this is true.
func (e *SecurityEvent) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// CountryFlagEmoji renders the country code as a regional-indicator flag.
// The private-network sentinel "XX" gets a house.
func (e *SecurityEvent) CountryFlagEmoji() string {
	code := e.CountryCode
	if code == "XX" {
		return "🏠"
	}
	if len(code) != 2 {
		return "🌍"
	}
	return string(rune(code[0])+0x1F1A5) + string(rune(code[1])+0x1F1A5)
}

// EventFilter narrows event queries. Empty string fields match everything,
// non-empty fields combine with logical AND.
type EventFilter struct {
	SourceType  string    `json:"source_type,omitempty"`
	Action      string    `json:"action,omitempty"`
	Severity    string    `json:"severity,omitempty"`
	CountryCode string    `json:"country_code,omitempty"`
	SrcIP       string    `json:"src_ip,omitempty"`
	SourceHost  string    `json:"source_host,omitempty"`
	StartTime   time.Time `json:"start_time,omitempty"`
	EndTime     time.Time `json:"end_time,omitempty"`
}

// IPCount is a source IP with its event count in some window.
type IPCount struct {
	IP    string `json:"ip" ch:"ip"`
	Count uint64 `json:"count" ch:"count"`
}

// CountryCount is a country with its event count in some window.
type CountryCount struct {
	CountryCode string `json:"country_code" ch:"country_code"`
	CountryName string `json:"country_name" ch:"country_name"`
	Count       uint64 `json:"count" ch:"count"`
}

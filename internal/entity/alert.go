package entity

import (
	"time"

	"github.com/google/uuid"
)

// ConditionType selects how a rule is evaluated. Only ConditionCount is
// implemented by the evaluator; the others are accepted and stored but
// never fire.
type ConditionType string

const (
	ConditionCount     ConditionType = "count"
	ConditionThreshold ConditionType = "threshold"
	ConditionSpike     ConditionType = "spike"
	ConditionPattern   ConditionType = "pattern"
)

// AlertRule is a tenant-scoped alert configuration. The filter fields are
// optional equality filters over events; empty means "match all".
type AlertRule struct {
	ID    uuid.UUID `json:"id" ch:"id"`
	OrgID uuid.UUID `json:"org_id" ch:"org_id"`

	Name        string `json:"name" ch:"name"`
	Description string `json:"description,omitempty" ch:"description"`
	Enabled     bool   `json:"enabled" ch:"enabled"`

	ConditionType ConditionType `json:"condition_type" ch:"condition_type"`

	// Filters
	SourceType  string `json:"source_type,omitempty" ch:"source_type"`
	Action      string `json:"action,omitempty" ch:"action"`
	Severity    string `json:"severity,omitempty" ch:"severity"`
	CountryCode string `json:"country_code,omitempty" ch:"country_code"`
	SrcIP       string `json:"src_ip,omitempty" ch:"src_ip"`

	// Condition parameters
	Threshold         int `json:"threshold" ch:"threshold"`
	TimeWindowMinutes int `json:"time_window_minutes" ch:"time_window_minutes"`
	CooldownMinutes   int `json:"cooldown_minutes" ch:"cooldown_minutes"`

	// Ordered notification channel references
	ChannelIDs []uuid.UUID `json:"channel_ids" ch:"channel_ids"`

	// Trigger bookkeeping
	LastTriggered *time.Time `json:"last_triggered,omitempty" ch:"last_triggered"`
	TriggerCount  uint64     `json:"trigger_count" ch:"trigger_count"`

	CreatedAt time.Time `json:"created_at" ch:"created_at"`
	UpdatedAt time.Time `json:"updated_at" ch:"updated_at"`
}

// InCooldown reports whether the rule may not trigger yet.
func (r *AlertRule) InCooldown(now time.Time) bool {
	if r.LastTriggered == nil {
		return false
	}
	until := r.LastTriggered.Add(time.Duration(r.CooldownMinutes) * time.Minute)
	return now.Before(until)
}

// Filter returns the rule's event filter for a window ending at now.
func (r *AlertRule) Filter(now time.Time) EventFilter {
	return EventFilter{
		SourceType:  r.SourceType,
		Action:      r.Action,
		Severity:    r.Severity,
		CountryCode: r.CountryCode,
		SrcIP:       r.SrcIP,
		StartTime:   now.Add(-time.Duration(r.TimeWindowMinutes) * time.Minute),
		EndTime:     now,
	}
}

// EscalatedSeverity maps the event count to an alert severity by multiples
// of the rule threshold.
func EscalatedSeverity(eventCount, threshold int) string {
	switch {
	case eventCount >= threshold*3:
		return SeverityCritical
	case eventCount >= threshold*2:
		return SeverityHigh
	case float64(eventCount) >= float64(threshold)*1.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// AlertDetails is the structured snapshot stored with a triggered alert.
type AlertDetails struct {
	EventCount int               `json:"event_count"`
	TimeWindow string            `json:"time_window"`
	TopIPs     []IPCount         `json:"top_ips"`
	Servers    []string          `json:"servers"`
	Countries  []CountryCount    `json:"countries"`
	Filters    map[string]string `json:"filters"`
}

// NotificationOutcome records one delivery attempt for a triggered alert.
type NotificationOutcome struct {
	ChannelID   uuid.UUID `json:"channel_id"`
	ChannelName string    `json:"channel_name,omitempty"`
	ChannelType string    `json:"channel_type,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// AlertHistory is the immutable record of one rule trigger. Only the
// acknowledgement fields mutate, exactly once, by a human action.
type AlertHistory struct {
	ID       uuid.UUID `json:"id" ch:"id"`
	OrgID    uuid.UUID `json:"org_id" ch:"org_id"`
	RuleID   uuid.UUID `json:"rule_id" ch:"rule_id"`
	RuleName string    `json:"rule_name" ch:"rule_name"`

	TriggeredAt time.Time    `json:"triggered_at" ch:"triggered_at"`
	EventCount  int          `json:"event_count" ch:"event_count"`
	Severity    string       `json:"severity" ch:"severity"`
	Details     AlertDetails `json:"details"`

	Notifications []NotificationOutcome `json:"notifications_sent"`

	Acknowledged   bool       `json:"acknowledged" ch:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty" ch:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" ch:"acknowledged_at"`
}

// SweepSummary reports one full evaluation pass over all enabled rules.
type SweepSummary struct {
	RulesChecked      int          `json:"rules_checked"`
	AlertsTriggered   int          `json:"alerts_triggered"`
	NotificationsSent int          `json:"notifications_sent"`
	Errors            []SweepError `json:"errors"`
}

// SweepError is one rule's evaluation failure within a sweep.
type SweepError struct {
	RuleID   uuid.UUID `json:"rule_id"`
	RuleName string    `json:"rule_name"`
	Error    string    `json:"error"`
}

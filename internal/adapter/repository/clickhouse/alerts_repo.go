package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/entity"
)

// AlertsRepository stores alert rules and trigger history.
//
// Both tables are ReplacingMergeTrees keyed by (org_id, id) with
// updated_at as the version column, so updates are plain inserts and
// reads use FINAL. Details and notification outcomes are JSON strings.
type AlertsRepository struct {
	conn   *Connection
	logger *slog.Logger
}

// NewAlertsRepository creates a new alerts repository
func NewAlertsRepository(conn *Connection, logger *slog.Logger) *AlertsRepository {
	return &AlertsRepository{
		conn:   conn,
		logger: logger,
	}
}

const ruleColumns = `id, org_id, name, description, enabled, condition_type,
	source_type, action, severity, country_code, src_ip,
	threshold, time_window_minutes, cooldown_minutes, channel_ids,
	last_triggered, trigger_count, created_at, updated_at`

// SaveRule inserts a rule or a new version of an existing rule.
func (r *AlertsRepository) SaveRule(ctx context.Context, rule *entity.AlertRule) error {
	query := fmt.Sprintf(`INSERT INTO alert_rules (%s) VALUES (
		?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, ruleColumns)

	err := r.conn.Exec(ctx, query,
		rule.ID, rule.OrgID, rule.Name, rule.Description, rule.Enabled,
		string(rule.ConditionType),
		rule.SourceType, rule.Action, rule.Severity, rule.CountryCode, rule.SrcIP,
		rule.Threshold, rule.TimeWindowMinutes, rule.CooldownMinutes, rule.ChannelIDs,
		rule.LastTriggered, rule.TriggerCount, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// GetRule retrieves one rule by id.
func (r *AlertsRepository) GetRule(ctx context.Context, orgID, ruleID uuid.UUID) (*entity.AlertRule, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM alert_rules FINAL
		WHERE org_id = ? AND id = ?
		LIMIT 1
	`, ruleColumns)

	rows, err := r.conn.Query(ctx, query, orgID, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, entity.ErrNotFound
	}
	return scanRule(rows)
}

// ListRules returns all rules for one tenant.
func (r *AlertsRepository) ListRules(ctx context.Context, orgID uuid.UUID) ([]entity.AlertRule, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM alert_rules FINAL
		WHERE org_id = ?
		ORDER BY created_at
	`, ruleColumns)

	return r.queryRules(ctx, query, orgID)
}

// ListEnabledRules returns every enabled rule across all tenants, for the
// sweep scheduler.
func (r *AlertsRepository) ListEnabledRules(ctx context.Context) ([]entity.AlertRule, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM alert_rules FINAL
		WHERE enabled = 1
		ORDER BY org_id, created_at
	`, ruleColumns)

	return r.queryRules(ctx, query)
}

func (r *AlertsRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]entity.AlertRule, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []entity.AlertRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func scanRule(rows rowScanner) (*entity.AlertRule, error) {
	var rule entity.AlertRule
	var conditionType string
	if err := rows.Scan(
		&rule.ID, &rule.OrgID, &rule.Name, &rule.Description, &rule.Enabled,
		&conditionType,
		&rule.SourceType, &rule.Action, &rule.Severity, &rule.CountryCode, &rule.SrcIP,
		&rule.Threshold, &rule.TimeWindowMinutes, &rule.CooldownMinutes, &rule.ChannelIDs,
		&rule.LastTriggered, &rule.TriggerCount, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}
	rule.ConditionType = entity.ConditionType(conditionType)
	return &rule, nil
}

// RecordTrigger persists a rule's new trigger bookkeeping. The write is
// conditional on last_triggered still matching what the caller read at
// sweep start: the API scheduler and a cron alertcheck can sweep the
// same rules concurrently, and the loser gets ErrTriggerConflict
// instead of overwriting the winner's bookkeeping.
func (r *AlertsRepository) RecordTrigger(ctx context.Context, rule *entity.AlertRule, triggeredAt time.Time) error {
	lastTriggered, triggerCount, err := r.triggerState(ctx, rule.OrgID, rule.ID)
	if err != nil {
		return err
	}
	if lastTriggered != nil && (rule.LastTriggered == nil || lastTriggered.After(*rule.LastTriggered)) {
		return fmt.Errorf("%w: rule %s", entity.ErrTriggerConflict, rule.ID)
	}

	rule.LastTriggered = &triggeredAt
	rule.TriggerCount = triggerCount + 1
	rule.UpdatedAt = triggeredAt
	return r.SaveRule(ctx, rule)
}

// triggerState reads the stored trigger bookkeeping for one rule.
func (r *AlertsRepository) triggerState(ctx context.Context, orgID, ruleID uuid.UUID) (*time.Time, uint64, error) {
	query := `
		SELECT last_triggered, trigger_count FROM alert_rules FINAL
		WHERE org_id = ? AND id = ?
		LIMIT 1
	`

	rows, err := r.conn.Query(ctx, query, orgID, ruleID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query trigger state: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, 0, entity.ErrNotFound
	}

	var lastTriggered *time.Time
	var triggerCount uint64
	if err := rows.Scan(&lastTriggered, &triggerCount); err != nil {
		return nil, 0, fmt.Errorf("failed to scan trigger state: %w", err)
	}
	return lastTriggered, triggerCount, nil
}

const historyColumns = `id, org_id, rule_id, rule_name, triggered_at,
	event_count, severity, details, notifications,
	acknowledged, acknowledged_by, acknowledged_at, updated_at`

// SaveHistory inserts an alert history record or a new version of one.
func (r *AlertsRepository) SaveHistory(ctx context.Context, h *entity.AlertHistory) error {
	details, err := json.Marshal(h.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal alert details: %w", err)
	}
	notifications, err := json.Marshal(h.Notifications)
	if err != nil {
		return fmt.Errorf("failed to marshal notifications: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO alert_history (%s) VALUES (
		?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, historyColumns)

	err = r.conn.Exec(ctx, query,
		h.ID, h.OrgID, h.RuleID, h.RuleName, h.TriggeredAt,
		h.EventCount, h.Severity, string(details), string(notifications),
		h.Acknowledged, h.AcknowledgedBy, h.AcknowledgedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save alert history: %w", err)
	}
	return nil
}

// GetHistory retrieves one alert history record.
func (r *AlertsRepository) GetHistory(ctx context.Context, orgID, alertID uuid.UUID) (*entity.AlertHistory, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM alert_history FINAL
		WHERE org_id = ? AND id = ?
		LIMIT 1
	`, historyColumns)

	rows, err := r.conn.Query(ctx, query, orgID, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert history: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, entity.ErrNotFound
	}
	return scanHistory(rows)
}

// ListHistory returns triggered alerts for one tenant, newest first.
func (r *AlertsRepository) ListHistory(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]entity.AlertHistory, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM alert_history FINAL
		WHERE org_id = ?
		ORDER BY triggered_at DESC
		LIMIT ? OFFSET ?
	`, historyColumns)

	rows, err := r.conn.Query(ctx, query, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert history: %w", err)
	}
	defer rows.Close()

	var history []entity.AlertHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *h)
	}
	return history, rows.Err()
}

func scanHistory(rows rowScanner) (*entity.AlertHistory, error) {
	var h entity.AlertHistory
	var details, notifications string
	var updatedAt time.Time
	if err := rows.Scan(
		&h.ID, &h.OrgID, &h.RuleID, &h.RuleName, &h.TriggeredAt,
		&h.EventCount, &h.Severity, &details, &notifications,
		&h.Acknowledged, &h.AcknowledgedBy, &h.AcknowledgedAt, &updatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan alert history: %w", err)
	}
	if details != "" {
		if err := json.Unmarshal([]byte(details), &h.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alert details: %w", err)
		}
	}
	if notifications != "" {
		if err := json.Unmarshal([]byte(notifications), &h.Notifications); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notifications: %w", err)
		}
	}
	return &h, nil
}

package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/entity"
	"github.com/frclabs/reportcenter/internal/usecase/notifications"
)

const topNDetails = 5

// RuleStore is the rule and history persistence the evaluator depends on.
type RuleStore interface {
	ListEnabledRules(ctx context.Context) ([]entity.AlertRule, error)
	RecordTrigger(ctx context.Context, rule *entity.AlertRule, triggeredAt time.Time) error
	SaveHistory(ctx context.Context, h *entity.AlertHistory) error
}

// EventCounter provides the windowed event aggregates a rule evaluates.
type EventCounter interface {
	CountEvents(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter) (uint64, error)
	TopSourceIPs(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter, limit int) ([]entity.IPCount, error)
	DistinctHosts(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter) ([]string, error)
	CountryCounts(ctx context.Context, orgID uuid.UUID, filter entity.EventFilter, limit int) ([]entity.CountryCount, error)
}

// Notifier fans a triggered alert out to its channels.
type Notifier interface {
	SendAlert(ctx context.Context, orgID uuid.UUID, channelIDs []uuid.UUID, payload *entity.AlertPayload) []entity.NotificationOutcome
}

// Evaluator runs alert rules against the event store.
//
// Per tick a rule moves through cooldown check, count query, then
// trigger. The cooldown check always comes first so suppressed rules
// cost no query. On trigger the history row is persisted before
// notifications go out, and the rule's trigger bookkeeping is written
// last, so a crash mid-trigger re-triggers rather than losing the alert.
// Sweeps overlapping from another process settle at that final write:
// the store rejects a stale one with ErrTriggerConflict and the losing
// sweep stands down.
type Evaluator struct {
	rules    RuleStore
	events   EventCounter
	notifier Notifier
	logger   *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewEvaluator creates an alert evaluator.
func NewEvaluator(rules RuleStore, events EventCounter, notifier Notifier, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		rules:    rules,
		events:   events,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// EvaluateRule runs one rule and reports whether it triggered.
func (e *Evaluator) EvaluateRule(ctx context.Context, rule *entity.AlertRule) (bool, error) {
	triggered, _, err := e.evaluate(ctx, rule)
	return triggered, err
}

func (e *Evaluator) evaluate(ctx context.Context, rule *entity.AlertRule) (triggered bool, notified int, err error) {
	now := e.now()

	if rule.InCooldown(now) {
		e.logger.Debug("rule suppressed by cooldown", "rule_id", rule.ID, "rule", rule.Name)
		return false, 0, nil
	}

	filter := rule.Filter(now)
	count, err := e.events.CountEvents(ctx, rule.OrgID, filter)
	if err != nil {
		return false, 0, fmt.Errorf("count events: %w", err)
	}
	if count < uint64(rule.Threshold) {
		return false, 0, nil
	}

	severity := entity.EscalatedSeverity(int(count), rule.Threshold)
	details, err := e.buildDetails(ctx, rule, filter, int(count))
	if err != nil {
		return false, 0, fmt.Errorf("build details: %w", err)
	}

	history := &entity.AlertHistory{
		ID:          uuid.New(),
		OrgID:       rule.OrgID,
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		TriggeredAt: now,
		EventCount:  int(count),
		Severity:    severity,
		Details:     *details,
	}
	if err := e.rules.SaveHistory(ctx, history); err != nil {
		return false, 0, fmt.Errorf("persist alert history: %w", err)
	}

	e.logger.Info("alert rule triggered",
		"rule_id", rule.ID,
		"rule", rule.Name,
		"org_id", rule.OrgID,
		"events", count,
		"severity", severity,
	)

	payload := notifications.BuildAlertPayload(history)
	outcomes := e.notifier.SendAlert(ctx, rule.OrgID, rule.ChannelIDs, payload)
	for _, o := range outcomes {
		if o.Success {
			notified++
		}
	}
	if len(outcomes) > 0 {
		history.Notifications = append(history.Notifications, outcomes...)
		if err := e.rules.SaveHistory(ctx, history); err != nil {
			e.logger.Error("failed to record notification outcomes",
				"alert_id", history.ID,
				"error", err,
			)
		}
	}

	// Last write: cooldown keys off last_triggered, so a failure before
	// this point re-triggers instead of losing the alert. A conflict
	// means an overlapping sweep already recorded the trigger; the
	// alert itself went out, so it is logged rather than surfaced.
	if err := e.rules.RecordTrigger(ctx, rule, now); err != nil {
		if errors.Is(err, entity.ErrTriggerConflict) {
			e.logger.Warn("trigger recorded by a concurrent sweep",
				"rule_id", rule.ID,
				"rule", rule.Name,
			)
			return true, notified, nil
		}
		return true, notified, fmt.Errorf("record trigger: %w", err)
	}

	return true, notified, nil
}

func (e *Evaluator) buildDetails(ctx context.Context, rule *entity.AlertRule, filter entity.EventFilter, count int) (*entity.AlertDetails, error) {
	topIPs, err := e.events.TopSourceIPs(ctx, rule.OrgID, filter, topNDetails)
	if err != nil {
		return nil, err
	}
	hosts, err := e.events.DistinctHosts(ctx, rule.OrgID, filter)
	if err != nil {
		return nil, err
	}
	countries, err := e.events.CountryCounts(ctx, rule.OrgID, filter, topNDetails)
	if err != nil {
		return nil, err
	}

	return &entity.AlertDetails{
		EventCount: count,
		TimeWindow: fmt.Sprintf("%dm", rule.TimeWindowMinutes),
		TopIPs:     topIPs,
		Servers:    hosts,
		Countries:  countries,
		Filters:    activeFilters(rule),
	}, nil
}

func activeFilters(rule *entity.AlertRule) map[string]string {
	filters := make(map[string]string)
	if rule.SourceType != "" {
		filters["source_type"] = rule.SourceType
	}
	if rule.Action != "" {
		filters["action"] = rule.Action
	}
	if rule.Severity != "" {
		filters["severity"] = rule.Severity
	}
	if rule.CountryCode != "" {
		filters["country_code"] = rule.CountryCode
	}
	if rule.SrcIP != "" {
		filters["src_ip"] = rule.SrcIP
	}
	return filters
}

// EvaluateAll sweeps every enabled rule. A failing rule is reported in
// the summary and never aborts the rest of the sweep.
func (e *Evaluator) EvaluateAll(ctx context.Context) (*entity.SweepSummary, error) {
	rules, err := e.rules.ListEnabledRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled rules: %w", err)
	}

	summary := &entity.SweepSummary{RulesChecked: len(rules)}
	for i := range rules {
		rule := &rules[i]
		triggered, notified, err := e.evaluate(ctx, rule)
		if err != nil {
			summary.Errors = append(summary.Errors, entity.SweepError{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Error:    err.Error(),
			})
			e.logger.Error("rule evaluation failed",
				"rule_id", rule.ID,
				"rule", rule.Name,
				"error", err,
			)
		}
		if triggered {
			summary.AlertsTriggered++
			summary.NotificationsSent += notified
		}
	}

	return summary, nil
}

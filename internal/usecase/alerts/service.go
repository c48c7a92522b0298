package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/entity"
)

var validate = validator.New()

// Store is the full persistence surface for rule and history management.
type Store interface {
	RuleStore
	SaveRule(ctx context.Context, rule *entity.AlertRule) error
	GetRule(ctx context.Context, orgID, ruleID uuid.UUID) (*entity.AlertRule, error)
	ListRules(ctx context.Context, orgID uuid.UUID) ([]entity.AlertRule, error)
	GetHistory(ctx context.Context, orgID, alertID uuid.UUID) (*entity.AlertHistory, error)
	ListHistory(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]entity.AlertHistory, error)
}

// Service manages alert rule configuration and history access.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates an alert management service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// RuleInput is the caller-facing rule definition.
type RuleInput struct {
	Name          string `json:"name" validate:"required,max=128"`
	Description   string `json:"description,omitempty" validate:"max=512"`
	Enabled       *bool  `json:"enabled,omitempty"`
	ConditionType string `json:"condition_type" validate:"required,oneof=count threshold spike pattern"`

	SourceType  string `json:"source_type,omitempty" validate:"omitempty,oneof=haproxy nginx crowdsec fail2ban"`
	Action      string `json:"action,omitempty"`
	Severity    string `json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	CountryCode string `json:"country_code,omitempty" validate:"omitempty,len=2"`
	SrcIP       string `json:"src_ip,omitempty" validate:"omitempty,ip"`

	Threshold         int `json:"threshold" validate:"required,min=1"`
	TimeWindowMinutes int `json:"time_window_minutes" validate:"required,min=1,max=1440"`
	CooldownMinutes   int `json:"cooldown_minutes" validate:"min=0,max=10080"`

	ChannelIDs []uuid.UUID `json:"channel_ids,omitempty"`
}

// CreateRule validates and stores a new rule.
func (s *Service) CreateRule(ctx context.Context, orgID uuid.UUID, input RuleInput) (*entity.AlertRule, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid rule: %w", err)
	}

	now := time.Now().UTC()
	rule := &entity.AlertRule{
		ID:                uuid.New(),
		OrgID:             orgID,
		Name:              input.Name,
		Description:       input.Description,
		Enabled:           true,
		ConditionType:     entity.ConditionType(input.ConditionType),
		SourceType:        input.SourceType,
		Action:            input.Action,
		Severity:          input.Severity,
		CountryCode:       input.CountryCode,
		SrcIP:             input.SrcIP,
		Threshold:         input.Threshold,
		TimeWindowMinutes: input.TimeWindowMinutes,
		CooldownMinutes:   input.CooldownMinutes,
		ChannelIDs:        input.ChannelIDs,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if input.Enabled != nil {
		rule.Enabled = *input.Enabled
	}

	if err := s.store.SaveRule(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("alert rule created",
		"rule_id", rule.ID,
		"org_id", orgID,
		"name", rule.Name,
	)
	return rule, nil
}

// GetRule retrieves one rule.
func (s *Service) GetRule(ctx context.Context, orgID, ruleID uuid.UUID) (*entity.AlertRule, error) {
	return s.store.GetRule(ctx, orgID, ruleID)
}

// ListRules returns all rules for a tenant.
func (s *Service) ListRules(ctx context.Context, orgID uuid.UUID) ([]entity.AlertRule, error) {
	return s.store.ListRules(ctx, orgID)
}

// ListHistory returns triggered alerts for a tenant, newest first.
func (s *Service) ListHistory(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]entity.AlertHistory, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListHistory(ctx, orgID, limit, offset)
}

// Acknowledge marks a triggered alert as seen. An alert can be
// acknowledged exactly once.
func (s *Service) Acknowledge(ctx context.Context, orgID, alertID uuid.UUID, actor string) (*entity.AlertHistory, error) {
	if actor == "" {
		return nil, fmt.Errorf("acknowledging actor is required")
	}

	h, err := s.store.GetHistory(ctx, orgID, alertID)
	if err != nil {
		return nil, err
	}
	if h.Acknowledged {
		return nil, fmt.Errorf("alert %s is already acknowledged", alertID)
	}

	now := time.Now().UTC()
	h.Acknowledged = true
	h.AcknowledgedBy = actor
	h.AcknowledgedAt = &now

	if err := s.store.SaveHistory(ctx, h); err != nil {
		return nil, err
	}

	s.logger.Info("alert acknowledged", "alert_id", alertID, "by", actor)
	return h, nil
}

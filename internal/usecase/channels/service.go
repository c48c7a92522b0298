package channels

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/entity"
)

// Repository is the channel storage the service depends on.
type Repository interface {
	SaveChannel(ctx context.Context, ch *entity.NotificationChannel) error
	GetChannel(ctx context.Context, orgID, channelID uuid.UUID) (*entity.NotificationChannel, error)
	ListChannels(ctx context.Context, orgID uuid.UUID) ([]entity.NotificationChannel, error)
	DeleteChannel(ctx context.Context, orgID, channelID uuid.UUID) error
}

// Service manages notification channels. Webhook URLs are validated and
// encrypted before they reach storage, and only decrypted for delivery.
type Service struct {
	repo   Repository
	cipher *Cipher
	logger *slog.Logger
}

// NewService creates a channel service.
func NewService(repo Repository, cipher *Cipher, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		cipher: cipher,
		logger: logger,
	}
}

// CreateInput is the caller-facing channel definition.
type CreateInput struct {
	ChannelType entity.ChannelType `json:"channel_type" validate:"required,oneof=email slack discord webhook"`
	Name        string             `json:"name" validate:"required,max=128"`
	WebhookURL  string             `json:"webhook_url,omitempty"`
	Recipients  []string           `json:"recipients,omitempty"`
	Enabled     *bool              `json:"enabled,omitempty"`
}

// Create validates, encrypts and stores a new channel.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, input CreateInput) (*entity.NotificationChannel, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid channel: %w", err)
	}

	ch := &entity.NotificationChannel{
		ID:          uuid.New(),
		OrgID:       orgID,
		ChannelType: input.ChannelType,
		Name:        input.Name,
		Enabled:     true,
		CreatedAt:   time.Now().UTC(),
	}
	if input.Enabled != nil {
		ch.Enabled = *input.Enabled
	}

	switch input.ChannelType {
	case entity.ChannelEmail:
		if err := ValidateRecipients(input.Recipients); err != nil {
			return nil, err
		}
		ch.Recipients = input.Recipients
	default:
		if err := ValidateWebhookURL(input.ChannelType, input.WebhookURL); err != nil {
			return nil, err
		}
		encrypted, err := s.cipher.Encrypt(input.WebhookURL)
		if err != nil {
			return nil, fmt.Errorf("encrypt webhook url: %w", err)
		}
		ch.EncryptedSecret = encrypted
	}

	if err := s.repo.SaveChannel(ctx, ch); err != nil {
		return nil, err
	}

	s.logger.Info("notification channel created",
		"channel_id", ch.ID,
		"org_id", orgID,
		"type", ch.ChannelType,
	)
	return ch, nil
}

// Get retrieves one channel.
func (s *Service) Get(ctx context.Context, orgID, channelID uuid.UUID) (*entity.NotificationChannel, error) {
	return s.repo.GetChannel(ctx, orgID, channelID)
}

// List returns all channels for a tenant.
func (s *Service) List(ctx context.Context, orgID uuid.UUID) ([]entity.NotificationChannel, error) {
	return s.repo.ListChannels(ctx, orgID)
}

// Delete removes a channel.
func (s *Service) Delete(ctx context.Context, orgID, channelID uuid.UUID) error {
	if _, err := s.repo.GetChannel(ctx, orgID, channelID); err != nil {
		return err
	}
	if err := s.repo.DeleteChannel(ctx, orgID, channelID); err != nil {
		return err
	}
	s.logger.Info("notification channel deleted", "channel_id", channelID, "org_id", orgID)
	return nil
}

// MarkVerified records a successful test delivery.
func (s *Service) MarkVerified(ctx context.Context, ch *entity.NotificationChannel) error {
	ch.Verified = true
	return s.repo.SaveChannel(ctx, ch)
}

// WebhookURL decrypts a webhook channel's stored URL.
func (s *Service) WebhookURL(ch *entity.NotificationChannel) (string, error) {
	if ch.EncryptedSecret == "" {
		return "", fmt.Errorf("channel %s has no webhook url", ch.ID)
	}
	return s.cipher.Decrypt(ch.EncryptedSecret)
}

// MaskedSecret renders the channel secret for display, exposing at most
// the last 8 characters.
func (s *Service) MaskedSecret(ch *entity.NotificationChannel) string {
	if ch.EncryptedSecret == "" {
		return ""
	}
	plaintext, err := s.cipher.Decrypt(ch.EncryptedSecret)
	if err != nil {
		return "***"
	}
	return Mask(plaintext)
}

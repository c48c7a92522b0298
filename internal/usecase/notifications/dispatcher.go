package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/adapter/external/smtp"
	"github.com/frclabs/reportcenter/internal/entity"
)

// ChannelStore loads channels and records delivery outcomes.
type ChannelStore interface {
	GetChannel(ctx context.Context, orgID, channelID uuid.UUID) (*entity.NotificationChannel, error)
	RecordDelivery(ctx context.Context, ch *entity.NotificationChannel, success bool, at time.Time) error
}

// SecretOpener decrypts a channel's webhook URL.
type SecretOpener interface {
	WebhookURL(ch *entity.NotificationChannel) (string, error)
}

// WebhookSender delivers payloads to webhook endpoints.
type WebhookSender interface {
	SendDiscord(ctx context.Context, webhookURL string, payload *entity.AlertPayload) error
	SendSlack(ctx context.Context, webhookURL string, payload *entity.AlertPayload) error
	SendGeneric(ctx context.Context, webhookURL string, payload *entity.AlertPayload) error
}

// EmailSender delivers email messages.
type EmailSender interface {
	Send(ctx context.Context, msg *smtp.Message) error
	IsConfigured() bool
}

// Dispatcher fans one alert out to its configured channels. Channels are
// tried independently and concurrently; a failure on one never blocks
// another, and every attempt updates the channel's usage counters.
type Dispatcher struct {
	channels ChannelStore
	secrets  SecretOpener
	webhook  WebhookSender
	email    EmailSender
	logger   *slog.Logger
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(channels ChannelStore, secrets SecretOpener, webhook WebhookSender, email EmailSender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		secrets:  secrets,
		webhook:  webhook,
		email:    email,
		logger:   logger,
	}
}

// SendAlert delivers the payload to every channel id, in channel order in
// the returned outcomes.
func (d *Dispatcher) SendAlert(ctx context.Context, orgID uuid.UUID, channelIDs []uuid.UUID, payload *entity.AlertPayload) []entity.NotificationOutcome {
	outcomes := make([]entity.NotificationOutcome, len(channelIDs))

	var wg sync.WaitGroup
	for i, id := range channelIDs {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			outcomes[i] = d.sendOne(ctx, orgID, id, payload)
		}(i, id)
	}
	wg.Wait()

	return outcomes
}

func (d *Dispatcher) sendOne(ctx context.Context, orgID, channelID uuid.UUID, payload *entity.AlertPayload) entity.NotificationOutcome {
	now := time.Now().UTC()
	outcome := entity.NotificationOutcome{
		ChannelID: channelID,
		Timestamp: now,
	}

	ch, err := d.channels.GetChannel(ctx, orgID, channelID)
	if err != nil {
		outcome.Error = fmt.Sprintf("load channel: %v", err)
		return outcome
	}
	outcome.ChannelName = ch.Name
	outcome.ChannelType = string(ch.ChannelType)

	if !ch.Enabled {
		outcome.Error = "channel disabled"
		return outcome
	}

	err = d.deliver(ctx, ch, payload)
	outcome.Success = err == nil
	if err != nil {
		outcome.Error = err.Error()
		d.logger.Warn("notification delivery failed",
			"channel_id", ch.ID,
			"type", ch.ChannelType,
			"error", err,
		)
	}

	if recErr := d.channels.RecordDelivery(ctx, ch, outcome.Success, now); recErr != nil {
		d.logger.Error("failed to record delivery", "channel_id", ch.ID, "error", recErr)
	}

	return outcome
}

func (d *Dispatcher) deliver(ctx context.Context, ch *entity.NotificationChannel, payload *entity.AlertPayload) error {
	switch ch.ChannelType {
	case entity.ChannelEmail:
		if d.email == nil || !d.email.IsConfigured() {
			return fmt.Errorf("smtp not configured")
		}
		return d.email.Send(ctx, &smtp.Message{
			Subject:    payload.Title,
			TextBody:   RenderText(payload),
			Recipients: ch.Recipients,
		})
	case entity.ChannelDiscord, entity.ChannelSlack, entity.ChannelWebhook:
		url, err := d.secrets.WebhookURL(ch)
		if err != nil {
			return fmt.Errorf("channel misconfigured: %w", err)
		}
		switch ch.ChannelType {
		case entity.ChannelDiscord:
			return d.webhook.SendDiscord(ctx, url, payload)
		case entity.ChannelSlack:
			return d.webhook.SendSlack(ctx, url, payload)
		default:
			return d.webhook.SendGeneric(ctx, url, payload)
		}
	default:
		return fmt.Errorf("unsupported channel type %q", ch.ChannelType)
	}
}

// SendTest delivers a fixed verification payload to one channel.
func (d *Dispatcher) SendTest(ctx context.Context, ch *entity.NotificationChannel) error {
	payload := &entity.AlertPayload{
		Title:    "Test Notification",
		Message:  "This is a test notification from Firewall Report Center.",
		Severity: entity.SeverityLow,
	}
	return d.deliver(ctx, ch, payload)
}

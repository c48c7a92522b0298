package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChannelType identifies a notification destination kind.
type ChannelType string

const (
	ChannelEmail   ChannelType = "email"
	ChannelSlack   ChannelType = "slack"
	ChannelDiscord ChannelType = "discord"
	ChannelWebhook ChannelType = "webhook"
)

// NotificationChannel is a tenant-scoped delivery target. Webhook URLs are
// stored encrypted in EncryptedSecret and are only decrypted immediately
// before a send.
type NotificationChannel struct {
	ID    uuid.UUID `json:"id" ch:"id"`
	OrgID uuid.UUID `json:"org_id" ch:"org_id"`

	ChannelType ChannelType `json:"channel_type" ch:"channel_type"`
	Name        string      `json:"name" ch:"name"`

	// Webhook channels: encrypted webhook URL. Email channels: empty.
	EncryptedSecret string `json:"-" ch:"encrypted_secret"`
	// Email channels: recipient addresses. Webhook channels: empty.
	Recipients []string `json:"recipients,omitempty" ch:"recipients"`

	Enabled  bool `json:"enabled" ch:"enabled"`
	Verified bool `json:"verified" ch:"verified"`

	// Usage counters, aggregated from per-delivery rows at read time
	LastUsed            *time.Time `json:"last_used,omitempty" ch:"last_used"`
	TotalNotifications  uint64     `json:"total_notifications" ch:"total_notifications"`
	FailedNotifications uint64     `json:"failed_notifications" ch:"failed_notifications"`

	CreatedAt time.Time `json:"created_at" ch:"created_at"`
}

// AlertPayload is the channel-agnostic rendering input for one alert.
type AlertPayload struct {
	Title    string       `json:"title"`
	Message  string       `json:"message"`
	Severity string       `json:"severity"`
	Details  AlertDetails `json:"details"`
}

// SeverityColor returns the accent color used by rich-embed channels.
func (p *AlertPayload) SeverityColor() int {
	switch p.Severity {
	case SeverityCritical:
		return 0xEF4444
	case SeverityHigh:
		return 0xF97316
	case SeverityMedium:
		return 0xEAB308
	default:
		return 0x3B82F6
	}
}

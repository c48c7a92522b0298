package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/frclabs/reportcenter/internal/entity"
)

func TestValidateWebhookURL(t *testing.T) {
	tests := []struct {
		name        string
		channelType entity.ChannelType
		url         string
		wantErr     bool
	}{
		{"slack official host", entity.ChannelSlack, "https://hooks.slack.com/services/T/B/X", false},
		{"slack wrong host", entity.ChannelSlack, "https://evil.example.com/services/T/B/X", true},
		{"slack http rejected", entity.ChannelSlack, "http://hooks.slack.com/services/T/B/X", true},
		{"discord primary host", entity.ChannelDiscord, "https://discord.com/api/webhooks/1/t", false},
		{"discord legacy host", entity.ChannelDiscord, "https://discordapp.com/api/webhooks/1/t", false},
		{"discord lookalike host", entity.ChannelDiscord, "https://discord.com.evil.net/api/webhooks/1/t", true},
		{"generic any https host", entity.ChannelWebhook, "https://ops.example.com/hook", false},
		{"generic http rejected", entity.ChannelWebhook, "http://ops.example.com/hook", true},
		{"empty url", entity.ChannelWebhook, "", true},
		{"garbage url", entity.ChannelSlack, "://nope", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWebhookURL(tt.channelType, tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRecipients(t *testing.T) {
	assert.NoError(t, ValidateRecipients([]string{"ops@example.com"}))
	assert.NoError(t, ValidateRecipients([]string{"a@example.com", "b@example.org"}))

	assert.Error(t, ValidateRecipients(nil))
	assert.Error(t, ValidateRecipients([]string{}))
	assert.Error(t, ValidateRecipients([]string{"not-an-email"}))
	assert.Error(t, ValidateRecipients([]string{"ok@example.com", ""}))
}

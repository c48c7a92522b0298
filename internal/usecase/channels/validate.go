package channels

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/frclabs/reportcenter/internal/entity"
)

var validate = validator.New()

// webhookHosts restricts slack and discord channels to the vendors' own
// webhook endpoints. Generic webhook channels accept any HTTPS host.
var webhookHosts = map[entity.ChannelType][]string{
	entity.ChannelSlack:   {"hooks.slack.com"},
	entity.ChannelDiscord: {"discord.com", "discordapp.com"},
}

// ValidateWebhookURL checks scheme and, for vendor channels, the host.
func ValidateWebhookURL(channelType entity.ChannelType, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("webhook url must use https")
	}
	if u.Host == "" {
		return fmt.Errorf("webhook url has no host")
	}

	allowed, restricted := webhookHosts[channelType]
	if !restricted {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range allowed {
		if host == h {
			return nil
		}
	}
	return fmt.Errorf("host %q is not a valid %s webhook endpoint", host, channelType)
}

// ValidateRecipients checks that every address is a well-formed email and
// that at least one is present.
func ValidateRecipients(recipients []string) error {
	if len(recipients) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	for _, addr := range recipients {
		if err := validate.Var(addr, "required,email"); err != nil {
			return fmt.Errorf("invalid recipient %q", addr)
		}
	}
	return nil
}

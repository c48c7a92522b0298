package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/frclabs/reportcenter/internal/entity"
)

// Client posts alert payloads to Discord, Slack and generic webhooks.
// Webhook URLs arrive decrypted from the caller and are never logged.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a webhook client with a bounded delivery timeout.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp"`
	Footer      discordFooter  `json:"footer"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// SendDiscord delivers a rich embed to a Discord webhook.
func (c *Client) SendDiscord(ctx context.Context, webhookURL string, payload *entity.AlertPayload) error {
	embed := discordEmbed{
		Title:       payload.Title,
		Description: payload.Message,
		Color:       payload.SeverityColor(),
		Fields:      discordFields(&payload.Details),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Footer:      discordFooter{Text: "Firewall Report Center"},
	}

	body := map[string]any{"embeds": []discordEmbed{embed}}
	return c.post(ctx, webhookURL, body, http.StatusOK, http.StatusNoContent)
}

func discordFields(details *entity.AlertDetails) []discordField {
	var fields []discordField
	if details.EventCount > 0 {
		fields = append(fields, discordField{
			Name:   "Events",
			Value:  fmt.Sprintf("%d", details.EventCount),
			Inline: true,
		})
	}
	if details.TimeWindow != "" {
		fields = append(fields, discordField{
			Name:   "Time Window",
			Value:  details.TimeWindow,
			Inline: true,
		})
	}
	if len(details.TopIPs) > 0 {
		top := details.TopIPs
		if len(top) > 5 {
			top = top[:5]
		}
		var list bytes.Buffer
		for _, ip := range top {
			fmt.Fprintf(&list, "• %s (%d events)\n", ip.IP, ip.Count)
		}
		fields = append(fields, discordField{
			Name:  "Top IPs",
			Value: list.String(),
		})
	}
	return fields
}

// SendSlack delivers a flattened text block to a Slack webhook.
func (c *Client) SendSlack(ctx context.Context, webhookURL string, payload *entity.AlertPayload) error {
	body := map[string]any{
		"text": fmt.Sprintf("*%s*\n%s", payload.Title, payload.Message),
	}
	return c.post(ctx, webhookURL, body, http.StatusOK)
}

// SendGeneric delivers the full payload as JSON to a generic webhook.
func (c *Client) SendGeneric(ctx context.Context, webhookURL string, payload *entity.AlertPayload) error {
	return c.post(ctx, webhookURL, payload, http.StatusOK, http.StatusAccepted, http.StatusNoContent)
}

func (c *Client) post(ctx context.Context, url string, body any, okStatuses ...int) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	for _, status := range okStatuses {
		if resp.StatusCode == status {
			return nil
		}
	}
	return fmt.Errorf("webhook returned status %d", resp.StatusCode)
}

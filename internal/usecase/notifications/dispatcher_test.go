package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frclabs/reportcenter/internal/adapter/external/smtp"
	"github.com/frclabs/reportcenter/internal/entity"
)

// fakeChannelStore keeps channels in memory and counts delivery records.
type fakeChannelStore struct {
	mu         sync.Mutex
	channels   map[uuid.UUID]*entity.NotificationChannel
	deliveries []bool
}

func newFakeChannelStore(chs ...*entity.NotificationChannel) *fakeChannelStore {
	s := &fakeChannelStore{channels: make(map[uuid.UUID]*entity.NotificationChannel)}
	for _, ch := range chs {
		s.channels[ch.ID] = ch
	}
	return s
}

func (s *fakeChannelStore) GetChannel(ctx context.Context, orgID, channelID uuid.UUID) (*entity.NotificationChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok || ch.OrgID != orgID {
		return nil, entity.ErrNotFound
	}
	return ch, nil
}

func (s *fakeChannelStore) RecordDelivery(ctx context.Context, ch *entity.NotificationChannel, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch.LastUsed = &at
	ch.TotalNotifications++
	if !success {
		ch.FailedNotifications++
	}
	s.deliveries = append(s.deliveries, success)
	return nil
}

type fakeSecrets struct {
	urls map[uuid.UUID]string
	err  error
}

func (f *fakeSecrets) WebhookURL(ch *entity.NotificationChannel) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.urls[ch.ID], nil
}

// fakeWebhookSender fails for URLs listed in failing.
type fakeWebhookSender struct {
	mu      sync.Mutex
	sent    []string
	failing map[string]bool
}

func (f *fakeWebhookSender) send(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, url)
	if f.failing[url] {
		return fmt.Errorf("delivery failed")
	}
	return nil
}

func (f *fakeWebhookSender) SendDiscord(ctx context.Context, url string, p *entity.AlertPayload) error {
	return f.send(url)
}

func (f *fakeWebhookSender) SendSlack(ctx context.Context, url string, p *entity.AlertPayload) error {
	return f.send(url)
}

func (f *fakeWebhookSender) SendGeneric(ctx context.Context, url string, p *entity.AlertPayload) error {
	return f.send(url)
}

type fakeEmailSender struct {
	sent       []*smtp.Message
	configured bool
	err        error
}

func (f *fakeEmailSender) Send(ctx context.Context, msg *smtp.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeEmailSender) IsConfigured() bool { return f.configured }

func testPayload() *entity.AlertPayload {
	return &entity.AlertPayload{
		Title:    "[HIGH] SSH brute force",
		Message:  "Alert rule triggered",
		Severity: entity.SeverityHigh,
		Details: entity.AlertDetails{
			EventCount: 42,
			TimeWindow: "15m",
			TopIPs:     []entity.IPCount{{IP: "203.0.113.9", Count: 40}},
		},
	}
}

func TestSendAlertPartialFailure(t *testing.T) {
	orgID := uuid.New()
	good := &entity.NotificationChannel{
		ID: uuid.New(), OrgID: orgID,
		ChannelType: entity.ChannelDiscord, Name: "discord", Enabled: true,
	}
	bad := &entity.NotificationChannel{
		ID: uuid.New(), OrgID: orgID,
		ChannelType: entity.ChannelSlack, Name: "slack", Enabled: true,
	}

	store := newFakeChannelStore(good, bad)
	secrets := &fakeSecrets{urls: map[uuid.UUID]string{
		good.ID: "https://discord.com/api/webhooks/1/ok",
		bad.ID:  "https://hooks.slack.com/services/broken",
	}}
	sender := &fakeWebhookSender{failing: map[string]bool{
		"https://hooks.slack.com/services/broken": true,
	}}

	d := NewDispatcher(store, secrets, sender, nil, slog.Default())
	outcomes := d.SendAlert(context.Background(), orgID, []uuid.UUID{good.ID, bad.ID}, testPayload())

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Success)
	assert.False(t, outcomes[1].Success)
	assert.NotEmpty(t, outcomes[1].Error)

	// Both channels were attempted despite the failure.
	assert.Len(t, sender.sent, 2)

	// Counters updated on both, failure counted once.
	assert.Equal(t, uint64(1), good.TotalNotifications)
	assert.Equal(t, uint64(0), good.FailedNotifications)
	assert.Equal(t, uint64(1), bad.TotalNotifications)
	assert.Equal(t, uint64(1), bad.FailedNotifications)
	assert.NotNil(t, good.LastUsed)
	assert.NotNil(t, bad.LastUsed)
}

func TestSendAlertMissingChannel(t *testing.T) {
	store := newFakeChannelStore()
	d := NewDispatcher(store, &fakeSecrets{}, &fakeWebhookSender{}, nil, slog.Default())

	outcomes := d.SendAlert(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}, testPayload())

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Contains(t, outcomes[0].Error, "load channel")
}

func TestSendAlertDisabledChannel(t *testing.T) {
	orgID := uuid.New()
	ch := &entity.NotificationChannel{
		ID: uuid.New(), OrgID: orgID,
		ChannelType: entity.ChannelDiscord, Name: "off", Enabled: false,
	}
	store := newFakeChannelStore(ch)
	sender := &fakeWebhookSender{}

	d := NewDispatcher(store, &fakeSecrets{}, sender, nil, slog.Default())
	outcomes := d.SendAlert(context.Background(), orgID, []uuid.UUID{ch.ID}, testPayload())

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Equal(t, "channel disabled", outcomes[0].Error)
	assert.Empty(t, sender.sent)
	assert.Equal(t, uint64(0), ch.TotalNotifications, "no attempt recorded for disabled channels")
}

func TestSendAlertDecryptFailure(t *testing.T) {
	orgID := uuid.New()
	ch := &entity.NotificationChannel{
		ID: uuid.New(), OrgID: orgID,
		ChannelType: entity.ChannelSlack, Name: "corrupt", Enabled: true,
	}
	store := newFakeChannelStore(ch)
	secrets := &fakeSecrets{err: entity.ErrDecryptFailure}
	sender := &fakeWebhookSender{}

	d := NewDispatcher(store, secrets, sender, nil, slog.Default())
	outcomes := d.SendAlert(context.Background(), orgID, []uuid.UUID{ch.ID}, testPayload())

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Contains(t, outcomes[0].Error, "channel misconfigured")
	assert.Empty(t, sender.sent, "no network call with an unreadable secret")
	assert.Equal(t, uint64(1), ch.FailedNotifications)
}

func TestSendAlertEmail(t *testing.T) {
	orgID := uuid.New()
	ch := &entity.NotificationChannel{
		ID: uuid.New(), OrgID: orgID,
		ChannelType: entity.ChannelEmail, Name: "mail", Enabled: true,
		Recipients: []string{"ops@example.com"},
	}
	store := newFakeChannelStore(ch)
	email := &fakeEmailSender{configured: true}

	d := NewDispatcher(store, &fakeSecrets{}, &fakeWebhookSender{}, email, slog.Default())
	outcomes := d.SendAlert(context.Background(), orgID, []uuid.UUID{ch.ID}, testPayload())

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success)
	require.Len(t, email.sent, 1)
	assert.Equal(t, "[HIGH] SSH brute force", email.sent[0].Subject)
	assert.Equal(t, []string{"ops@example.com"}, email.sent[0].Recipients)
	assert.Contains(t, email.sent[0].TextBody, "203.0.113.9")
}

func TestSendTest(t *testing.T) {
	ch := &entity.NotificationChannel{
		ID:          uuid.New(),
		ChannelType: entity.ChannelWebhook,
		Enabled:     true,
	}
	secrets := &fakeSecrets{urls: map[uuid.UUID]string{ch.ID: "https://ops.example.com/hook"}}
	sender := &fakeWebhookSender{}

	d := NewDispatcher(newFakeChannelStore(ch), secrets, sender, nil, slog.Default())
	require.NoError(t, d.SendTest(context.Background(), ch))
	assert.Equal(t, []string{"https://ops.example.com/hook"}, sender.sent)
}

func TestBuildAlertPayload(t *testing.T) {
	h := &entity.AlertHistory{
		RuleName:   "SSH brute force",
		Severity:   entity.SeverityCritical,
		EventCount: 99,
		Details: entity.AlertDetails{
			EventCount: 99,
			TimeWindow: "30m",
		},
	}

	p := BuildAlertPayload(h)
	assert.Equal(t, "[CRITICAL] SSH brute force", p.Title)
	assert.Contains(t, p.Message, "99 events")
	assert.Equal(t, entity.SeverityCritical, p.Severity)
	assert.Equal(t, 0xEF4444, p.SeverityColor())
}

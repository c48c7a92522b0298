package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frclabs/reportcenter/internal/entity"
)

// ChannelsRepository stores notification channels. Secrets arrive already
// encrypted; this layer never sees plaintext webhook URLs.
//
// Channel definitions live in notification_channels, a ReplacingMergeTree.
// Usage counters live separately in channel_usage, a SummingMergeTree fed
// one delta row per delivery attempt, so writers in different processes
// add up instead of overwriting each other. Reads aggregate the deltas.
type ChannelsRepository struct {
	conn   *Connection
	logger *slog.Logger
}

// NewChannelsRepository creates a new channels repository
func NewChannelsRepository(conn *Connection, logger *slog.Logger) *ChannelsRepository {
	return &ChannelsRepository{
		conn:   conn,
		logger: logger,
	}
}

const channelColumns = `id, org_id, channel_type, name, encrypted_secret,
	recipients, enabled, verified, created_at, updated_at`

// SaveChannel inserts a channel or a new version of an existing channel.
func (r *ChannelsRepository) SaveChannel(ctx context.Context, ch *entity.NotificationChannel) error {
	query := fmt.Sprintf(`INSERT INTO notification_channels (%s) VALUES (
		?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, channelColumns)

	err := r.conn.Exec(ctx, query,
		ch.ID, ch.OrgID, string(ch.ChannelType), ch.Name, ch.EncryptedSecret,
		ch.Recipients, ch.Enabled, ch.Verified, ch.CreatedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save channel: %w", err)
	}
	return nil
}

// GetChannel retrieves one channel by id.
func (r *ChannelsRepository) GetChannel(ctx context.Context, orgID, channelID uuid.UUID) (*entity.NotificationChannel, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM notification_channels FINAL
		WHERE org_id = ? AND id = ?
		LIMIT 1
	`, channelColumns)

	rows, err := r.conn.Query(ctx, query, orgID, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query channel: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, entity.ErrNotFound
	}
	ch, err := scanChannel(rows)
	if err != nil {
		return nil, err
	}

	usage, err := r.usageByChannel(ctx, orgID)
	if err != nil {
		return nil, err
	}
	applyUsage(ch, usage)
	return ch, nil
}

// ListChannels returns all channels for one tenant.
func (r *ChannelsRepository) ListChannels(ctx context.Context, orgID uuid.UUID) ([]entity.NotificationChannel, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM notification_channels FINAL
		WHERE org_id = ?
		ORDER BY created_at
	`, channelColumns)

	rows, err := r.conn.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var channels []entity.NotificationChannel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	usage, err := r.usageByChannel(ctx, orgID)
	if err != nil {
		return nil, err
	}
	for i := range channels {
		applyUsage(&channels[i], usage)
	}
	return channels, nil
}

// DeleteChannel removes a channel. ClickHouse deletes are asynchronous
// mutations; readers may see the row briefly after this returns.
func (r *ChannelsRepository) DeleteChannel(ctx context.Context, orgID, channelID uuid.UUID) error {
	query := `ALTER TABLE notification_channels DELETE WHERE org_id = ? AND id = ?`
	if err := r.conn.Exec(ctx, query, orgID, channelID); err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}

	usageQuery := `ALTER TABLE channel_usage DELETE WHERE org_id = ? AND channel_id = ?`
	if err := r.conn.Exec(ctx, usageQuery, orgID, channelID); err != nil {
		return fmt.Errorf("failed to delete channel usage: %w", err)
	}
	return nil
}

// RecordDelivery appends one usage delta for a delivery attempt. Nothing
// is read back, so concurrent recorders cannot lose each other's counts.
// The in-memory counters are bumped so the caller sees the attempt.
func (r *ChannelsRepository) RecordDelivery(ctx context.Context, ch *entity.NotificationChannel, success bool, at time.Time) error {
	var failed uint64
	if !success {
		failed = 1
	}

	query := `INSERT INTO channel_usage (org_id, channel_id,
		total_notifications, failed_notifications, last_used) VALUES (?, ?, 1, ?, ?)`
	if err := r.conn.Exec(ctx, query, ch.OrgID, ch.ID, failed, at); err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}

	ch.LastUsed = &at
	ch.TotalNotifications++
	if !success {
		ch.FailedNotifications++
	}
	return nil
}

type channelUsage struct {
	total    uint64
	failed   uint64
	lastUsed *time.Time
}

// usageByChannel aggregates delivery deltas for one tenant. Summing at
// read time keeps the result exact even before background merges run.
func (r *ChannelsRepository) usageByChannel(ctx context.Context, orgID uuid.UUID) (map[uuid.UUID]channelUsage, error) {
	query := `
		SELECT channel_id, sum(total_notifications), sum(failed_notifications), max(last_used)
		FROM channel_usage
		WHERE org_id = ?
		GROUP BY channel_id
	`

	rows, err := r.conn.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query channel usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[uuid.UUID]channelUsage)
	for rows.Next() {
		var id uuid.UUID
		var u channelUsage
		if err := rows.Scan(&id, &u.total, &u.failed, &u.lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan channel usage: %w", err)
		}
		usage[id] = u
	}
	return usage, rows.Err()
}

func applyUsage(ch *entity.NotificationChannel, usage map[uuid.UUID]channelUsage) {
	u, ok := usage[ch.ID]
	if !ok {
		return
	}
	ch.TotalNotifications = u.total
	ch.FailedNotifications = u.failed
	ch.LastUsed = u.lastUsed
}

func scanChannel(rows rowScanner) (*entity.NotificationChannel, error) {
	var ch entity.NotificationChannel
	var channelType string
	var updatedAt time.Time
	if err := rows.Scan(
		&ch.ID, &ch.OrgID, &channelType, &ch.Name, &ch.EncryptedSecret,
		&ch.Recipients, &ch.Enabled, &ch.Verified, &ch.CreatedAt, &updatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan channel: %w", err)
	}
	ch.ChannelType = entity.ChannelType(channelType)
	return &ch, nil
}

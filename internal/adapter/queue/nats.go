package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// EnrichJob asks the enrichment worker to geolocate one stored event.
type EnrichJob struct {
	EventID uuid.UUID `json:"event_id"`
	OrgID   uuid.UUID `json:"org_id"`
	Force   bool      `json:"force"`
}

// Queue publishes and consumes enrichment jobs over NATS. Delivery is at
// most once; the periodic backfill picks up anything that was lost.
type Queue struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// Connect dials the NATS server and returns a queue bound to subject.
func Connect(url, subject string, logger *slog.Logger) (*Queue, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info("connected to nats", "url", conn.ConnectedUrl(), "subject", subject)

	return &Queue{conn: conn, subject: subject, logger: logger}, nil
}

// PublishEnrich enqueues one enrichment job.
func (q *Queue) PublishEnrich(job EnrichJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal enrich job: %w", err)
	}
	if err := q.conn.Publish(q.subject, data); err != nil {
		return fmt.Errorf("publish enrich job: %w", err)
	}
	return nil
}

// SubscribeEnrich delivers jobs to handler on a queue group so multiple
// workers share the load without duplicate lookups.
func (q *Queue) SubscribeEnrich(handler func(EnrichJob)) (*nats.Subscription, error) {
	sub, err := q.conn.QueueSubscribe(q.subject, "geoenrich-workers", func(msg *nats.Msg) {
		var job EnrichJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			q.logger.Warn("dropping malformed enrich job", "error", err)
			return
		}
		handler(job)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", q.subject, err)
	}
	return sub, nil
}

// Close drains in-flight messages and closes the connection.
func (q *Queue) Close() {
	if err := q.conn.Drain(); err != nil {
		q.logger.Warn("nats drain failed", "error", err)
		q.conn.Close()
	}
}

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frclabs/reportcenter/internal/adapter/parser"
	"github.com/frclabs/reportcenter/internal/adapter/queue"
	"github.com/frclabs/reportcenter/internal/entity"
)

type fakeEventStore struct {
	inserted []*entity.SecurityEvent
	err      error
}

func (f *fakeEventStore) InsertEvents(ctx context.Context, events []*entity.SecurityEvent) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, events...)
	return nil
}

type fakePublisher struct {
	jobs []queue.EnrichJob
	err  error
}

func (f *fakePublisher) PublishEnrich(job queue.EnrichJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeDiscovery struct {
	hosts []string
}

func (f *fakeDiscovery) Discover(ctx context.Context, orgID uuid.UUID, hostname string, seenAt time.Time) error {
	f.hosts = append(f.hosts, hostname)
	return nil
}

func newTestService(store *fakeEventStore, pub *fakePublisher, disc *fakeDiscovery) *Service {
	return NewService(parser.NewRegistry(), store, pub, disc, slog.Default())
}

func TestIngestBatchMixedLines(t *testing.T) {
	store := &fakeEventStore{}
	pub := &fakePublisher{}
	disc := &fakeDiscovery{}
	svc := newTestService(store, pub, disc)
	orgID := uuid.New()

	lines := []string{
		"2024-01-01 12:00:00 fail2ban.actions: [sshd] Ban 192.168.1.100",
		"complete garbage",
		"[nginx-limit-req] BAN 10.0.0.1",
	}

	result, err := svc.IngestBatch(context.Background(), orgID, "fail2ban", "", lines)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Line)

	require.Len(t, store.inserted, 2)
	for _, e := range store.inserted {
		assert.Equal(t, orgID, e.OrgID)
		assert.NotEqual(t, uuid.Nil, e.EventID)
		assert.False(t, e.IngestedAt.IsZero())
	}

	// One enrichment job per stored event.
	require.Len(t, pub.jobs, 2)
	assert.Equal(t, store.inserted[0].EventID, pub.jobs[0].EventID)
	assert.False(t, pub.jobs[0].Force)

	// fail2ban reports a single synthetic host, discovered once.
	assert.Equal(t, []string{"fail2ban"}, disc.hosts)
}

func TestIngestBatchUnknownSource(t *testing.T) {
	svc := newTestService(&fakeEventStore{}, &fakePublisher{}, &fakeDiscovery{})

	_, err := svc.IngestBatch(context.Background(), uuid.New(), "syslog", "", []string{"x"})
	require.ErrorIs(t, err, entity.ErrUnknownSource)
}

func TestIngestBatchErrorCapAtTen(t *testing.T) {
	svc := newTestService(&fakeEventStore{}, &fakePublisher{}, &fakeDiscovery{})

	lines := make([]string, 25)
	for i := range lines {
		lines[i] = fmt.Sprintf("broken line %d", i)
	}

	result, err := svc.IngestBatch(context.Background(), uuid.New(), "nginx", "", lines)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Accepted)
	assert.Equal(t, 25, result.Failed)
	assert.Len(t, result.Errors, 10, "only the first 10 failures carry detail")
}

func TestIngestBatchPublishFailureDoesNotFailWrite(t *testing.T) {
	store := &fakeEventStore{}
	pub := &fakePublisher{err: fmt.Errorf("nats unavailable")}
	svc := newTestService(store, pub, &fakeDiscovery{})

	line := `192.168.1.100 - - [01/Jan/2024:12:00:00 +0000] "GET / HTTP/1.1" 200 5 "-" "curl"`
	result, err := svc.IngestBatch(context.Background(), uuid.New(), "nginx", "", []string{line})
	require.NoError(t, err, "queue trouble must not fail ingestion")

	assert.Equal(t, 1, result.Accepted)
	assert.Len(t, store.inserted, 1)
}

func TestIngestBatchStoreFailure(t *testing.T) {
	store := &fakeEventStore{err: fmt.Errorf("clickhouse down")}
	svc := newTestService(store, &fakePublisher{}, &fakeDiscovery{})

	_, err := svc.IngestBatch(context.Background(), uuid.New(), "fail2ban", "",
		[]string{"[sshd] Ban 1.2.3.4"})
	require.Error(t, err)
}

func TestIngestBatchEmptyAndBlankLines(t *testing.T) {
	store := &fakeEventStore{}
	svc := newTestService(store, &fakePublisher{}, &fakeDiscovery{})

	result, err := svc.IngestBatch(context.Background(), uuid.New(), "haproxy", "", []string{"", ""})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Accepted)
	assert.Equal(t, 0, result.Failed, "blank lines are ignored, not errors")
	assert.Empty(t, store.inserted)
}

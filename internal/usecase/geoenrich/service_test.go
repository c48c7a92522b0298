package geoenrich

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/frclabs/reportcenter/internal/adapter/external/geoip"
	"github.com/frclabs/reportcenter/internal/entity"
)

type mockEventStore struct {
	mock.Mock
}

func (m *mockEventStore) GetEvent(ctx context.Context, orgID, eventID uuid.UUID) (*entity.SecurityEvent, error) {
	args := m.Called(ctx, orgID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.SecurityEvent), args.Error(1)
}

func (m *mockEventStore) UpdateGeo(ctx context.Context, event *entity.SecurityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockEventStore) EventsNeedingGeo(ctx context.Context, lookback time.Duration, limit int, force bool) ([]entity.SecurityEvent, error) {
	args := m.Called(ctx, lookback, limit, force)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.SecurityEvent), args.Error(1)
}

// countingLocator returns canned results and counts external calls.
type countingLocator struct {
	calls   int
	results map[string]*geoip.Result
	err     error
}

func (l *countingLocator) Lookup(ctx context.Context, ip string) (*geoip.Result, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	if r, ok := l.results[ip]; ok {
		return r, nil
	}
	lat, lon := 48.8566, 2.3522
	return &geoip.Result{
		IP:          ip,
		CountryCode: "FR",
		CountryName: "France",
		City:        "Paris",
		Latitude:    &lat,
		Longitude:   &lon,
	}, nil
}

func testConfig() Config {
	return Config{
		LookupInterval: time.Nanosecond,
		BackfillBatch:  40,
		BackfillWindow: 24 * time.Hour,
	}
}

func publicEvent() *entity.SecurityEvent {
	return &entity.SecurityEvent{
		EventID: uuid.New(),
		OrgID:   uuid.New(),
		SrcIP:   "203.0.113.9",
	}
}

func TestEnrichSuccess(t *testing.T) {
	store := new(mockEventStore)
	locator := &countingLocator{}
	svc := NewService(store, locator, testConfig(), slog.Default())

	event := publicEvent()
	store.On("UpdateGeo", mock.Anything, event).Return(nil)

	outcome, err := svc.Enrich(context.Background(), event, false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeEnriched, outcome)
	assert.Equal(t, 1, locator.calls)
	assert.Equal(t, "FR", event.CountryCode)
	assert.True(t, event.GeoEnriched)
	assert.True(t, event.HasCoordinates())
	require.NotNil(t, event.GeoEnrichedAt)
	store.AssertExpectations(t)
}

func TestEnrichAlreadyEnrichedIsNoOp(t *testing.T) {
	store := new(mockEventStore)
	locator := &countingLocator{}
	svc := NewService(store, locator, testConfig(), slog.Default())

	lat, lon := 1.0, 2.0
	at := time.Now().UTC().Add(-time.Hour)
	event := publicEvent()
	event.CountryCode = "DE"
	event.Latitude, event.Longitude = &lat, &lon
	event.GeoEnriched = true
	event.GeoEnrichedAt = &at

	outcome, err := svc.Enrich(context.Background(), event, false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Equal(t, 0, locator.calls, "no external call for enriched events")
	assert.Equal(t, "DE", event.CountryCode)
	assert.Equal(t, &at, event.GeoEnrichedAt, "geo fields must be unchanged")
	store.AssertNotCalled(t, "UpdateGeo", mock.Anything, mock.Anything)
}

func TestEnrichForceRepeatsLookup(t *testing.T) {
	store := new(mockEventStore)
	locator := &countingLocator{}
	svc := NewService(store, locator, testConfig(), slog.Default())

	lat, lon := 1.0, 2.0
	event := publicEvent()
	event.Latitude, event.Longitude = &lat, &lon
	event.GeoEnriched = true

	store.On("UpdateGeo", mock.Anything, event).Return(nil)

	outcome, err := svc.Enrich(context.Background(), event, true)
	require.NoError(t, err)

	assert.Equal(t, OutcomeEnriched, outcome)
	assert.Equal(t, 1, locator.calls)
	assert.Equal(t, "FR", event.CountryCode)
}

func TestEnrichPrivateIP(t *testing.T) {
	store := new(mockEventStore)
	locator := &countingLocator{}
	svc := NewService(store, locator, testConfig(), slog.Default())

	event := publicEvent()
	event.SrcIP = "192.168.1.100"
	store.On("UpdateGeo", mock.Anything, event).Return(nil)

	outcome, err := svc.Enrich(context.Background(), event, false)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Equal(t, 0, locator.calls, "private IPs never reach the external service")
	assert.Equal(t, "XX", event.CountryCode)
	assert.Equal(t, "Private Network", event.CountryName)
	assert.False(t, event.GeoEnriched)
	assert.False(t, event.HasCoordinates())
	assert.Nil(t, event.GeoEnrichedAt)
	store.AssertExpectations(t)
}

func TestEnrichResultWithoutCoordinates(t *testing.T) {
	store := new(mockEventStore)
	locator := &countingLocator{results: map[string]*geoip.Result{
		"203.0.113.9": {IP: "203.0.113.9", CountryCode: "NW", CountryName: "Nowhere", City: "Void"},
	}}
	svc := NewService(store, locator, testConfig(), slog.Default())

	event := publicEvent()
	store.On("UpdateGeo", mock.Anything, event).Return(nil)

	outcome, err := svc.Enrich(context.Background(), event, false)
	require.NoError(t, err)

	// Country data is kept but the event stays un-enriched until a
	// lookup yields coordinates.
	assert.Equal(t, OutcomeEnriched, outcome)
	assert.Equal(t, "NW", event.CountryCode)
	assert.False(t, event.GeoEnriched)
	assert.Nil(t, event.GeoEnrichedAt)
	store.AssertExpectations(t)
}

func TestEnrichLookupFailureLeavesEventUnmodified(t *testing.T) {
	store := new(mockEventStore)
	locator := &countingLocator{err: fmt.Errorf("%w: timeout", entity.ErrLookupFailure)}
	svc := NewService(store, locator, testConfig(), slog.Default())

	event := publicEvent()
	outcome, err := svc.Enrich(context.Background(), event, false)
	require.Error(t, err)

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Empty(t, event.CountryCode)
	assert.False(t, event.GeoEnriched)
	assert.False(t, event.HasCoordinates())
	store.AssertNotCalled(t, "UpdateGeo", mock.Anything, mock.Anything)
}

func TestEnrichInvariantHoldsAfterEveryOutcome(t *testing.T) {
	// geoEnriched must equal coordinate presence whatever happens.
	store := new(mockEventStore)
	store.On("UpdateGeo", mock.Anything, mock.Anything).Return(nil)

	events := []*entity.SecurityEvent{publicEvent(), publicEvent(), publicEvent()}
	events[1].SrcIP = "10.0.0.1"

	locators := []*countingLocator{
		{},
		{},
		{err: fmt.Errorf("%w: down", entity.ErrLookupFailure)},
	}
	for i, event := range events {
		svc := NewService(store, locators[i], testConfig(), slog.Default())
		svc.Enrich(context.Background(), event, false)
		assert.Equal(t, event.HasCoordinates(), event.GeoEnriched, "event %d", i)
	}
}

func TestEnrichByID(t *testing.T) {
	store := new(mockEventStore)
	locator := &countingLocator{}
	svc := NewService(store, locator, testConfig(), slog.Default())

	event := publicEvent()
	store.On("GetEvent", mock.Anything, event.OrgID, event.EventID).Return(event, nil)
	store.On("UpdateGeo", mock.Anything, event).Return(nil)

	outcome, err := svc.EnrichByID(context.Background(), event.OrgID, event.EventID, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEnriched, outcome)

	store.On("GetEvent", mock.Anything, event.OrgID, mock.Anything).Return(nil, entity.ErrNotFound)
	_, err = svc.EnrichByID(context.Background(), event.OrgID, uuid.New(), false)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestBackfillCountsOutcomes(t *testing.T) {
	store := new(mockEventStore)
	locator := &countingLocator{}
	svc := NewService(store, locator, testConfig(), slog.Default())

	private := *publicEvent()
	private.SrcIP = "172.16.0.5"
	public := *publicEvent()

	store.On("EventsNeedingGeo", mock.Anything, 24*time.Hour, 40, false).
		Return([]entity.SecurityEvent{private, public}, nil)
	store.On("UpdateGeo", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Backfill(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 1, result.Enriched)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, locator.calls, "only the public IP is looked up")
}

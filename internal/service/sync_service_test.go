package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla-engine/internal/config"
	"github.com/spec-kit/ticket-sla-engine/internal/events"
	"github.com/spec-kit/ticket-sla-engine/internal/remote"
	apperrors "github.com/spec-kit/ticket-sla-engine/pkg/util"
)

type syncFixture struct {
	svc       *SyncService
	source    *fakeSource
	state     *fakeStateRepo
	tickets   *fakeTicketRepo
	collector *eventCollector
	nowValue  time.Time
}

func newSyncFixture(t *testing.T, remoteOverride func(*config.RemoteConfig)) *syncFixture {
	t.Helper()

	source := &fakeSource{}
	state := newFakeStateRepo("servicenow")
	tickets := newFakeTicketRepo()
	slas := newFakeSLARepo()
	dispatcher := events.NewInMemoryDispatcher()
	collector := &eventCollector{}
	dispatcher.Subscribe(events.EventSyncHealthChanged, collector.handle)

	logger := zap.NewNop()
	ingest := NewIngestService(IngestDependencies{
		TicketRepo: tickets,
		SLARepo:    slas,
		Dispatcher: dispatcher,
		Logger:     logger,
		Source:     "servicenow",
	})

	remoteCfg := config.RemoteConfig{
		BaseURL:        "https://example.service-now.com",
		Table:          "incident",
		Username:       "sync",
		Password:       "secret",
		Source:         "servicenow",
		TimeoutSeconds: 5,
	}
	if remoteOverride != nil {
		remoteOverride(&remoteCfg)
	}
	syncCfg := config.SyncConfig{
		IncrementalBatchSize: 10,
		BulkBatchSize:        2,
		TripThreshold:        1,
	}

	svc := NewSyncService(SyncDependencies{
		Source:     source,
		RemoteCfg:  remoteCfg,
		SyncCfg:    syncCfg,
		Ingest:     ingest,
		StateRepo:  state,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	f := &syncFixture{
		svc:       svc,
		source:    source,
		state:     state,
		tickets:   tickets,
		collector: collector,
		nowValue:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	svc.now = func() time.Time { return f.nowValue }
	return f
}

func TestPollOnceAdvancesCursorToTickStart(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.source.records = []remote.Record{sampleRecord("INC100", "Open")}

	result, err := f.svc.PollOnce(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 1, result.Page.Saved)

	cursor, err := f.state.GetCursor(context.Background(), "servicenow")
	require.NoError(t, err)
	assert.Equal(t, f.nowValue, cursor.LastSyncTime,
		"cursor must advance to the tick start, not the fetch completion time")
	require.NotNil(t, cursor.LastSuccessfulSyncTime)
	assert.Equal(t, int64(1), cursor.SuccessCount)
	assert.Equal(t, 0, cursor.ConsecutiveFailures)
	assert.True(t, cursor.IsHealthy)
}

func TestPollOnceUsesCursorAsLowerBound(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.state.cursor.LastSyncTime = time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)

	_, err := f.svc.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sys_updated_on>=2024-03-01 11:00:00", f.source.lastFilter)
}

func TestPollOnceFailureLeavesCursorAndTripsBreaker(t *testing.T) {
	f := newSyncFixture(t, nil)
	previous := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	f.state.cursor.LastSyncTime = previous
	f.source.fetchErr = apperrors.NewConnectivityError("boom", nil)

	_, err := f.svc.PollOnce(context.Background())
	require.Error(t, err)

	cursor, err := f.state.GetCursor(context.Background(), "servicenow")
	require.NoError(t, err)
	assert.Equal(t, previous, cursor.LastSyncTime, "cursor must not advance on failure")
	assert.Equal(t, int64(1), cursor.FailureCount)
	assert.Equal(t, 1, cursor.ConsecutiveFailures)
	assert.False(t, cursor.IsActive, "threshold 1 trips the circuit on first failure")
	assert.False(t, cursor.IsHealthy)
	assert.NotEmpty(t, cursor.LastError)

	// Tripping must be externally observable.
	health := f.collector.byType(events.EventSyncHealthChanged)
	require.Len(t, health, 1)
	payload, ok := health[0].Payload.(events.SyncHealthPayload)
	require.True(t, ok)
	assert.False(t, payload.Healthy)
}

func TestPollOnceSkipsWhenCircuitOpen(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.source.fetchErr = apperrors.NewConnectivityError("boom", nil)
	_, err := f.svc.PollOnce(context.Background())
	require.Error(t, err)
	callsAfterTrip := f.source.fetchCalls

	f.source.fetchErr = nil
	result, err := f.svc.PollOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, callsAfterTrip, f.source.fetchCalls, "open circuit means zero remote calls")
}

func TestHealthCheckResetsCircuitAndEmitsRecovery(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.source.fetchErr = apperrors.NewConnectivityError("boom", nil)
	_, _ = f.svc.PollOnce(context.Background())
	f.source.fetchErr = nil

	require.NoError(t, f.svc.HealthCheck(context.Background()))

	cursor, err := f.state.GetCursor(context.Background(), "servicenow")
	require.NoError(t, err)
	assert.True(t, cursor.IsActive)
	assert.True(t, cursor.IsHealthy)
	assert.Equal(t, 0, cursor.ConsecutiveFailures)

	result, err := f.svc.PollOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Skipped, "a passed health check re-enables polling")

	health := f.collector.byType(events.EventSyncHealthChanged)
	require.Len(t, health, 2)
	recovery, ok := health[1].Payload.(events.SyncHealthPayload)
	require.True(t, ok)
	assert.True(t, recovery.Healthy)
}

func TestHealthCheckReportsMissingParameters(t *testing.T) {
	f := newSyncFixture(t, func(cfg *config.RemoteConfig) {
		cfg.Username = ""
		cfg.Password = ""
	})

	err := f.svc.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "REMOTE_USERNAME")
	assert.Contains(t, err.Error(), "REMOTE_PASSWORD")
	assert.Equal(t, 0, f.source.probeCalls, "config failure must fail fast before probing")
}

func TestHealthCheckProbeFailureCountsTowardTrip(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.source.probeErr = apperrors.NewAuthenticationError("bad credentials")

	err := f.svc.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthentication(err))

	cursor, err := f.state.GetCursor(context.Background(), "servicenow")
	require.NoError(t, err)
	assert.False(t, cursor.IsHealthy)
	assert.False(t, cursor.IsActive)
}

func TestBulkImportRunsOncePagesToShortPage(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.source.records = []remote.Record{
		sampleRecord("INC100", "Open"),
		sampleRecord("INC101", "Open"),
		sampleRecord("INC102", "Open"),
	}

	result, err := f.svc.BulkImport(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, int64(3), result.TotalImported)
	// Batch size 2: full page, then short page of one.
	assert.Equal(t, 2, f.source.fetchCalls)

	marker, err := f.state.GetBulkMarker(context.Background(), "servicenow")
	require.NoError(t, err)
	assert.True(t, marker.Completed)
	assert.Equal(t, int64(3), marker.TotalImported)
	require.NotNil(t, marker.LastCompletedAt)
}

func TestBulkImportSecondRunIsSkippedWithZeroRemoteCalls(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.source.records = []remote.Record{sampleRecord("INC100", "Open")}

	first, err := f.svc.BulkImport(context.Background(), false)
	require.NoError(t, err)
	require.False(t, first.Skipped)
	calls := f.source.fetchCalls

	second, err := f.svc.BulkImport(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, calls, f.source.fetchCalls)
	require.NotNil(t, second.Marker)
	assert.True(t, second.Marker.Completed)
	assert.Equal(t, int64(1), second.Marker.TotalImported)
}

func TestBulkImportForceClearsMarkerAndReruns(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.source.records = []remote.Record{sampleRecord("INC100", "Open")}

	_, err := f.svc.BulkImport(context.Background(), false)
	require.NoError(t, err)

	result, err := f.svc.BulkImport(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	marker, err := f.state.GetBulkMarker(context.Background(), "servicenow")
	require.NoError(t, err)
	assert.True(t, marker.Completed)
}

func TestStatusReflectsCursorAndCircuit(t *testing.T) {
	f := newSyncFixture(t, nil)
	f.source.records = []remote.Record{sampleRecord("INC100", "Open")}

	_, err := f.svc.PollOnce(context.Background())
	require.NoError(t, err)

	status, err := f.svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "servicenow", status.Source)
	assert.True(t, status.IsActive)
	assert.True(t, status.IsHealthy)
	assert.Equal(t, string(BreakerClosed), status.CircuitState)
	require.NotNil(t, status.LastSyncTime)
	assert.Equal(t, f.nowValue, *status.LastSyncTime)
	assert.Equal(t, int64(1), status.SuccessCount)
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla-engine/internal/config"
	"github.com/spec-kit/ticket-sla-engine/internal/domain"
	"github.com/spec-kit/ticket-sla-engine/internal/events"
	"github.com/spec-kit/ticket-sla-engine/internal/observability"
	"github.com/spec-kit/ticket-sla-engine/internal/remote"
	"github.com/spec-kit/ticket-sla-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-sla-engine/pkg/util"
)

// PollResult reports what one incremental tick did.
type PollResult struct {
	Skipped bool
	Fetched int
	Page    PageResult
}

// BulkImportResult reports a bulk import run.
type BulkImportResult struct {
	Skipped       bool
	TotalImported int64
	Marker        *domain.BulkImportMarker
}

// SyncStatus is the read-only operational snapshot.
type SyncStatus struct {
	Source                 string     `json:"source"`
	IsActive               bool       `json:"is_active"`
	IsHealthy              bool       `json:"is_healthy"`
	LastSyncTime           *time.Time `json:"last_sync_time,omitempty"`
	LastSuccessfulSyncTime *time.Time `json:"last_successful_sync_time,omitempty"`
	TotalAttempts          int64      `json:"total_attempts"`
	SuccessCount           int64      `json:"success_count"`
	FailureCount           int64      `json:"failure_count"`
	ConsecutiveFailures    int        `json:"consecutive_failures"`
	LastError              string     `json:"last_error,omitempty"`
	CircuitState           string     `json:"circuit_state"`
}

// SyncService owns the persisted cursor and circuit state and orchestrates
// the one-time bulk import plus recurring incremental polling.
type SyncService struct {
	source     remote.Source
	remoteCfg  config.RemoteConfig
	syncCfg    config.SyncConfig
	ingest     *IngestService
	state      repository.SyncStateRepository
	breaker    *CircuitBreaker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	sourceName string
	now        func() time.Time
}

// SyncDependencies bundles collaborators for the sync coordinator.
type SyncDependencies struct {
	Source     remote.Source
	RemoteCfg  config.RemoteConfig
	SyncCfg    config.SyncConfig
	Ingest     *IngestService
	StateRepo  repository.SyncStateRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewSyncService constructs the coordinator with a closed breaker.
func NewSyncService(deps SyncDependencies) *SyncService {
	return &SyncService{
		source:     deps.Source,
		remoteCfg:  deps.RemoteCfg,
		syncCfg:    deps.SyncCfg,
		ingest:     deps.Ingest,
		state:      deps.StateRepo,
		breaker:    NewCircuitBreaker(deps.SyncCfg.TripThreshold),
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		sourceName: deps.RemoteCfg.Source,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// HealthCheck runs the two-stage gate: configuration completeness, then a
// lightweight connectivity probe. Passing resets the circuit; failing counts
// toward the trip threshold.
func (s *SyncService) HealthCheck(ctx context.Context) error {
	cursor, err := s.state.GetCursor(ctx, s.sourceName)
	if err != nil {
		return apperrors.NewPersistenceError("load sync cursor", err)
	}

	if missing := s.remoteCfg.MissingParams(); len(missing) > 0 {
		checkErr := apperrors.NewConfigurationError(
			fmt.Sprintf("missing connection parameters: %s", strings.Join(missing, ", ")),
			map[string]any{"missing": missing},
		)
		s.recordFailure(ctx, cursor, checkErr)
		return checkErr
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.remoteCfg.Timeout())
	defer cancel()
	if err := s.source.Probe(probeCtx); err != nil {
		s.recordFailure(ctx, cursor, err)
		return err
	}

	wasUnhealthy := !cursor.IsHealthy || !cursor.IsActive

	s.breaker.HealthCheckPassed()
	s.metrics.SetCircuitOpen(false)
	cursor.IsHealthy = true
	cursor.IsActive = true
	cursor.ConsecutiveFailures = 0
	cursor.LastError = ""
	if err := s.state.SaveCursor(ctx, cursor); err != nil {
		return apperrors.NewPersistenceError("save sync cursor", err)
	}

	if wasUnhealthy {
		s.publishHealthEvent(ctx, events.SyncHealthPayload{Healthy: true})
	}
	s.logger.Info("health check passed", zap.String("source", s.sourceName))
	return nil
}

// PollOnce runs one incremental tick. When the circuit is open the tick is a
// no-op with zero remote calls. The cursor only advances to the tick-start
// timestamp on success, so records updated mid-fetch are re-read next tick.
func (s *SyncService) PollOnce(ctx context.Context) (PollResult, error) {
	if !s.breaker.Allow() {
		s.logger.Debug("poll skipped, circuit open", zap.String("source", s.sourceName))
		s.metrics.RecordSyncAttempt("skipped")
		return PollResult{Skipped: true}, nil
	}

	cursor, err := s.state.GetCursor(ctx, s.sourceName)
	if err != nil {
		return PollResult{}, apperrors.NewPersistenceError("load sync cursor", err)
	}
	if !cursor.IsActive {
		s.metrics.RecordSyncAttempt("skipped")
		return PollResult{Skipped: true}, nil
	}

	tickStart := s.now()
	filter := ""
	if !cursor.LastSyncTime.IsZero() {
		filter = "sys_updated_on>=" + remote.FormatTime(cursor.LastSyncTime)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.remoteCfg.Timeout())
	defer cancel()
	records, err := s.source.FetchPage(fetchCtx, filter, remote.DefaultFields, s.syncCfg.IncrementalBatchSize, 0)
	if err != nil {
		s.recordFailure(ctx, cursor, err)
		s.metrics.RecordSyncAttempt("failure")
		return PollResult{}, err
	}

	page := s.ingest.UpsertPage(ctx, records)

	cursor.LastSyncTime = tickStart
	lastSuccess := tickStart
	cursor.LastSuccessfulSyncTime = &lastSuccess
	cursor.TotalAttempts++
	cursor.SuccessCount++
	cursor.ConsecutiveFailures = 0
	cursor.LastError = ""
	cursor.IsHealthy = true
	cursor.IsActive = true
	if err := s.state.SaveCursor(ctx, cursor); err != nil {
		return PollResult{}, apperrors.NewPersistenceError("save sync cursor", err)
	}

	s.breaker.RecordSuccess()
	s.metrics.RecordSyncAttempt("success")
	s.logger.Info("poll tick complete",
		zap.String("source", s.sourceName),
		zap.Int("fetched", len(records)),
		zap.Int("saved", page.Saved),
		zap.Int("updated", page.Updated),
		zap.Int("errors", page.Errors))
	return PollResult{Fetched: len(records), Page: page}, nil
}

// BulkImport performs the one-time full import. Without force, a completed
// marker short-circuits with zero remote calls. A forced run clears the
// marker first so it is indistinguishable from a first run.
func (s *SyncService) BulkImport(ctx context.Context, force bool) (BulkImportResult, error) {
	marker, err := s.state.GetBulkMarker(ctx, s.sourceName)
	if err != nil {
		return BulkImportResult{}, apperrors.NewPersistenceError("load bulk import marker", err)
	}

	if marker.Completed && !force {
		s.logger.Info("bulk import already completed, skipping",
			zap.String("source", s.sourceName),
			zap.Int64("total_imported", marker.TotalImported))
		return BulkImportResult{Skipped: true, Marker: marker}, nil
	}

	if force {
		if err := s.state.ClearBulkMarker(ctx, s.sourceName); err != nil {
			return BulkImportResult{}, apperrors.NewPersistenceError("clear bulk import marker", err)
		}
		marker.Completed = false
		marker.LastCompletedAt = nil
		marker.TotalImported = 0
	}

	batchSize := s.syncCfg.BulkBatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	var total int64
	offset := 0
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, s.remoteCfg.Timeout())
		records, err := s.source.FetchPage(fetchCtx, "", remote.DefaultFields, batchSize, offset)
		cancel()
		if err != nil {
			return BulkImportResult{}, err
		}

		page := s.ingest.UpsertPage(ctx, records)
		total += int64(page.Total())
		offset += len(records)

		// A short page signals end-of-data.
		if len(records) < batchSize {
			break
		}
	}

	completedAt := s.now()
	marker.Completed = true
	marker.LastCompletedAt = &completedAt
	marker.TotalImported = total
	if err := s.state.SaveBulkMarker(ctx, marker); err != nil {
		return BulkImportResult{}, apperrors.NewPersistenceError("save bulk import marker", err)
	}

	s.metrics.RecordBulkImported(total)
	s.logger.Info("bulk import complete",
		zap.String("source", s.sourceName),
		zap.Int64("total_imported", total))
	return BulkImportResult{TotalImported: total, Marker: marker}, nil
}

// Status returns the operational snapshot for the ops surface.
func (s *SyncService) Status(ctx context.Context) (SyncStatus, error) {
	cursor, err := s.state.GetCursor(ctx, s.sourceName)
	if err != nil {
		return SyncStatus{}, apperrors.NewPersistenceError("load sync cursor", err)
	}

	status := SyncStatus{
		Source:                 cursor.Source,
		IsActive:               cursor.IsActive,
		IsHealthy:              cursor.IsHealthy,
		LastSuccessfulSyncTime: cursor.LastSuccessfulSyncTime,
		TotalAttempts:          cursor.TotalAttempts,
		SuccessCount:           cursor.SuccessCount,
		FailureCount:           cursor.FailureCount,
		ConsecutiveFailures:    cursor.ConsecutiveFailures,
		LastError:              cursor.LastError,
		CircuitState:           string(s.breaker.State()),
	}
	if !cursor.LastSyncTime.IsZero() {
		t := cursor.LastSyncTime
		status.LastSyncTime = &t
	}
	return status, nil
}

// recordFailure counts a failed tick or probe against the cursor and the
// breaker. The cursor never advances here. Tripping the breaker flips the
// circuit open and raises a health event so the failure is externally
// observable, never silently swallowed.
func (s *SyncService) recordFailure(ctx context.Context, cursor *domain.SyncCursor, cause error) {
	cursor.TotalAttempts++
	cursor.FailureCount++
	cursor.ConsecutiveFailures++
	cursor.LastError = cause.Error()
	cursor.IsHealthy = false

	tripped := s.breaker.RecordFailure()
	if tripped || s.breaker.State() == BreakerOpen {
		cursor.IsActive = false
		s.metrics.SetCircuitOpen(true)
	}

	if err := s.state.SaveCursor(ctx, cursor); err != nil {
		s.logger.Error("save sync cursor failed", zap.Error(err))
	}

	if tripped {
		s.logger.Error("circuit breaker tripped open",
			zap.String("source", s.sourceName),
			zap.Int("consecutive_failures", cursor.ConsecutiveFailures),
			zap.Error(cause))
		s.publishHealthEvent(ctx, events.SyncHealthPayload{
			Healthy:             false,
			ConsecutiveFailures: cursor.ConsecutiveFailures,
			LastError:           cursor.LastError,
		})
		return
	}

	s.logger.Warn("sync tick failed",
		zap.String("source", s.sourceName),
		zap.Int("consecutive_failures", cursor.ConsecutiveFailures),
		zap.Error(cause))
}

func (s *SyncService) publishHealthEvent(ctx context.Context, payload events.SyncHealthPayload) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSyncHealthChanged,
		Source:    s.sourceName,
		Timestamp: s.now(),
		Payload:   payload,
	})
}

package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-sla-engine/internal/domain"
)

// SyncStateRepository persists the per-source cursor and bulk import marker.
// Both Get methods create the row on first sight so callers always work with
// a materialized state.
type SyncStateRepository interface {
	GetCursor(ctx context.Context, source string) (*domain.SyncCursor, error)
	SaveCursor(ctx context.Context, cursor *domain.SyncCursor) error
	GetBulkMarker(ctx context.Context, source string) (*domain.BulkImportMarker, error)
	SaveBulkMarker(ctx context.Context, marker *domain.BulkImportMarker) error
	ClearBulkMarker(ctx context.Context, source string) error
}

type syncStateRepository struct {
	pool *pgxpool.Pool
}

// NewSyncStateRepository instantiates repository.
func NewSyncStateRepository(pool *pgxpool.Pool) SyncStateRepository {
	return &syncStateRepository{pool: pool}
}

func (r *syncStateRepository) GetCursor(ctx context.Context, source string) (*domain.SyncCursor, error) {
	const query = `
        INSERT INTO sync_cursors (source) VALUES ($1)
        ON CONFLICT (source) DO UPDATE SET source=EXCLUDED.source
        RETURNING source, last_sync_time, last_successful_sync_time, total_attempts,
            success_count, failure_count, consecutive_failures, last_error,
            is_active, is_healthy, updated_at`
	var cursor domain.SyncCursor
	var lastSyncTime *time.Time
	if err := r.pool.QueryRow(ctx, query, source).Scan(
		&cursor.Source,
		&lastSyncTime,
		&cursor.LastSuccessfulSyncTime,
		&cursor.TotalAttempts,
		&cursor.SuccessCount,
		&cursor.FailureCount,
		&cursor.ConsecutiveFailures,
		&cursor.LastError,
		&cursor.IsActive,
		&cursor.IsHealthy,
		&cursor.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastSyncTime != nil {
		cursor.LastSyncTime = *lastSyncTime
	}
	return &cursor, nil
}

func (r *syncStateRepository) SaveCursor(ctx context.Context, cursor *domain.SyncCursor) error {
	const query = `
        UPDATE sync_cursors SET last_sync_time=$1, last_successful_sync_time=$2,
            total_attempts=$3, success_count=$4, failure_count=$5, consecutive_failures=$6,
            last_error=$7, is_active=$8, is_healthy=$9, updated_at=NOW()
        WHERE source=$10`
	_, err := r.pool.Exec(ctx, query,
		cursor.LastSyncTime,
		cursor.LastSuccessfulSyncTime,
		cursor.TotalAttempts,
		cursor.SuccessCount,
		cursor.FailureCount,
		cursor.ConsecutiveFailures,
		cursor.LastError,
		cursor.IsActive,
		cursor.IsHealthy,
		cursor.Source,
	)
	return err
}

func (r *syncStateRepository) GetBulkMarker(ctx context.Context, source string) (*domain.BulkImportMarker, error) {
	const query = `
        INSERT INTO bulk_import_markers (source) VALUES ($1)
        ON CONFLICT (source) DO UPDATE SET source=EXCLUDED.source
        RETURNING source, completed, last_completed_at, total_imported`
	var marker domain.BulkImportMarker
	if err := r.pool.QueryRow(ctx, query, source).Scan(
		&marker.Source,
		&marker.Completed,
		&marker.LastCompletedAt,
		&marker.TotalImported,
	); err != nil {
		return nil, err
	}
	return &marker, nil
}

func (r *syncStateRepository) SaveBulkMarker(ctx context.Context, marker *domain.BulkImportMarker) error {
	const query = `
        UPDATE bulk_import_markers SET completed=$1, last_completed_at=$2, total_imported=$3
        WHERE source=$4`
	_, err := r.pool.Exec(ctx, query,
		marker.Completed,
		marker.LastCompletedAt,
		marker.TotalImported,
		marker.Source,
	)
	return err
}

func (r *syncStateRepository) ClearBulkMarker(ctx context.Context, source string) error {
	const query = `
        UPDATE bulk_import_markers SET completed=FALSE, last_completed_at=NULL, total_imported=0
        WHERE source=$1`
	_, err := r.pool.Exec(ctx, query, source)
	return err
}

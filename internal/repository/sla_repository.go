package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-sla-engine/internal/domain"
)

// SLARepository encapsulates SLA record persistence. Upsert refreshes
// priority, status and opened_at on conflict but never touches the
// notification ratchet columns.
type SLARepository interface {
	GetByKey(ctx context.Context, externalID, source string) (*domain.SLARecord, error)
	Upsert(ctx context.Context, record *domain.SLARecord) error
	ListMonitored(ctx context.Context) ([]domain.SLARecord, error)
	MarkNotified(ctx context.Context, id string, state domain.SLAState, at time.Time) error
}

type slaRepository struct {
	pool *pgxpool.Pool
}

// NewSLARepository instantiates repository.
func NewSLARepository(pool *pgxpool.Pool) SLARepository {
	return &slaRepository{pool: pool}
}

const slaColumns = `id, ticket_id, external_id, source, priority, status, opened_at,
        last_notified_state, last_notified_at, created_at, updated_at`

func (r *slaRepository) GetByKey(ctx context.Context, externalID, source string) (*domain.SLARecord, error) {
	query := `SELECT ` + slaColumns + ` FROM sla_records WHERE external_id=$1 AND source=$2`
	return scanSLARecord(r.pool.QueryRow(ctx, query, externalID, source))
}

func (r *slaRepository) Upsert(ctx context.Context, record *domain.SLARecord) error {
	const query = `
        INSERT INTO sla_records (ticket_id, external_id, source, priority, status, opened_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (external_id, source) DO UPDATE SET
            priority=EXCLUDED.priority,
            status=EXCLUDED.status,
            opened_at=EXCLUDED.opened_at,
            updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		record.TicketID,
		record.ExternalID,
		record.Source,
		record.Priority,
		record.Status,
		record.OpenedAt,
	).Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt)
}

// ListMonitored returns records still subject to evaluation: not yet notified
// as breached and whose ticket status is not terminal.
func (r *slaRepository) ListMonitored(ctx context.Context) ([]domain.SLARecord, error) {
	query := `SELECT ` + slaColumns + ` FROM sla_records
        WHERE (last_notified_state IS NULL OR last_notified_state <> $1)
          AND LOWER(status) NOT IN ($2,$3,$4,$5)
        ORDER BY opened_at ASC`
	rows, err := r.pool.Query(ctx, query,
		domain.SLAStateBreached,
		domain.StatusClosed, domain.StatusResolved, domain.StatusCancelled, domain.StatusCompleted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLARecord
	for rows.Next() {
		record, err := scanSLARecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *record)
	}
	return result, rows.Err()
}

func (r *slaRepository) MarkNotified(ctx context.Context, id string, state domain.SLAState, at time.Time) error {
	const query = `UPDATE sla_records SET last_notified_state=$1, last_notified_at=$2, updated_at=NOW() WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, state, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanSLARecord(row pgx.Row) (*domain.SLARecord, error) {
	var record domain.SLARecord
	if err := row.Scan(
		&record.ID,
		&record.TicketID,
		&record.ExternalID,
		&record.Source,
		&record.Priority,
		&record.Status,
		&record.OpenedAt,
		&record.LastNotifiedState,
		&record.LastNotifiedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}

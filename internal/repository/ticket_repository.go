package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-sla-engine/internal/domain"
)

// TicketFilter captures read-surface query parameters.
type TicketFilter struct {
	Source     *string
	Statuses   []string
	Priorities []string
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence. GetByKey returns
// pgx.ErrNoRows when the compound key is unknown.
type TicketRepository interface {
	GetByKey(ctx context.Context, externalID, source string) (*domain.Ticket, error)
	Insert(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_id, source, short_description, description, category, subcategory,
        status, priority, impact, urgency, opened_at, closed_at, resolved_at, remote_updated_at,
        requester_id, assignee_id, assignment_group_id, company_id, location_id, tags, raw_payload,
        created_at, updated_at`

func (r *ticketRepository) GetByKey(ctx context.Context, externalID, source string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE external_id=$1 AND source=$2`, ticketColumns)
	row := r.pool.QueryRow(ctx, query, externalID, source)
	return scanTicket(row)
}

// Insert is race-safe against a concurrent writer on the same compound key:
// the conflict branch degrades to an update of the mutable fields.
func (r *ticketRepository) Insert(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_id, source, short_description, description, category, subcategory,
            status, priority, impact, urgency, opened_at, closed_at, resolved_at, remote_updated_at,
            requester_id, assignee_id, assignment_group_id, company_id, location_id, tags, raw_payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
        ON CONFLICT (external_id, source) DO UPDATE SET
            short_description=EXCLUDED.short_description,
            description=EXCLUDED.description,
            status=EXCLUDED.status,
            priority=EXCLUDED.priority,
            assignee_id=EXCLUDED.assignee_id,
            assignment_group_id=EXCLUDED.assignment_group_id,
            remote_updated_at=EXCLUDED.remote_updated_at,
            raw_payload=EXCLUDED.raw_payload,
            updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalID,
		ticket.Source,
		ticket.ShortDescription,
		ticket.Description,
		ticket.Category,
		ticket.Subcategory,
		ticket.Status,
		ticket.Priority,
		ticket.Impact,
		ticket.Urgency,
		ticket.OpenedAt,
		ticket.ClosedAt,
		ticket.ResolvedAt,
		ticket.RemoteUpdatedAt,
		ticket.RequesterID,
		ticket.AssigneeID,
		ticket.AssignmentGroupID,
		ticket.CompanyID,
		ticket.LocationID,
		ticket.Tags,
		ticket.RawPayload,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET short_description=$1, description=$2, category=$3, subcategory=$4,
            status=$5, priority=$6, impact=$7, urgency=$8, closed_at=$9, resolved_at=$10,
            remote_updated_at=$11, assignee_id=$12, assignment_group_id=$13, raw_payload=$14,
            updated_at=NOW()
        WHERE external_id=$15 AND source=$16`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.ShortDescription,
		ticket.Description,
		ticket.Category,
		ticket.Subcategory,
		ticket.Status,
		ticket.Priority,
		ticket.Impact,
		ticket.Urgency,
		ticket.ClosedAt,
		ticket.ResolvedAt,
		ticket.RemoteUpdatedAt,
		ticket.AssigneeID,
		ticket.AssignmentGroupID,
		ticket.RawPayload,
		ticket.ExternalID,
		ticket.Source,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Source != nil {
		args = append(args, *filter.Source)
		clauses = append(clauses, fmt.Sprintf("source=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(short_description) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalID,
		&ticket.Source,
		&ticket.ShortDescription,
		&ticket.Description,
		&ticket.Category,
		&ticket.Subcategory,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Impact,
		&ticket.Urgency,
		&ticket.OpenedAt,
		&ticket.ClosedAt,
		&ticket.ResolvedAt,
		&ticket.RemoteUpdatedAt,
		&ticket.RequesterID,
		&ticket.AssigneeID,
		&ticket.AssignmentGroupID,
		&ticket.CompanyID,
		&ticket.LocationID,
		&ticket.Tags,
		&ticket.RawPayload,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

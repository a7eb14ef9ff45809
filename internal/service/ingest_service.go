package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla-engine/internal/domain"
	"github.com/spec-kit/ticket-sla-engine/internal/events"
	"github.com/spec-kit/ticket-sla-engine/internal/observability"
	"github.com/spec-kit/ticket-sla-engine/internal/remote"
	"github.com/spec-kit/ticket-sla-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-sla-engine/pkg/util"
)

// UpsertResult reports what a single upsert did.
type UpsertResult struct {
	Ticket  *domain.Ticket
	IsNew   bool
	Changed bool
}

// PageResult aggregates the outcome of one page of records.
type PageResult struct {
	Saved   int
	Updated int
	Errors  int
}

// Total returns the number of records that resulted in a write.
func (p PageResult) Total() int { return p.Saved + p.Updated }

// IngestService maps raw remote records into local tickets, detects genuine
// change, performs the idempotent upsert and keeps the companion SLA record
// in step.
type IngestService struct {
	tickets    repository.TicketRepository
	slas       repository.SLARepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	source     string
	now        func() time.Time
}

// IngestDependencies bundles collaborators for the ingest service.
type IngestDependencies struct {
	TicketRepo repository.TicketRepository
	SLARepo    repository.SLARepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Source     string
}

// NewIngestService constructs the service.
func NewIngestService(deps IngestDependencies) *IngestService {
	return &IngestService{
		tickets:    deps.TicketRepo,
		slas:       deps.SLARepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		source:     deps.Source,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Upsert applies one raw record. Re-applying an identical record is a no-op:
// no write, no event.
func (s *IngestService) Upsert(ctx context.Context, rec remote.Record) (UpsertResult, error) {
	incoming, err := s.normalize(rec)
	if err != nil {
		return UpsertResult{}, err
	}

	existing, err := s.tickets.GetByKey(ctx, incoming.ExternalID, incoming.Source)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return UpsertResult{}, apperrors.NewPersistenceError("lookup ticket", err)
	}

	if existing == nil || errors.Is(err, pgx.ErrNoRows) {
		if err := s.tickets.Insert(ctx, incoming); err != nil {
			return UpsertResult{}, apperrors.NewPersistenceError("insert ticket", err)
		}
		s.syncSLARecord(ctx, incoming)
		s.publishTicketEvent(ctx, events.EventTicketIngested, incoming)
		return UpsertResult{Ticket: incoming, IsNew: true}, nil
	}

	// The opened timestamp and identity never change after first sight.
	incoming.ID = existing.ID
	incoming.OpenedAt = existing.OpenedAt
	incoming.CreatedAt = existing.CreatedAt

	if !s.differs(existing, incoming) {
		return UpsertResult{Ticket: existing}, nil
	}

	if err := s.tickets.Update(ctx, incoming); err != nil {
		return UpsertResult{}, apperrors.NewPersistenceError("update ticket", err)
	}
	s.syncSLARecord(ctx, incoming)
	s.publishTicketEvent(ctx, events.EventTicketUpdated, incoming)
	return UpsertResult{Ticket: incoming, Changed: true}, nil
}

// UpsertPage processes a whole page. A single record's failure never aborts
// the rest of the page; failures are counted, logged and skipped.
func (s *IngestService) UpsertPage(ctx context.Context, records []remote.Record) PageResult {
	var result PageResult
	for _, rec := range records {
		res, err := s.Upsert(ctx, rec)
		if err != nil {
			result.Errors++
			s.metrics.RecordIngested("error", 1)
			s.logger.Error("record upsert failed",
				zap.String("external_id", rec.ExternalID()),
				zap.String("source", s.source),
				zap.Error(err))
			continue
		}
		switch {
		case res.IsNew:
			result.Saved++
			s.metrics.RecordIngested("saved", 1)
		case res.Changed:
			result.Updated++
			s.metrics.RecordIngested("updated", 1)
		default:
			s.metrics.RecordIngested("unchanged", 1)
		}
	}
	return result
}

// normalize maps a raw remote record onto the stable ticket shape. Missing
// optional fields become empty values, never omissions, so diffing stays
// shape-stable.
func (s *IngestService) normalize(rec remote.Record) (*domain.Ticket, error) {
	externalID := rec.ExternalID()
	if externalID == "" {
		return nil, apperrors.NewValidationError("remote record missing identifier", map[string]any{
			"source": s.source,
		})
	}

	openedAt := s.now()
	if t := remote.ParseTime(rec.OpenedAt); t != nil {
		openedAt = *t
	}

	return &domain.Ticket{
		ExternalID:        externalID,
		Source:            s.source,
		ShortDescription:  rec.ShortDescription,
		Description:       rec.Description,
		Category:          rec.Category,
		Subcategory:       rec.Subcategory,
		Status:            rec.State,
		Priority:          rec.Priority,
		Impact:            rec.Impact,
		Urgency:           rec.Urgency,
		OpenedAt:          openedAt,
		ClosedAt:          remote.ParseTime(rec.ClosedAt),
		ResolvedAt:        remote.ParseTime(rec.ResolvedAt),
		RemoteUpdatedAt:   remote.ParseTime(rec.UpdatedOn),
		RequesterID:       rec.CallerID.ID(),
		AssigneeID:        rec.AssignedTo.ID(),
		AssignmentGroupID: rec.AssignmentGroup.ID(),
		CompanyID:         rec.Company.ID(),
		LocationID:        rec.Location.ID(),
		Tags:              []string{},
		RawPayload:        rec.Raw,
	}, nil
}

// differs compares the mutable fields only. Anything else arriving different
// from the remote is treated as a no-op to prevent notification storms from
// polls that keep returning unchanged rows inside the time window.
func (s *IngestService) differs(existing, incoming *domain.Ticket) bool {
	if existing.Status != incoming.Status {
		return true
	}
	if existing.Description != incoming.Description {
		return true
	}
	if existing.Priority != incoming.Priority {
		return true
	}
	if existing.AssigneeID != incoming.AssigneeID {
		return true
	}
	if existing.AssignmentGroupID != incoming.AssignmentGroupID {
		return true
	}
	if !equalTimePtr(existing.RemoteUpdatedAt, incoming.RemoteUpdatedAt) {
		return true
	}
	return false
}

// syncSLARecord creates or refreshes the companion SLA record. SLA tracking
// is best-effort relative to ticket accuracy: a failure here is logged and
// the ticket write stands.
func (s *IngestService) syncSLARecord(ctx context.Context, ticket *domain.Ticket) {
	record := &domain.SLARecord{
		TicketID:   ticket.ID,
		ExternalID: ticket.ExternalID,
		Source:     ticket.Source,
		Priority:   domain.NormalizePriority(ticket.Priority),
		Status:     ticket.Status,
		OpenedAt:   ticket.OpenedAt,
	}
	if err := s.slas.Upsert(ctx, record); err != nil {
		s.logger.Warn("sla record upsert failed",
			zap.String("external_id", ticket.ExternalID),
			zap.String("source", ticket.Source),
			zap.Error(err))
	}
}

func (s *IngestService) publishTicketEvent(ctx context.Context, eventType events.EventType, ticket *domain.Ticket) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    ticket.Source,
		Timestamp: s.now(),
		Payload:   events.TicketPayload{Ticket: ticket},
	})
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-sla-engine/internal/domain"
	"github.com/spec-kit/ticket-sla-engine/internal/remote"
	"github.com/spec-kit/ticket-sla-engine/internal/repository"
)

func ticketKey(externalID, source string) string {
	return externalID + "|" + source
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	nextID  int
	inserts int
	updates int

	insertErr error
	updateErr error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (r *fakeTicketRepo) GetByKey(_ context.Context, externalID, source string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketKey(externalID, source)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (r *fakeTicketRepo) Insert(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.nextID++
	ticket.ID = fmt.Sprintf("tkt-%03d", r.nextID)
	ticket.CreatedAt = time.Now().UTC()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	r.tickets[ticketKey(ticket.ExternalID, ticket.Source)] = &clone
	r.inserts++
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	key := ticketKey(ticket.ExternalID, ticket.Source)
	if _, ok := r.tickets[key]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now().UTC()
	clone := *ticket
	r.tickets[key] = &clone
	r.updates++
	return nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, _ repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		out = append(out, *t)
	}
	return out, nil
}

type fakeSLARepo struct {
	mu      sync.Mutex
	records map[string]*domain.SLARecord
	nextID  int

	upsertErr   error
	markErr     error
	markedCalls int
}

func newFakeSLARepo() *fakeSLARepo {
	return &fakeSLARepo{records: map[string]*domain.SLARecord{}}
}

func (r *fakeSLARepo) GetByKey(_ context.Context, externalID, source string) (*domain.SLARecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[ticketKey(externalID, source)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *record
	return &clone, nil
}

func (r *fakeSLARepo) Upsert(_ context.Context, record *domain.SLARecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	key := ticketKey(record.ExternalID, record.Source)
	if existing, ok := r.records[key]; ok {
		existing.Priority = record.Priority
		existing.Status = record.Status
		existing.OpenedAt = record.OpenedAt
		record.ID = existing.ID
		record.LastNotifiedState = existing.LastNotifiedState
		record.LastNotifiedAt = existing.LastNotifiedAt
		return nil
	}
	r.nextID++
	record.ID = fmt.Sprintf("sla-%03d", r.nextID)
	clone := *record
	r.records[key] = &clone
	return nil
}

func (r *fakeSLARepo) ListMonitored(_ context.Context) ([]domain.SLARecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SLARecord
	for _, record := range r.records {
		if record.LastNotifiedState != nil && *record.LastNotifiedState == domain.SLAStateBreached {
			continue
		}
		if domain.IsTerminalStatus(record.Status) {
			continue
		}
		out = append(out, *record)
	}
	return out, nil
}

func (r *fakeSLARepo) MarkNotified(_ context.Context, id string, state domain.SLAState, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	for _, record := range r.records {
		if record.ID == id {
			s := state
			t := at
			record.LastNotifiedState = &s
			record.LastNotifiedAt = &t
			r.markedCalls++
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fakeStateRepo struct {
	mu     sync.Mutex
	cursor *domain.SyncCursor
	marker *domain.BulkImportMarker

	saveCursorErr error
}

func newFakeStateRepo(source string) *fakeStateRepo {
	return &fakeStateRepo{
		cursor: &domain.SyncCursor{Source: source, IsActive: true},
		marker: &domain.BulkImportMarker{Source: source},
	}
}

func (r *fakeStateRepo) GetCursor(_ context.Context, _ string) (*domain.SyncCursor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *r.cursor
	return &clone, nil
}

func (r *fakeStateRepo) SaveCursor(_ context.Context, cursor *domain.SyncCursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveCursorErr != nil {
		return r.saveCursorErr
	}
	clone := *cursor
	r.cursor = &clone
	return nil
}

func (r *fakeStateRepo) GetBulkMarker(_ context.Context, _ string) (*domain.BulkImportMarker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *r.marker
	return &clone, nil
}

func (r *fakeStateRepo) SaveBulkMarker(_ context.Context, marker *domain.BulkImportMarker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *marker
	r.marker = &clone
	return nil
}

func (r *fakeStateRepo) ClearBulkMarker(_ context.Context, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marker.Completed = false
	r.marker.LastCompletedAt = nil
	r.marker.TotalImported = 0
	return nil
}

type fakeSource struct {
	mu         sync.Mutex
	records    []remote.Record
	fetchErr   error
	probeErr   error
	fetchCalls int
	probeCalls int
	lastFilter string
	lastLimit  int
}

func (s *fakeSource) FetchPage(_ context.Context, filter string, _ []string, limit, offset int) ([]remote.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCalls++
	s.lastFilter = filter
	s.lastLimit = limit
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if offset >= len(s.records) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(s.records) {
		end = len(s.records)
	}
	return s.records[offset:end], nil
}

func (s *fakeSource) Probe(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probeCalls++
	return s.probeErr
}

type fakeNotifier struct {
	mu            sync.Mutex
	notifications []Notification
}

func (n *fakeNotifier) Notify(_ context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
	return nil
}

func (n *fakeNotifier) sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification{}, n.notifications...)
}

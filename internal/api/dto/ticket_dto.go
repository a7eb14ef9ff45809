package dto

import (
	"time"

	"github.com/spec-kit/ticket-sla-engine/internal/domain"
)

// TicketResponse is the read-surface rendering of a synchronized ticket.
type TicketResponse struct {
	ID                string     `json:"id"`
	ExternalID        string     `json:"external_id"`
	Source            string     `json:"source"`
	ShortDescription  string     `json:"short_description"`
	Description       string     `json:"description"`
	Category          string     `json:"category"`
	Subcategory       string     `json:"subcategory"`
	Status            string     `json:"status"`
	Priority          string     `json:"priority"`
	Impact            string     `json:"impact"`
	Urgency           string     `json:"urgency"`
	OpenedAt          time.Time  `json:"opened_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	RemoteUpdatedAt   *time.Time `json:"remote_updated_at,omitempty"`
	RequesterID       string     `json:"requester_id,omitempty"`
	AssigneeID        string     `json:"assignee_id,omitempty"`
	AssignmentGroupID string     `json:"assignment_group_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// FromTicket maps the domain aggregate onto the response shape.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                t.ID,
		ExternalID:        t.ExternalID,
		Source:            t.Source,
		ShortDescription:  t.ShortDescription,
		Description:       t.Description,
		Category:          t.Category,
		Subcategory:       t.Subcategory,
		Status:            t.Status,
		Priority:          t.Priority,
		Impact:            t.Impact,
		Urgency:           t.Urgency,
		OpenedAt:          t.OpenedAt,
		ClosedAt:          t.ClosedAt,
		ResolvedAt:        t.ResolvedAt,
		RemoteUpdatedAt:   t.RemoteUpdatedAt,
		RequesterID:       t.RequesterID,
		AssigneeID:        t.AssigneeID,
		AssignmentGroupID: t.AssignmentGroupID,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

// FromTickets maps a slice of tickets.
func FromTickets(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, FromTicket(&tickets[i]))
	}
	return out
}

// SLAStatusResponse is one row of the SLA read surface.
type SLAStatusResponse struct {
	ExternalID        string     `json:"external_id"`
	Source            string     `json:"source"`
	TicketID          string     `json:"ticket_id"`
	Priority          string     `json:"priority"`
	Status            string     `json:"status"`
	OpenedAt          time.Time  `json:"opened_at"`
	State             string     `json:"state"`
	PercentElapsed    float64    `json:"percent_elapsed"`
	TimeRemaining     string     `json:"time_remaining"`
	LastNotifiedState *string    `json:"last_notified_state,omitempty"`
	LastNotifiedAt    *time.Time `json:"last_notified_at,omitempty"`
}

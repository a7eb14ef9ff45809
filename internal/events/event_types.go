package events

import (
	"time"

	"github.com/spec-kit/ticket-sla-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketIngested    EventType = "new_ticket"
	EventTicketUpdated     EventType = "updated_ticket"
	EventSyncHealthChanged EventType = "sync_health_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketPayload carries the full normalized ticket for ingest events.
type TicketPayload struct {
	Ticket *domain.Ticket `json:"ticket"`
}

// SyncHealthPayload describes a health state transition.
type SyncHealthPayload struct {
	Healthy             bool   `json:"healthy"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	LastError           string `json:"last_error,omitempty"`
}

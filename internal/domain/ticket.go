package domain

import (
	"strings"
	"time"
)

// Terminal ticket statuses as reported by the remote source. Matching is
// case-insensitive; anything else counts as open for SLA purposes.
const (
	StatusClosed    = "closed"
	StatusResolved  = "resolved"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Ticket is the local copy of a remote support ticket. The compound key
// (ExternalID, Source) is unique; tickets are never deleted by the engine.
type Ticket struct {
	ID                string
	ExternalID        string
	Source            string
	ShortDescription  string
	Description       string
	Category          string
	Subcategory       string
	Status            string
	Priority          string
	Impact            string
	Urgency           string
	OpenedAt          time.Time
	ClosedAt          *time.Time
	ResolvedAt        *time.Time
	RemoteUpdatedAt   *time.Time
	RequesterID       string
	AssigneeID        string
	AssignmentGroupID string
	CompanyID         string
	LocationID        string
	Tags              []string
	RawPayload        []byte
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsTerminalStatus reports whether a remote status ends the ticket lifecycle.
func IsTerminalStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusClosed, StatusResolved, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

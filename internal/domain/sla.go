package domain

import (
	"strings"
	"time"
)

// SLAPriority enumerates response-time commitment classes.
type SLAPriority string

const (
	PriorityP1 SLAPriority = "P1"
	PriorityP2 SLAPriority = "P2"
	PriorityP3 SLAPriority = "P3"
)

// NormalizePriority maps remote priority encodings onto P1..P3. Remote
// sources report either numeric levels ("1".."5", possibly "1 - Critical")
// or the class name itself; anything unrecognized falls back to P3.
func NormalizePriority(raw string) SLAPriority {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if i := strings.IndexAny(v, " -"); i > 0 {
		v = v[:i]
	}
	switch v {
	case "1", "P1":
		return PriorityP1
	case "2", "P2":
		return PriorityP2
	default:
		return PriorityP3
	}
}

// SLAState is the computed severity of an open ticket relative to its
// response-time target.
type SLAState string

const (
	SLAStateSafe      SLAState = "safe"
	SLAStateWarning   SLAState = "warning"
	SLAStateCritical  SLAState = "critical"
	SLAStateBreached  SLAState = "breached"
	SLAStateCompleted SLAState = "completed"
)

// Rank orders states along the escalation axis: safe < warning < critical <
// breached. Completed and unknown states rank below safe so they never
// trigger a forward transition.
func (s SLAState) Rank() int {
	switch s {
	case SLAStateSafe:
		return 0
	case SLAStateWarning:
		return 1
	case SLAStateCritical:
		return 2
	case SLAStateBreached:
		return 3
	}
	return -1
}

// SLARecord tracks one ticket's escalation history. LastNotifiedState only
// moves forward along the Rank ordering; nil means nothing beyond safe has
// been announced yet.
type SLARecord struct {
	ID                string
	TicketID          string
	ExternalID        string
	Source            string
	Priority          SLAPriority
	Status            string
	OpenedAt          time.Time
	LastNotifiedState *SLAState
	LastNotifiedAt    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NotifiedRank returns the rank of the last announced state, treating an
// untouched record as safe.
func (r *SLARecord) NotifiedRank() int {
	if r.LastNotifiedState == nil {
		return SLAStateSafe.Rank()
	}
	return r.LastNotifiedState.Rank()
}

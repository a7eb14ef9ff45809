package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla-engine/internal/config"
	"github.com/spec-kit/ticket-sla-engine/internal/domain"
	"github.com/spec-kit/ticket-sla-engine/internal/observability"
	"github.com/spec-kit/ticket-sla-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-sla-engine/pkg/util"
)

// Classification is the computed SLA position of one ticket.
type Classification struct {
	State          domain.SLAState `json:"state"`
	PercentElapsed float64         `json:"percent_elapsed"`
	// TimeRemaining is negative once the target is breached; the magnitude
	// is then the overdue duration.
	TimeRemaining time.Duration `json:"time_remaining"`
}

// EvalResult aggregates one evaluation tick.
type EvalResult struct {
	Evaluated int
	Notified  int
	Errors    int
}

// SLAService evaluates open tickets against their response-time targets and
// emits a notification exactly once per forward severity transition.
type SLAService struct {
	slas     repository.SLARepository
	notifier Notifier
	cfg      config.SLAConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewSLAService constructs the service.
func NewSLAService(slas repository.SLARepository, notifier Notifier, cfg config.SLAConfig, logger *zap.Logger, metrics *observability.Metrics) *SLAService {
	return &SLAService{
		slas:     slas,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// TargetHours returns the response-time target for a priority class.
func (s *SLAService) TargetHours(priority domain.SLAPriority) float64 {
	switch priority {
	case domain.PriorityP1:
		return s.cfg.TargetHoursP1
	case domain.PriorityP2:
		return s.cfg.TargetHoursP2
	default:
		return s.cfg.TargetHoursP3
	}
}

// Classify computes the SLA state at the given instant. A terminal ticket
// status classifies as completed regardless of elapsed time.
func (s *SLAService) Classify(openedAt time.Time, priority domain.SLAPriority, status string, now time.Time) Classification {
	if domain.IsTerminalStatus(status) {
		return Classification{State: domain.SLAStateCompleted}
	}

	target := time.Duration(s.TargetHours(priority) * float64(time.Hour))
	if target <= 0 {
		return Classification{State: domain.SLAStateSafe}
	}

	elapsed := now.Sub(openedAt)
	percent := float64(elapsed) / float64(target)
	remaining := target - elapsed

	cls := Classification{PercentElapsed: percent, TimeRemaining: remaining}
	switch {
	case percent >= 1.0:
		cls.State = domain.SLAStateBreached
	case percent >= s.cfg.CriticalThreshold:
		cls.State = domain.SLAStateCritical
	case percent >= s.cfg.WarningThreshold:
		cls.State = domain.SLAStateWarning
	default:
		cls.State = domain.SLAStateSafe
	}
	return cls
}

// EvaluateOnce runs one evaluation tick over every monitored SLA record.
// Only forward transitions along safe < warning < critical < breached notify;
// repeated evaluations inside a band are silent. The ratchet is persisted
// before the notification call, so a crash in between can at worst duplicate
// an alert, never drop the state advance.
func (s *SLAService) EvaluateOnce(ctx context.Context) (EvalResult, error) {
	records, err := s.slas.ListMonitored(ctx)
	if err != nil {
		return EvalResult{}, apperrors.NewPersistenceError("list monitored sla records", err)
	}

	s.metrics.RecordSLAEvaluation()
	now := s.now()

	var result EvalResult
	for i := range records {
		record := &records[i]
		cls := s.Classify(record.OpenedAt, record.Priority, record.Status, now)
		if cls.State == domain.SLAStateCompleted {
			continue
		}
		result.Evaluated++

		if cls.State.Rank() <= record.NotifiedRank() {
			continue
		}

		if err := s.slas.MarkNotified(ctx, record.ID, cls.State, now); err != nil {
			result.Errors++
			s.logger.Error("persist notified state failed",
				zap.String("external_id", record.ExternalID),
				zap.String("state", string(cls.State)),
				zap.Error(err))
			continue
		}

		if err := s.notifier.Notify(ctx, s.buildNotification(record, cls)); err != nil {
			s.logger.Warn("sla notification failed",
				zap.String("external_id", record.ExternalID),
				zap.Error(err))
		}
		result.Notified++
	}

	s.logger.Debug("sla evaluation tick complete",
		zap.Int("evaluated", result.Evaluated),
		zap.Int("notified", result.Notified),
		zap.Int("errors", result.Errors))
	return result, nil
}

func (s *SLAService) buildNotification(record *domain.SLARecord, cls Classification) Notification {
	var message string
	if cls.State == domain.SLAStateBreached {
		message = fmt.Sprintf("%s ticket %s exceeded its %s response target by %s (%.0f%% elapsed)",
			record.Priority, record.ExternalID, formatHours(s.TargetHours(record.Priority)),
			formatDuration(-cls.TimeRemaining), cls.PercentElapsed*100)
	} else {
		message = fmt.Sprintf("%s ticket %s has %s left of its %s response target (%.0f%% elapsed)",
			record.Priority, record.ExternalID, formatDuration(cls.TimeRemaining),
			formatHours(s.TargetHours(record.Priority)), cls.PercentElapsed*100)
	}

	return Notification{
		Title:    fmt.Sprintf("SLA %s: %s", cls.State, record.ExternalID),
		Message:  message,
		Severity: string(cls.State),
		RelatedEntity: RelatedEntity{
			ID:   record.TicketID,
			Type: "ticket",
		},
	}
}

func formatHours(hours float64) string {
	return formatDuration(time.Duration(hours * float64(time.Hour)))
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Minute).String()
}

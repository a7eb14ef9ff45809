package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-sla-engine/internal/api/dto"
	"github.com/spec-kit/ticket-sla-engine/internal/repository"
	"github.com/spec-kit/ticket-sla-engine/internal/service"
	apperrors "github.com/spec-kit/ticket-sla-engine/pkg/util"
)

// SLAHandler serves the current SLA classification of monitored tickets.
type SLAHandler struct {
	slas repository.SLARepository
	sla  *service.SLAService
}

// NewSLAHandler returns a new handler instance.
func NewSLAHandler(slas repository.SLARepository, sla *service.SLAService) *SLAHandler {
	return &SLAHandler{slas: slas, sla: sla}
}

// List classifies every monitored SLA record at request time.
func (h *SLAHandler) List(c *fiber.Ctx) error {
	records, err := h.slas.ListMonitored(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}

	now := time.Now().UTC()
	out := make([]dto.SLAStatusResponse, 0, len(records))
	for i := range records {
		record := &records[i]
		cls := h.sla.Classify(record.OpenedAt, record.Priority, record.Status, now)

		row := dto.SLAStatusResponse{
			ExternalID:     record.ExternalID,
			Source:         record.Source,
			TicketID:       record.TicketID,
			Priority:       string(record.Priority),
			Status:         record.Status,
			OpenedAt:       record.OpenedAt,
			State:          string(cls.State),
			PercentElapsed: cls.PercentElapsed,
			TimeRemaining:  cls.TimeRemaining.Round(time.Second).String(),
			LastNotifiedAt: record.LastNotifiedAt,
		}
		if record.LastNotifiedState != nil {
			state := string(*record.LastNotifiedState)
			row.LastNotifiedState = &state
		}
		out = append(out, row)
	}

	return c.JSON(fiber.Map{
		"records": out,
		"count":   len(out),
	})
}

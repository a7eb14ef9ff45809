package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-sla-engine/internal/api/dto"
	"github.com/spec-kit/ticket-sla-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-sla-engine/pkg/util"
)

// TicketsHandler serves read-only access to the synchronized local copies.
type TicketsHandler struct {
	tickets repository.TicketRepository
}

// NewTicketsHandler returns a new handler instance.
func NewTicketsHandler(tickets repository.TicketRepository) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// List returns tickets matching the query filters.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	filter := repository.TicketFilter{
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	if source := strings.TrimSpace(c.Query("source")); source != "" {
		filter.Source = &source
	}
	if statuses := c.Query("status"); statuses != "" {
		filter.Statuses = splitCSV(statuses)
	}
	if priorities := c.Query("priority"); priorities != "" {
		filter.Priorities = splitCSV(priorities)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.SearchTerm = &search
	}

	tickets, err := h.tickets.ListWithFilter(c.UserContext(), filter)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{
		"tickets": dto.FromTickets(tickets),
		"count":   len(tickets),
	})
}

// Get returns one ticket by its compound key.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	source := c.Params("source")
	externalID := c.Params("externalId")

	ticket, err := h.tickets.GetByKey(c.UserContext(), externalID, source)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{
				"external_id": externalID,
				"source":      source,
			})
		}
		return apperrors.MapError(err)
	}
	return c.JSON(dto.FromTicket(ticket))
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

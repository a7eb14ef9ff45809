package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-sla-engine/internal/service"
)

// SyncHandler exposes the coordinator's operational surface: status query and
// the manual poll / bulk import / circuit reset commands.
type SyncHandler struct {
	sync *service.SyncService
}

// NewSyncHandler returns a new handler instance.
func NewSyncHandler(sync *service.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// Status returns the read-only cursor and circuit snapshot.
func (h *SyncHandler) Status(c *fiber.Ctx) error {
	status, err := h.sync.Status(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(status)
}

// TriggerPoll runs one incremental tick on demand.
func (h *SyncHandler) TriggerPoll(c *fiber.Ctx) error {
	result, err := h.sync.PollOnce(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"skipped": result.Skipped,
		"fetched": result.Fetched,
		"saved":   result.Page.Saved,
		"updated": result.Page.Updated,
		"errors":  result.Page.Errors,
	})
}

// BulkImport runs the full import, honoring the completion marker unless
// force=true is passed.
func (h *SyncHandler) BulkImport(c *fiber.Ctx) error {
	force := c.QueryBool("force", false)
	result, err := h.sync.BulkImport(c.UserContext(), force)
	if err != nil {
		return err
	}

	response := fiber.Map{
		"skipped":        result.Skipped,
		"total_imported": result.TotalImported,
	}
	if result.Skipped && result.Marker != nil {
		response["completed_at"] = result.Marker.LastCompletedAt
		response["total_imported"] = result.Marker.TotalImported
	}
	return c.JSON(response)
}

// ResetCircuit runs the health gate; a pass closes the breaker.
func (h *SyncHandler) ResetCircuit(c *fiber.Ctx) error {
	if err := h.sync.HealthCheck(c.UserContext()); err != nil {
		return err
	}
	status, err := h.sync.Status(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(status)
}

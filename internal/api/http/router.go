package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/ticket-sla-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Sync           *handlers.SyncHandler
	Tickets        *handlers.TicketsHandler
	SLA            *handlers.SLAHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes. Status and read endpoints are open; the
// manual sync commands require an operator token.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1")

	api.Get("/sync/status", cfg.Sync.Status)
	api.Get("/tickets", cfg.Tickets.List)
	api.Get("/tickets/:source/:externalId", cfg.Tickets.Get)
	api.Get("/sla", cfg.SLA.List)

	ops := api.Group("/sync", cfg.AuthMiddleware.RequireOperator)
	ops.Post("/poll", cfg.Sync.TriggerPoll)
	ops.Post("/bulk-import", cfg.Sync.BulkImport)
	ops.Post("/circuit/reset", cfg.Sync.ResetCircuit)
}

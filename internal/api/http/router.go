package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	jsoniter "github.com/json-iterator/go"

	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/auth"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewApp builds the fiber app with jsoniter bodies.
func NewApp(name string, bodyLimit int) *fiber.App {
	cfg := fiber.Config{
		AppName:      name,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: fallbackErrorHandler,
	}
	if bodyLimit > 0 {
		cfg.BodyLimit = bodyLimit
	}
	return fiber.New(cfg)
}

// fallbackErrorHandler renders errors raised before the middleware chain,
// such as an oversized body.
func fallbackErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": fiber.Map{"code": fiberCode(code), "message": err.Error()}})
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)
	api.Get("/pause-reasons", cfg.Tickets.PauseReasons)

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/timeline", cfg.Tickets.Timeline)
	tickets.Post("/:id/assign", cfg.Tickets.Assign)
	tickets.Post("/:id/resolve", cfg.Tickets.Resolve)
	tickets.Post("/:id/return", cfg.Tickets.ReturnToQueue)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/reclassify", cfg.Tickets.Reclassify)
	tickets.Post("/:id/pause", cfg.Tickets.Pause)
	tickets.Post("/:id/resume", cfg.Tickets.Resume)
	tickets.Post("/:id/evidence", cfg.Tickets.AttachEvidence)
	tickets.Post("/:id/close", auth.RequireRole(domain.AgentRoleSupervisor, domain.AgentRoleAdmin), cfg.Tickets.Close)
}

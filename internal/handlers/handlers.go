// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/signup-desk/internal/events"
	"codeberg.org/oliverandrich/signup-desk/internal/repository"
	"codeberg.org/oliverandrich/signup-desk/internal/services/activation"
	"codeberg.org/oliverandrich/signup-desk/internal/services/admin"
	"codeberg.org/oliverandrich/signup-desk/internal/services/approval"
	"github.com/labstack/echo/v4"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	repo   *repository.Repository
	engine *approval.Engine
	issuer *activation.Issuer
	admin  *admin.Service
	hub    *events.Hub
	logger *slog.Logger
}

// New creates a new Handlers instance.
func New(repo *repository.Repository, engine *approval.Engine, issuer *activation.Issuer, adminSvc *admin.Service, hub *events.Hub) *Handlers {
	return &Handlers{
		repo:   repo,
		engine: engine,
		issuer: issuer,
		admin:  adminSvc,
		hub:    hub,
		logger: slog.Default(),
	}
}

// Routes registers the API on e. adminMiddleware guards the admin group,
// mutating admin routes additionally get mutationMiddleware.
func (h *Handlers) Routes(e *echo.Echo, adminMiddleware []echo.MiddlewareFunc, mutationMiddleware ...echo.MiddlewareFunc) {
	e.GET("/health", h.Health)

	api := e.Group("/api")
	api.POST("/registrations", h.Submit)
	api.POST("/activate", h.Activate)

	g := api.Group("/admin", adminMiddleware...)
	g.GET("/registrations", h.ListRegistrations)
	g.GET("/registrations/:id", h.GetRegistration)
	g.GET("/events", h.Events)

	m := mutationMiddleware
	g.POST("/registrations/:id/approve", h.Approve, m...)
	g.POST("/registrations/:id/reject", h.Reject, m...)
	g.POST("/registrations/:id/status", h.UpdateStatus, m...)
	g.POST("/registrations/:id/resend", h.Resend, m...)
	g.POST("/registrations/:id/notes", h.AddNote, m...)
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	if err := h.repo.Ping(c.Request().Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

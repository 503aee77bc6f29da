// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"codeberg.org/oliverandrich/signup-desk/internal/services/admin"
	"codeberg.org/oliverandrich/signup-desk/internal/services/query"
	"github.com/labstack/echo/v4"
)

type listResponse struct {
	Counts        map[models.Status]int64 `json:"counts"`
	Registrations []models.Registration   `json:"registrations"`
}

// ListRegistrations returns the triage list filtered by q and status.
func (h *Handlers) ListRegistrations(c echo.Context) error {
	ctx := c.Request().Context()
	regs, err := h.admin.ListPendingRegistrations(ctx, query.Filter{
		Query:  c.QueryParam("q"),
		Status: c.QueryParam("status"),
	})
	if err != nil {
		if code, ok := admin.ErrorCode(err); ok {
			return fail(c, code, map[string]string{"status": "unknown status"})
		}
		return internalError(c, err)
	}

	counts, err := h.admin.Counts(ctx)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, listResponse{Registrations: regs, Counts: counts})
}

// GetRegistration returns a registration with its notification attempts.
func (h *Handlers) GetRegistration(c echo.Context) error {
	detail, err := h.admin.Registration(c.Request().Context(), c.Param("id"))
	if err != nil {
		if code, ok := admin.ErrorCode(err); ok {
			return fail(c, code, nil)
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// Approve approves a registration and sends the activation email.
func (h *Handlers) Approve(c echo.Context) error {
	var req versionRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	resp, err := h.admin.ApproveRegistration(c.Request().Context(), c.Param("id"), req.Version)
	return respond(c, resp, err)
}

type rejectRequest struct {
	Version *int64 `json:"version"`
	Reason  string `json:"reason"`
}

// Reject rejects a registration with a reason.
func (h *Handlers) Reject(c echo.Context) error {
	var req rejectRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	resp, err := h.admin.RejectRegistration(c.Request().Context(), c.Param("id"), req.Reason, req.Version)
	return respond(c, resp, err)
}

type statusRequest struct {
	Version *int64 `json:"version"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
}

// UpdateStatus moves a registration to another status.
func (h *Handlers) UpdateStatus(c echo.Context) error {
	var req statusRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	resp, err := h.admin.UpdateStatus(c.Request().Context(), c.Param("id"), req.Status, req.Reason, req.Version)
	return respond(c, resp, err)
}

// Resend issues a new activation link.
func (h *Handlers) Resend(c echo.Context) error {
	resp, err := h.admin.ResendActivationEmail(c.Request().Context(), c.Param("id"))
	return respond(c, resp, err)
}

type noteRequest struct {
	Version *int64 `json:"version"`
	Note    string `json:"note"`
}

// AddNote appends an admin note.
func (h *Handlers) AddNote(c echo.Context) error {
	var req noteRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	resp, err := h.admin.AddNote(c.Request().Context(), c.Param("id"), req.Note, req.Version)
	return respond(c, resp, err)
}

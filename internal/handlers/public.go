// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"codeberg.org/oliverandrich/signup-desk/internal/events"
	"codeberg.org/oliverandrich/signup-desk/internal/i18n"
	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"codeberg.org/oliverandrich/signup-desk/internal/services/activation"
	"codeberg.org/oliverandrich/signup-desk/internal/services/admin"
	"codeberg.org/oliverandrich/signup-desk/internal/services/approval"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

type submitResponse struct {
	ID      string        `json:"id"`
	Status  models.Status `json:"status"`
	Message string        `json:"message"`
	Success bool          `json:"success"`
}

// Submit stores a public signup request.
func (h *Handlers) Submit(c echo.Context) error {
	var params approval.SubmitParams
	if ok, err := bindJSON(c, &params); !ok {
		return err
	}

	reg, err := h.engine.Submit(c.Request().Context(), params)
	if err != nil {
		var verr *approval.ValidationError
		if errors.As(err, &verr) {
			return fail(c, admin.CodeValidationFailed, verr.Fields)
		}
		if errors.Is(err, approval.ErrDuplicateEmail) {
			return fail(c, admin.CodeDuplicateEmail, nil)
		}
		return internalError(c, err)
	}

	return c.JSON(http.StatusCreated, submitResponse{
		Success: true,
		Message: i18n.T(c.Request().Context(), "msg_registration_received"),
		ID:      reg.ID,
		Status:  reg.Status,
	})
}

type activateRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Activate consumes an activation token and creates the customer account.
func (h *Handlers) Activate(c echo.Context) error {
	var req activateRequest
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}
	if req.Token == "" {
		return fail(c, codeTokenInvalid, nil)
	}

	ctx := c.Request().Context()
	account, err := h.issuer.Activate(ctx, req.Token, req.Password)
	if err != nil {
		var perr *activation.PasswordError
		switch {
		case errors.As(err, &perr):
			return fail(c, admin.CodeValidationFailed, map[string]string{
				"password": strings.Join(lo.Map(perr.Problems, func(p activation.PasswordProblem, _ int) string {
					return p.Message
				}), "; "),
			})
		case errors.Is(err, activation.ErrTokenInvalid):
			return fail(c, codeTokenInvalid, nil)
		case errors.Is(err, activation.ErrTokenExpired):
			return fail(c, codeTokenExpired, nil)
		case errors.Is(err, activation.ErrTokenAlreadyUsed), errors.Is(err, activation.ErrAlreadyActivated):
			return fail(c, codeTokenUsed, nil)
		case errors.Is(err, activation.ErrNotApproved):
			return fail(c, admin.CodeInvalidState, nil)
		}
		return internalError(c, err)
	}

	h.hub.Publish(events.Event{
		At:             time.Now().UTC(),
		Type:           events.AccountActivated,
		RegistrationID: account.RegistrationID,
		Status:         models.StatusApproved,
	})
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": i18n.T(ctx, "msg_account_activated"),
		"email":   account.Email,
	})
}

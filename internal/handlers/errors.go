// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/signup-desk/internal/i18n"
	"codeberg.org/oliverandrich/signup-desk/internal/services/admin"
	"github.com/labstack/echo/v4"
)

// Error codes used only by the public endpoints.
const (
	codeTokenInvalid  = "token_invalid"
	codeTokenExpired  = "token_expired"
	codeTokenUsed     = "token_used"
	codeBadRequest    = "bad_request"
	codeInternalError = "internal_error"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Fields  map[string]string `json:"fields,omitempty"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Success bool              `json:"success"`
}

// statusFor maps an error code onto its HTTP status.
func statusFor(code string) int {
	switch code {
	case admin.CodeNotFound:
		return http.StatusNotFound
	case admin.CodeConcurrentModification, admin.CodeAlreadyFinalized,
		admin.CodeInvalidState, admin.CodeDuplicateEmail, codeTokenUsed:
		return http.StatusConflict
	case admin.CodeInvalidTransition:
		return http.StatusUnprocessableEntity
	case admin.CodeValidationFailed, codeTokenInvalid, codeBadRequest:
		return http.StatusBadRequest
	case codeTokenExpired:
		return http.StatusGone
	case admin.CodeDeliveryFailed:
		return http.StatusAccepted
	}
	return http.StatusInternalServerError
}

// fail writes a localized error response.
func fail(c echo.Context, code string, fields map[string]string) error {
	return c.JSON(statusFor(code), errorBody{
		Error:   code,
		Message: i18n.T(c.Request().Context(), "msg_"+code),
		Fields:  fields,
	})
}

// internalError logs err and responds without detail.
func internalError(c echo.Context, err error) error {
	slog.ErrorContext(c.Request().Context(), "request failed",
		"method", c.Request().Method, "path", c.Path(), "error", err)
	return fail(c, codeInternalError, nil)
}

// ErrorHandler renders errors escaping the handlers, such as unknown routes
// or an oversized body, in the API's JSON error shape.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, isString := he.Message.(string); isString {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	}
	if code >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "unhandled error", "path", c.Path(), "error", err)
		message = i18n.T(c.Request().Context(), "msg_internal_error")
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = c.JSON(code, errorBody{Error: errorCode(code), Message: message})
	}
	if writeErr != nil {
		slog.Error("failed to write error response", "error", writeErr)
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "route_not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "body_too_large"
	case http.StatusUnauthorized:
		return "unauthorized"
	}
	if status >= http.StatusInternalServerError {
		return codeInternalError
	}
	return codeBadRequest
}

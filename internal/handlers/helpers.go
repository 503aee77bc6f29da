// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/signup-desk/internal/services/admin"
	"github.com/labstack/echo/v4"
)

// versionRequest carries the optional expected version of admin actions.
type versionRequest struct {
	Version *int64 `json:"version"`
}

// bindJSON decodes the request body into dst and answers 400 on failure.
// It reports whether the handler should continue.
func bindJSON(c echo.Context, dst any) (bool, error) {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return false, fail(c, codeBadRequest, nil)
	}
	return true, nil
}

// respond writes an admin facade result.
func respond(c echo.Context, resp *admin.Response, err error) error {
	if err != nil {
		return internalError(c, err)
	}
	status := http.StatusOK
	if resp.Error != "" {
		status = statusFor(resp.Error)
	}
	return c.JSON(status, resp)
}

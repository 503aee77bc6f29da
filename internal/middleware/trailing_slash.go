// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// StripTrailingSlash redirects GET requests with a trailing slash to the
// canonical URL without it. Other methods are rewritten in place so a POST
// body is not lost to a redirect. Register it with echo's Pre.
func StripTrailingSlash() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if path == "/" || !strings.HasSuffix(path, "/") {
				return next(c)
			}

			trimmed := strings.TrimRight(path, "/")
			if trimmed == "" {
				trimmed = "/"
			}
			if req.Method == http.MethodGet || req.Method == http.MethodHead {
				target := trimmed
				if req.URL.RawQuery != "" {
					target += "?" + req.URL.RawQuery
				}
				return c.Redirect(http.StatusMovedPermanently, target)
			}

			req.URL.Path = trimmed
			req.URL.RawPath = ""
			return next(c)
		}
	}
}

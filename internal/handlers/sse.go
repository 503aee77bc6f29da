// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"time"

	"codeberg.org/oliverandrich/signup-desk/internal/events"
	"github.com/labstack/echo/v4"
)

// heartbeatInterval keeps idle connections open through proxies.
const heartbeatInterval = 30 * time.Second

// Events streams registration events to admin clients. The optional
// registration query parameter restricts the stream to one registration.
func (h *Handlers) Events(c echo.Context) error {
	w := c.Response()
	ctx := c.Request().Context()

	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	ch := h.hub.Subscribe(c.QueryParam("registration"))
	defer h.hub.Unsubscribe(ch)

	if _, err := w.Write([]byte(events.FormatEvent("connected", "ok"))); err != nil {
		return nil
	}
	w.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Write([]byte(events.Heartbeat)); err != nil {
				return nil // Client disconnected
			}
			w.Flush()
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := events.Encode(e)
			if err != nil {
				h.logger.Error("failed to encode event", "error", err)
				continue
			}
			if _, err := w.Write([]byte(msg)); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

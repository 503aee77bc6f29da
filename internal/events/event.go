// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package events fans registration changes out to in-process subscribers
// such as the admin SSE stream.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"codeberg.org/oliverandrich/signup-desk/internal/models"
)

// Type names an event.
type Type string

const (
	RegistrationSubmitted Type = "registration.submitted"
	RegistrationUpdated   Type = "registration.updated"
	NotificationFailed    Type = "notification.failed"
	AccountActivated      Type = "account.activated"
)

// Event describes a committed change to a registration.
type Event struct {
	At             time.Time     `json:"at"`
	Type           Type          `json:"type"`
	RegistrationID string        `json:"registration_id"`
	Status         models.Status `json:"status,omitempty"`
	Detail         string        `json:"detail,omitempty"`
	Version        int64         `json:"version,omitempty"`
}

// ForRegistration builds an event carrying the registration's current status and version.
func ForRegistration(t Type, reg *models.Registration) Event {
	return Event{
		At:             time.Now().UTC(),
		Type:           t,
		RegistrationID: reg.ID,
		Status:         reg.Status,
		Version:        reg.Version,
	}
}

// Publisher accepts events. Implementations must not block.
type Publisher interface {
	Publish(e Event)
}

// Encode renders e as an SSE event named after its type.
func Encode(e Event) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return FormatEvent(string(e.Type), string(data)), nil
}

// FormatEvent formats a message as an SSE event with optional event name.
// Multiline content is properly prefixed with "data:".
func FormatEvent(eventName, data string) string {
	var sb strings.Builder

	if eventName != "" {
		fmt.Fprintf(&sb, "event: %s\n", eventName)
	}

	for line := range strings.SplitSeq(data, "\n") {
		fmt.Fprintf(&sb, "data: %s\n", line)
	}

	sb.WriteString("\n") // Empty line marks end of event
	return sb.String()
}

// Heartbeat is an SSE comment that keeps the connection alive.
// Comments (lines starting with :) are ignored by SSE clients.
const Heartbeat = ": heartbeat\n\n"

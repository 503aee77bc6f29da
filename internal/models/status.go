// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"fmt"
	"strings"
)

// Status is the workflow state of a registration.
type Status string

const (
	StatusPending       Status = "pending"
	StatusContacted     Status = "contacted"
	StatusDemoScheduled Status = "demo_scheduled"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
)

// AllStatuses lists every status in workflow order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusContacted, StatusDemoScheduled, StatusApproved, StatusRejected}
}

// transitions maps a status to the statuses reachable from it.
// Terminal statuses have no entry.
var transitions = map[Status][]Status{
	StatusPending:       {StatusContacted, StatusDemoScheduled, StatusApproved, StatusRejected},
	StatusContacted:     {StatusDemoScheduled, StatusApproved, StatusRejected},
	StatusDemoScheduled: {StatusApproved, StatusRejected},
}

func (s Status) String() string { return string(s) }

// IsValid reports whether s is one of the five defined statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusContacted, StatusDemoScheduled, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no transition is permitted out of s.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// ParseStatus parses a status name, ignoring case and surrounding whitespace.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid status %q", v)
	}
	return s, nil
}

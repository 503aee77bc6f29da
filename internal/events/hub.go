// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package events

import (
	"sync"

	"github.com/samber/lo"
)

// subscriber is one listener, optionally limited to a single registration.
type subscriber struct {
	ch             chan Event
	registrationID string
}

// Hub is an in-process fan-out of events. Slow subscribers miss events
// instead of blocking publishers.
type Hub struct {
	subs []subscriber
	mu   sync.RWMutex
}

// NewHub creates a new event hub.
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe returns a channel receiving events for registrationID,
// or for every registration when it is empty.
func (h *Hub) Subscribe(registrationID string) chan Event {
	ch := make(chan Event, 16) // buffered to prevent blocking

	h.mu.Lock()
	defer h.mu.Unlock()

	h.subs = append(h.subs, subscriber{ch: ch, registrationID: registrationID})
	return ch
}

// Unsubscribe removes and closes ch.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	before := len(h.subs)
	h.subs = lo.Filter(h.subs, func(s subscriber, _ int) bool {
		return s.ch != ch
	})
	if len(h.subs) < before {
		close(ch)
	}
}

// Publish delivers e to every matching subscriber.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs {
		if s.registrationID != "" && s.registrationID != e.RegistrationID {
			continue
		}
		select {
		case s.ch <- e:
		default:
			// Channel full, skip
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

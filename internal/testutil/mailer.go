// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package testutil

import (
	"context"
	"sync"

	"codeberg.org/oliverandrich/signup-desk/internal/services/email"
)

// FakeMailer records sent messages. Queued errors are returned one per call
// before it starts succeeding.
type FakeMailer struct {
	mu     sync.Mutex
	errs   []error
	sent   []email.Message
	calls  int
	always error
}

// NewFakeMailer returns a mailer that fails with errs in order, then succeeds.
func NewFakeMailer(errs ...error) *FakeMailer {
	return &FakeMailer{errs: errs}
}

// FailAlways makes every call return err.
func (m *FakeMailer) FailAlways(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.always = err
}

func (m *FakeMailer) Send(ctx context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.always != nil {
		return m.always
	}
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return err
		}
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (m *FakeMailer) Sent() []email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.Message(nil), m.sent...)
}

// Calls returns how often Send was called.
func (m *FakeMailer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Transient returns a retryable provider error.
func Transient(status int) error {
	return &email.ProviderError{StatusCode: status, Message: "temporary failure", Transient: true}
}

// Permanent returns a non-retryable provider error.
func Permanent(status int) error {
	return &email.ProviderError{StatusCode: status, Message: "rejected"}
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package approval implements the registration workflow: status transitions
// under optimistic concurrency and the notifications they trigger.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/signup-desk/internal/events"
	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"codeberg.org/oliverandrich/signup-desk/internal/repository"
	"codeberg.org/oliverandrich/signup-desk/internal/services/notify"
)

// TokenIssuer creates activation tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, registrationID string) (string, error)
}

// Notifier delivers customer notifications.
type Notifier interface {
	Send(ctx context.Context, reg *models.Registration, n notify.Notification) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

// Engine is the only writer of registration status, version and notes.
type Engine struct {
	repo     *repository.Repository
	issuer   TokenIssuer
	notifier Notifier
	events   events.Publisher
	logger   *slog.Logger
	lifetime context.Context
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithEvents publishes committed changes to p.
func WithEvents(p events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.events = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifetime bounds notification delivery by ctx instead of the caller's
// context, so a client disconnect does not abort retries but shutdown does.
func WithLifetime(ctx context.Context) Option {
	return func(e *Engine) { e.lifetime = ctx }
}

// WithClock sets the time source for note timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(repo *repository.Repository, issuer TokenIssuer, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		issuer:   issuer,
		notifier: notifier,
		events:   nopPublisher{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Get returns a registration.
func (e *Engine) Get(ctx context.Context, id string) (*models.Registration, error) {
	reg, err := e.repo.GetRegistration(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return reg, nil
}

// Attempts returns the notification audit trail of a registration.
func (e *Engine) Attempts(ctx context.Context, id string) ([]models.NotificationAttempt, error) {
	if _, err := e.Get(ctx, id); err != nil {
		return nil, err
	}
	attempts, err := e.repo.ListNotificationAttempts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list notification attempts: %w", err)
	}
	return attempts, nil
}

// SetStatus moves a registration to target if expectedVersion is current and
// the transition is allowed. A non-blank reason is appended to the admin notes
// and is required for rejections. After the write commits, approval issues a
// token and sends the activation email, rejection sends a notice. Delivery
// problems are returned alongside the committed registration as an error
// matching ErrDeliveryFailed; the transition is never undone.
func (e *Engine) SetStatus(ctx context.Context, id string, target models.Status, expectedVersion int64, reason string) (*models.Registration, error) {
	if !target.IsValid() {
		return nil, newValidationError("status", fmt.Sprintf("unknown status %q", target))
	}
	reason = strings.TrimSpace(reason)
	if target == models.StatusRejected && reason == "" {
		return nil, newValidationError("reason", "a rejection reason is required")
	}

	now := e.now()
	updated, err := e.repo.ConditionalUpdateRegistration(ctx, id, expectedVersion, func(r *models.Registration) error {
		if r.Status.IsTerminal() {
			return ErrAlreadyFinalized
		}
		if !r.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, r.Status, target)
		}
		from := r.Status
		r.Status = target
		if reason != "" {
			r.AppendNote(now, fmt.Sprintf("%s -> %s: %s", from, target, reason))
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	e.logger.InfoContext(ctx, "registration status changed",
		"registration_id", id, "status", updated.Status, "version", updated.Version)
	e.events.Publish(events.ForRegistration(events.RegistrationUpdated, updated))

	switch target {
	case models.StatusApproved:
		return updated, e.sendActivation(ctx, updated)
	case models.StatusRejected:
		return updated, e.deliver(ctx, updated, notify.Notification{Kind: models.KindRejection, Reason: reason})
	}
	return updated, nil
}

// Approve is SetStatus to approved.
func (e *Engine) Approve(ctx context.Context, id string, expectedVersion int64) (*models.Registration, error) {
	return e.SetStatus(ctx, id, models.StatusApproved, expectedVersion, "")
}

// Reject is SetStatus to rejected with a mandatory reason.
func (e *Engine) Reject(ctx context.Context, id string, expectedVersion int64, reason string) (*models.Registration, error) {
	return e.SetStatus(ctx, id, models.StatusRejected, expectedVersion, reason)
}

// Resend issues a fresh activation token, invalidating the previous one, and
// sends it again. Only approved registrations that are not yet activated
// qualify. The registration itself is not modified.
func (e *Engine) Resend(ctx context.Context, id string) (*models.Registration, error) {
	reg, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.Status != models.StatusApproved {
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidState, reg.Status)
	}
	if reg.IsActivated() {
		return nil, fmt.Errorf("%w: account already activated", ErrInvalidState)
	}

	e.logger.InfoContext(ctx, "resending activation email", "registration_id", id)
	return reg, e.sendActivation(ctx, reg)
}

// AddNote appends a timestamped admin note. Notes are allowed in every status.
func (e *Engine) AddNote(ctx context.Context, id string, expectedVersion int64, note string) (*models.Registration, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, newValidationError("note", "must not be blank")
	}

	now := e.now()
	updated, err := e.repo.ConditionalUpdateRegistration(ctx, id, expectedVersion, func(r *models.Registration) error {
		r.AppendNote(now, note)
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	e.events.Publish(events.ForRegistration(events.RegistrationUpdated, updated))
	return updated, nil
}

func (e *Engine) sendActivation(ctx context.Context, reg *models.Registration) error {
	ctx, cancel := e.deliveryContext(ctx)
	defer cancel()

	token, err := e.issuer.Issue(ctx, reg.ID)
	if err != nil {
		err = fmt.Errorf("%w: issue activation token: %w", ErrDeliveryFailed, err)
		e.deliveryFailed(ctx, reg, err)
		return err
	}
	return e.send(ctx, reg, notify.Notification{Kind: models.KindActivation, Token: token})
}

func (e *Engine) deliver(ctx context.Context, reg *models.Registration, n notify.Notification) error {
	ctx, cancel := e.deliveryContext(ctx)
	defer cancel()
	return e.send(ctx, reg, n)
}

func (e *Engine) send(ctx context.Context, reg *models.Registration, n notify.Notification) error {
	err := e.notifier.Send(ctx, reg, n)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrDeliveryFailed) {
		err = fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	e.deliveryFailed(ctx, reg, err)
	return err
}

func (e *Engine) deliveryFailed(ctx context.Context, reg *models.Registration, err error) {
	e.logger.WarnContext(ctx, "change recorded, notification not delivered",
		"registration_id", reg.ID, "status", reg.Status, "error", err)
	ev := events.ForRegistration(events.NotificationFailed, reg)
	ev.Detail = err.Error()
	e.events.Publish(ev)
}

// deliveryContext keeps the caller's values but ties cancellation to the
// engine lifetime when one is set.
func (e *Engine) deliveryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.lifetime == nil {
		return context.WithCancel(ctx)
	}
	dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if e.lifetime.Err() != nil {
		cancel()
		return dctx, cancel
	}
	stop := context.AfterFunc(e.lifetime, cancel)
	return dctx, func() {
		stop()
		cancel()
	}
}

// storeError maps repository errors onto the workflow's error kinds.
func storeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConcurrentModification):
		return ErrConcurrentModification
	case errors.Is(err, repository.ErrDuplicateEmail):
		return ErrDuplicateEmail
	case errors.Is(err, ErrAlreadyFinalized), errors.Is(err, ErrInvalidTransition):
		return err
	}
	return fmt.Errorf("store: %w", err)
}

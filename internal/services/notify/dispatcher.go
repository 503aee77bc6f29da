// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package notify composes and delivers customer notifications with bounded retry.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"time"

	"codeberg.org/oliverandrich/signup-desk/internal/i18n"
	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"codeberg.org/oliverandrich/signup-desk/internal/repository"
	"codeberg.org/oliverandrich/signup-desk/internal/services/email"
	"github.com/sethvargo/go-retry"
)

// ErrDeliveryFailed is returned when a notification could not be delivered.
// The cause stays in the chain.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// maxErrorDetail bounds the provider error text stored per attempt.
const maxErrorDetail = 1000

// Config controls composition and the retry policy.
type Config struct {
	LinkBaseURL   string
	Locale        string
	TokenTTL      time.Duration
	BackoffBase   time.Duration
	MaxAttempts   int
	BackoffFactor int
}

// Notification is what to tell the customer.
type Notification struct {
	Kind   models.NotificationKind
	Token  string // activation only
	Reason string // rejection only
}

// Dispatcher sends notifications and records every delivery attempt.
type Dispatcher struct {
	repo   *repository.Repository
	mailer email.Mailer
	logger *slog.Logger
	cfg    Config
}

// New creates a Dispatcher. Zero config values fall back to 3 attempts
// spaced 1s and 4s apart.
func New(repo *repository.Repository, mailer email.Mailer, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 4
	}
	if cfg.Locale == "" {
		cfg.Locale = "en"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{repo: repo, mailer: mailer, logger: logger, cfg: cfg}
}

// Delay returns the wait before try n+1, base * factor^(n-1).
func Delay(base time.Duration, factor, n int) time.Duration {
	if n < 1 {
		return 0
	}
	return time.Duration(float64(base) * math.Pow(float64(factor), float64(n-1)))
}

func (d *Dispatcher) backoff() retry.Backoff {
	waits := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		waits++
		if waits >= d.cfg.MaxAttempts {
			return 0, true
		}
		return Delay(d.cfg.BackoffBase, d.cfg.BackoffFactor, waits), false
	})
}

// Send delivers n to the registrant. Transient provider failures are retried
// up to the configured number of attempts, permanent ones are not. Each try is
// recorded. If ctx ends before the last try a pending attempt is recorded.
// No store lock is held while waiting.
func (d *Dispatcher) Send(ctx context.Context, reg *models.Registration, n Notification) error {
	msg, err := d.compose(reg, n)
	if err != nil {
		return err
	}

	log := d.logger.With("registration_id", reg.ID, "kind", n.Kind)

	if ctxErr := ctx.Err(); ctxErr != nil {
		d.recordOutcome(ctx, reg.ID, n.Kind, models.OutcomePending, ctxErr)
		return fmt.Errorf("%w: not attempted: %w", ErrDeliveryFailed, ctxErr)
	}

	var (
		tries     int
		retryable bool
	)
	err = retry.Do(ctx, d.backoff(), func(ctx context.Context) error {
		tries++
		sendErr := d.mailer.Send(ctx, msg)
		d.record(ctx, reg.ID, n.Kind, sendErr)

		if sendErr == nil {
			return nil
		}
		retryable = email.IsTransient(sendErr)
		log.WarnContext(ctx, "notification attempt failed",
			"try", tries, "transient", retryable, "error", sendErr)
		if retryable {
			return retry.RetryableError(sendErr)
		}
		return sendErr
	})
	if err == nil {
		log.InfoContext(ctx, "notification sent", "tries", tries)
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) && retryable {
		d.recordOutcome(ctx, reg.ID, n.Kind, models.OutcomePending, ctxErr)
		log.WarnContext(ctx, "notification interrupted", "tries", tries, "error", ctxErr)
		return fmt.Errorf("%w: interrupted after %d tries: %w", ErrDeliveryFailed, tries, ctxErr)
	}

	log.ErrorContext(ctx, "notification not delivered", "tries", tries, "error", err)
	return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
}

func (d *Dispatcher) compose(reg *models.Registration, n Notification) (email.Message, error) {
	if err := i18n.Init(); err != nil {
		return email.Message{}, fmt.Errorf("load translations: %w", err)
	}
	ctx := i18n.WithLocale(context.Background(), i18n.MatchLanguage(d.cfg.Locale))
	name := reg.FullName()

	msg := email.Message{To: reg.Email, ToName: name}
	switch n.Kind {
	case models.KindActivation:
		if n.Token == "" {
			return msg, errors.New("activation notification needs a token")
		}
		msg.Subject = i18n.T(ctx, "activation_email_subject")
		msg.Body = i18n.TData(ctx, "activation_email_body", map[string]any{
			"Name":      name,
			"Link":      d.ActivationLink(n.Token),
			"ValidDays": int(math.Ceil(d.cfg.TokenTTL.Hours() / 24)),
		})
	case models.KindRejection:
		msg.Subject = i18n.T(ctx, "rejection_email_subject")
		msg.Body = i18n.TData(ctx, "rejection_email_body", map[string]any{
			"Name":   name,
			"Reason": n.Reason,
		})
	default:
		return msg, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	return msg, nil
}

// ActivationLink returns the URL a customer opens to activate their account.
func (d *Dispatcher) ActivationLink(token string) string {
	return d.cfg.LinkBaseURL + "/activate?token=" + url.QueryEscape(token)
}

func (d *Dispatcher) record(ctx context.Context, regID string, kind models.NotificationKind, sendErr error) {
	outcome := models.OutcomeSent
	if sendErr != nil {
		outcome = models.OutcomeFailed
	}
	d.recordOutcome(ctx, regID, kind, outcome, sendErr)
}

// recordOutcome appends an attempt. It uses a context detached from
// cancellation so interrupted deliveries are still audited.
func (d *Dispatcher) recordOutcome(ctx context.Context, regID string, kind models.NotificationKind, outcome models.AttemptOutcome, cause error) {
	attempt := &models.NotificationAttempt{
		RegistrationID: regID,
		Kind:           kind,
		Outcome:        outcome,
	}
	if cause != nil {
		detail := cause.Error()
		if len(detail) > maxErrorDetail {
			detail = detail[:maxErrorDetail]
		}
		attempt.ErrorDetail = &detail
		if status := email.StatusCode(cause); status > 0 {
			attempt.ProviderStatus = &status
		}
	}

	if err := d.repo.CreateNotificationAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		d.logger.ErrorContext(ctx, "failed to record notification attempt",
			"registration_id", regID, "kind", kind, "outcome", outcome, "error", err)
	}
}

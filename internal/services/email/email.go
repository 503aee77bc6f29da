// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email delivers customer notifications through a pluggable provider.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/signup-desk/internal/config"
)

// Message is a plain-text email addressed to a single recipient.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Mailer sends a message. Failures are returned as *ProviderError so callers
// can tell transient from permanent ones.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer builds the mailer selected by cfg.Driver.
func NewMailer(cfg *config.MailConfig, logger *slog.Logger) (Mailer, error) {
	switch cfg.Driver {
	case config.MailDriverSMTP:
		return NewSMTPMailer(cfg)
	case config.MailDriverHTTP:
		return NewHTTPMailer(cfg.HTTP.Endpoint, cfg.HTTP.APIKey, cfg.From, cfg.HTTP.Timeout)
	case config.MailDriverLog, "":
		return NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}

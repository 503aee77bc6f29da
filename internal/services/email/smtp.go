// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"errors"
	"fmt"
	"net"

	"codeberg.org/oliverandrich/signup-desk/internal/config"
	"github.com/wneessen/go-mail"
)

// SMTPMailer sends mail through an SMTP relay using go-mail.
type SMTPMailer struct {
	cfg *config.MailConfig
}

// NewSMTPMailer creates an SMTP mailer.
func NewSMTPMailer(cfg *config.MailConfig) (*SMTPMailer, error) {
	if cfg.SMTP.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from address is required")
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// Send delivers msg. Invalid addresses and 5xx replies are permanent;
// 4xx replies and network failures are transient.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	mm := mail.NewMsg()

	if m.cfg.FromName != "" {
		if err := mm.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
			return &ProviderError{Message: "invalid from address", Cause: err}
		}
	} else if err := mm.From(m.cfg.From); err != nil {
		return &ProviderError{Message: "invalid from address", Cause: err}
	}

	var err error
	if msg.ToName != "" {
		err = mm.AddToFormat(msg.ToName, msg.To)
	} else {
		err = mm.To(msg.To)
	}
	if err != nil {
		return &ProviderError{Message: "invalid recipient address", Cause: err}
	}

	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextPlain, msg.Body)

	client, err := mail.NewClient(m.cfg.SMTP.Host, m.options()...)
	if err != nil {
		return &ProviderError{Message: "creating mail client", Cause: err}
	}

	if err := client.DialAndSendWithContext(ctx, mm); err != nil {
		return classifySMTPError(err)
	}
	return nil
}

func (m *SMTPMailer) options() []mail.Option {
	smtp := m.cfg.SMTP
	opts := []mail.Option{
		mail.WithPort(smtp.Port),
	}

	switch smtp.TLS {
	case "none":
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case "opportunistic":
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Use implicit TLS (SSL) for port 465, STARTTLS for others
		if smtp.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	}

	if smtp.Username != "" && smtp.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(smtp.Username),
			mail.WithPassword(smtp.Password),
		)
	}
	return opts
}

func classifySMTPError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Message: "smtp send interrupted", Cause: err, Transient: errors.Is(err, context.DeadlineExceeded)}
	}

	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		return &ProviderError{
			Message:    "smtp send failed",
			StatusCode: sendErr.ErrorCode(),
			Transient:  sendErr.IsTemp(),
			Cause:      err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ProviderError{Message: "smtp connection failed", Transient: true, Cause: err}
	}

	return &ProviderError{Message: "smtp send failed", Cause: err}
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package admin is the administrator-facing facade over the approval
// workflow. It turns workflow outcomes into localized responses with stable
// error codes.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/signup-desk/internal/i18n"
	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"codeberg.org/oliverandrich/signup-desk/internal/services/approval"
	"codeberg.org/oliverandrich/signup-desk/internal/services/query"
)

// Error codes carried by Response.Error.
const (
	CodeNotFound               = "not_found"
	CodeInvalidTransition      = "invalid_transition"
	CodeAlreadyFinalized       = "already_finalized"
	CodeConcurrentModification = "concurrent_modification"
	CodeValidationFailed       = "validation_failed"
	CodeInvalidState           = "invalid_state"
	CodeDuplicateEmail         = "duplicate_email"
	CodeDeliveryFailed         = "delivery_failed"
)

// Response is the outcome of an admin action. A delivery failure after a
// committed change is reported with Success true and Error delivery_failed.
type Response struct {
	Registration *models.Registration `json:"registration,omitempty"`
	Fields       map[string]string    `json:"fields,omitempty"`
	Message      string               `json:"message"`
	Error        string               `json:"error,omitempty"`
	Success      bool                 `json:"success"`
}

// Detail is a registration together with its notification history.
type Detail struct {
	Registration *models.Registration        `json:"registration"`
	Attempts     []models.NotificationAttempt `json:"attempts"`
}

// Service exposes the admin operations.
type Service struct {
	engine *approval.Engine
	query  *query.Service
	logger *slog.Logger
}

// New creates the admin facade.
func New(engine *approval.Engine, q *query.Service, logger *slog.Logger) (*Service, error) {
	if err := i18n.Init(); err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, query: q, logger: logger}, nil
}

// ListPendingRegistrations returns the triage list, most recent first.
func (s *Service) ListPendingRegistrations(ctx context.Context, f query.Filter) ([]models.Registration, error) {
	return s.query.List(ctx, f)
}

// Counts returns the number of registrations per status.
func (s *Service) Counts(ctx context.Context) (map[models.Status]int64, error) {
	return s.query.Counts(ctx)
}

// Registration returns a registration with its notification attempts.
// Errors match the approval package sentinels.
func (s *Service) Registration(ctx context.Context, id string) (*Detail, error) {
	reg, err := s.engine.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	attempts, err := s.engine.Attempts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Registration: reg, Attempts: attempts}, nil
}

// ApproveRegistration approves id. A nil version means the current one.
func (s *Service) ApproveRegistration(ctx context.Context, id string, version *int64) (*Response, error) {
	return s.withVersion(ctx, id, version, "msg_registration_approved", func(v int64) (*models.Registration, error) {
		return s.engine.Approve(ctx, id, v)
	})
}

// RejectRegistration rejects id with reason.
func (s *Service) RejectRegistration(ctx context.Context, id, reason string, version *int64) (*Response, error) {
	return s.withVersion(ctx, id, version, "msg_registration_rejected", func(v int64) (*models.Registration, error) {
		return s.engine.Reject(ctx, id, v, reason)
	})
}

// UpdateStatus moves id to status. Approved and rejected go through the same
// side effects as ApproveRegistration and RejectRegistration.
func (s *Service) UpdateStatus(ctx context.Context, id, status, reason string, version *int64) (*Response, error) {
	target, err := models.ParseStatus(status)
	if err != nil {
		return s.respond(ctx, nil, "", &approval.ValidationError{Fields: map[string]string{"status": err.Error()}})
	}
	msg := "msg_status_updated"
	switch target {
	case models.StatusApproved:
		msg = "msg_registration_approved"
	case models.StatusRejected:
		msg = "msg_registration_rejected"
	}
	return s.withVersion(ctx, id, version, msg, func(v int64) (*models.Registration, error) {
		return s.engine.SetStatus(ctx, id, target, v, reason)
	})
}

// ResendActivationEmail issues a fresh activation link for an approved registration.
func (s *Service) ResendActivationEmail(ctx context.Context, id string) (*Response, error) {
	reg, err := s.engine.Resend(ctx, id)
	return s.respond(ctx, reg, "msg_activation_resent", err)
}

// AddNote appends an admin note.
func (s *Service) AddNote(ctx context.Context, id, note string, version *int64) (*Response, error) {
	return s.withVersion(ctx, id, version, "msg_note_added", func(v int64) (*models.Registration, error) {
		return s.engine.AddNote(ctx, id, v, note)
	})
}

// withVersion resolves an omitted version to the stored one. The action is
// attempted once, so a change in between still reports a conflict.
func (s *Service) withVersion(ctx context.Context, id string, version *int64, msg string, action func(int64) (*models.Registration, error)) (*Response, error) {
	var v int64
	if version != nil {
		v = *version
	} else {
		current, err := s.engine.Get(ctx, id)
		if err != nil {
			return s.respond(ctx, nil, msg, err)
		}
		v = current.Version
	}
	reg, err := action(v)
	return s.respond(ctx, reg, msg, err)
}

func (s *Service) respond(ctx context.Context, reg *models.Registration, msg string, err error) (*Response, error) {
	if err == nil {
		return &Response{Success: true, Message: i18n.T(ctx, msg), Registration: reg}, nil
	}

	code, ok := ErrorCode(err)
	if !ok {
		s.logger.ErrorContext(ctx, "admin action failed", "error", err)
		return nil, err
	}

	resp := &Response{Error: code, Message: i18n.T(ctx, "msg_"+code), Registration: reg}
	if code == CodeDeliveryFailed {
		resp.Success = true
	}
	var verr *approval.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	return resp, nil
}

// ErrorCode maps a workflow error onto its response code. It reports false
// for errors that are not part of the workflow taxonomy.
func ErrorCode(err error) (string, bool) {
	switch {
	case errors.Is(err, approval.ErrDeliveryFailed):
		return CodeDeliveryFailed, true
	case errors.Is(err, approval.ErrValidationFailed), errors.Is(err, query.ErrInvalidFilter):
		return CodeValidationFailed, true
	case errors.Is(err, approval.ErrNotFound):
		return CodeNotFound, true
	case errors.Is(err, approval.ErrConcurrentModification):
		return CodeConcurrentModification, true
	case errors.Is(err, approval.ErrAlreadyFinalized):
		return CodeAlreadyFinalized, true
	case errors.Is(err, approval.ErrInvalidTransition):
		return CodeInvalidTransition, true
	case errors.Is(err, approval.ErrInvalidState):
		return CodeInvalidState, true
	case errors.Is(err, approval.ErrDuplicateEmail):
		return CodeDuplicateEmail, true
	}
	return "", false
}

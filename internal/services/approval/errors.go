// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package approval

import (
	"errors"
	"slices"
	"strings"

	"codeberg.org/oliverandrich/signup-desk/internal/services/notify"
	"github.com/samber/lo"
)

var (
	ErrValidationFailed       = errors.New("validation failed")
	ErrNotFound               = errors.New("registration not found")
	ErrConcurrentModification = errors.New("registration was modified concurrently")
	ErrAlreadyFinalized       = errors.New("registration is already finalized")
	ErrInvalidTransition      = errors.New("status transition not allowed")
	ErrInvalidState           = errors.New("registration is not in a valid state for this action")
	ErrDuplicateEmail         = errors.New("an active registration already uses this email")

	// ErrDeliveryFailed marks a committed change whose notification was not delivered.
	ErrDeliveryFailed = notify.ErrDeliveryFailed
)

// ValidationError reports invalid input per field. It matches ErrValidationFailed.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, problem string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: problem}}
}

func (e *ValidationError) add(field, problem string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = problem
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := lo.Keys(e.Fields)
	slices.Sort(keys)
	parts := lo.Map(keys, func(k string, _ int) string {
		return k + ": " + e.Fields[k]
	})
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package query provides the read-only search over registrations used by the
// admin view.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"codeberg.org/oliverandrich/signup-desk/internal/repository"
	"github.com/samber/lo"
)

// ErrInvalidFilter is returned for a status filter that names no status.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter is a conjunction of optional predicates. Zero values match everything.
type Filter struct {
	Query  string `query:"q"`
	Status string `query:"status"`
}

// Service lists registrations.
type Service struct {
	repo *repository.Repository
}

// New creates a query service.
func New(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

// List returns the registrations matching f, most recent submission first.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Registration, error) {
	var rf repository.RegistrationFilter
	if strings.TrimSpace(f.Status) != "" {
		status, err := models.ParseStatus(f.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
		}
		rf.Status = status
	}

	regs, err := s.repo.ListRegistrations(ctx, rf)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(f.Query))
	if needle == "" {
		return regs, nil
	}
	return lo.Filter(regs, func(r models.Registration, _ int) bool {
		return matches(&r, needle)
	}), nil
}

// Counts returns the number of registrations per status.
func (s *Service) Counts(ctx context.Context) (map[models.Status]int64, error) {
	counts, err := s.repo.CountRegistrationsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	return counts, nil
}

func matches(r *models.Registration, needle string) bool {
	return lo.SomeBy([]string{r.FirstName, r.LastName, r.FullName(), r.Email, r.Company}, func(v string) bool {
		return strings.Contains(strings.ToLower(v), needle)
	})
}

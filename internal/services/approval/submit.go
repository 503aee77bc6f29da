// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package approval

import (
	"context"
	"net/mail"
	"strings"
	"unicode/utf8"

	"codeberg.org/oliverandrich/signup-desk/internal/events"
	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"github.com/google/uuid"
)

const (
	maxNameLength    = 100
	maxEmailLength   = 254
	maxFieldLength   = 200
	maxDetailsLength = 5000
)

// SubmitParams is a signup request as entered by the prospect.
type SubmitParams struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	Company          string `json:"company"`
	PrimaryRole      string `json:"primary_role"`
	OrganizationType string `json:"organization_type"`
	TeamSize         string `json:"team_size"`
	CustomerType     string `json:"customer_type"`
	MainChallenge    string `json:"main_challenge"`
	ChallengeDetails string `json:"challenge_details"`
}

// Submit validates a signup request and stores it as a pending registration.
func (e *Engine) Submit(ctx context.Context, p SubmitParams) (*models.Registration, error) {
	reg, err := p.registration()
	if err != nil {
		return nil, err
	}

	if err := e.repo.CreateRegistration(ctx, reg); err != nil {
		return nil, storeError(err)
	}

	e.logger.InfoContext(ctx, "registration submitted",
		"registration_id", reg.ID, "customer_type", reg.CustomerType)
	e.events.Publish(events.ForRegistration(events.RegistrationSubmitted, reg))
	return reg, nil
}

func (p SubmitParams) registration() (*models.Registration, error) {
	verr := &ValidationError{}

	required := func(field, value string, limit int) string {
		value = strings.TrimSpace(value)
		switch {
		case value == "":
			verr.add(field, "is required")
		case utf8.RuneCountInString(value) > limit:
			verr.add(field, "is too long")
		}
		return value
	}
	optional := func(field, value string, limit int) string {
		value = strings.TrimSpace(value)
		if utf8.RuneCountInString(value) > limit {
			verr.add(field, "is too long")
		}
		return value
	}

	reg := &models.Registration{
		ID:               uuid.NewString(),
		FirstName:        required("first_name", p.FirstName, maxNameLength),
		LastName:         required("last_name", p.LastName, maxNameLength),
		Email:            normalizeEmail(verr, p.Email),
		Company:          optional("company", p.Company, maxFieldLength),
		PrimaryRole:      optional("primary_role", p.PrimaryRole, maxFieldLength),
		OrganizationType: optional("organization_type", p.OrganizationType, maxFieldLength),
		TeamSize:         optional("team_size", p.TeamSize, maxFieldLength),
		CustomerType:     models.CustomerType(strings.ToLower(strings.TrimSpace(p.CustomerType))),
		MainChallenge:    models.MainChallenge(strings.ToLower(strings.TrimSpace(p.MainChallenge))),
		ChallengeDetails: optional("challenge_details", p.ChallengeDetails, maxDetailsLength),
		Status:           models.StatusPending,
	}

	if !reg.CustomerType.IsValid() {
		verr.add("customer_type", "must be consulting or executive")
	}
	if !reg.MainChallenge.IsValid() {
		verr.add("main_challenge", "is not a known challenge")
	}

	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return reg, nil
}

// normalizeEmail accepts a bare address and returns it lower-cased.
func normalizeEmail(verr *ValidationError, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		verr.add("email", "is required")
		return ""
	}
	if len(raw) > maxEmailLength {
		verr.add("email", "is too long")
		return ""
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Name != "" || addr.Address != raw {
		verr.add("email", "is not a valid email address")
		return ""
	}
	return strings.ToLower(addr.Address)
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"strings"
	"time"
)

// CustomerType classifies what kind of customer signed up.
type CustomerType string

const (
	CustomerConsulting CustomerType = "consulting"
	CustomerExecutive  CustomerType = "executive"
)

// IsValid reports whether t is a known customer type.
func (t CustomerType) IsValid() bool {
	return t == CustomerConsulting || t == CustomerExecutive
}

// MainChallenge is the enumerated main challenge picked on the signup form.
type MainChallenge string

const (
	ChallengeClientAcquisition  MainChallenge = "client_acquisition"
	ChallengeScalingOperations  MainChallenge = "scaling_operations"
	ChallengeTeamPerformance    MainChallenge = "team_performance"
	ChallengeStrategicPlanning  MainChallenge = "strategic_planning"
	ChallengeTechnologyAdoption MainChallenge = "technology_adoption"
	ChallengeOther              MainChallenge = "other"
)

// IsValid reports whether c is a known challenge.
func (c MainChallenge) IsValid() bool {
	switch c {
	case ChallengeClientAcquisition, ChallengeScalingOperations, ChallengeTeamPerformance,
		ChallengeStrategicPlanning, ChallengeTechnologyAdoption, ChallengeOther:
		return true
	}
	return false
}

// Registration is one signup submission awaiting an administrative decision.
type Registration struct { //nolint:govet // fieldalignment: readability over optimization
	ID               string        `db:"id" json:"id"`
	FirstName        string        `db:"first_name" json:"first_name"`
	LastName         string        `db:"last_name" json:"last_name"`
	Email            string        `db:"email" json:"email"`
	Company          string        `db:"company" json:"company"`
	PrimaryRole      string        `db:"primary_role" json:"primary_role"`
	OrganizationType string        `db:"organization_type" json:"organization_type"`
	TeamSize         string        `db:"team_size" json:"team_size"`
	CustomerType     CustomerType  `db:"customer_type" json:"customer_type"`
	MainChallenge    MainChallenge `db:"main_challenge" json:"main_challenge"`
	ChallengeDetails string        `db:"challenge_details" json:"challenge_details"`
	Status           Status        `db:"status" json:"status"`
	AdminNotes       string        `db:"admin_notes" json:"admin_notes"`
	Version          int64         `db:"version" json:"version"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
	ActivatedAt      *time.Time    `db:"activated_at" json:"activated_at,omitempty"`
}

// FullName joins first and last name.
func (r *Registration) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// IsActivated reports whether the customer completed account activation.
func (r *Registration) IsActivated() bool {
	return r.ActivatedAt != nil
}

// AppendNote appends a timestamped entry to the admin notes.
// Existing notes are never rewritten.
func (r *Registration) AppendNote(at time.Time, note string) {
	entry := at.UTC().Format(time.RFC3339) + " " + strings.TrimSpace(note)
	if r.AdminNotes == "" {
		r.AdminNotes = entry
		return
	}
	r.AdminNotes += "\n\n" + entry
}

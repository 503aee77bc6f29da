// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// NotificationKind is the type of email sent to a customer.
type NotificationKind string

const (
	KindActivation NotificationKind = "activation"
	KindRejection  NotificationKind = "rejection"
)

// AttemptOutcome is the result of one delivery attempt.
type AttemptOutcome string

const (
	OutcomeSent    AttemptOutcome = "sent"
	OutcomeFailed  AttemptOutcome = "failed"
	OutcomePending AttemptOutcome = "pending"
)

// NotificationAttempt is an append-only audit record of one delivery attempt.
type NotificationAttempt struct { //nolint:govet // fieldalignment: readability over optimization
	ID             int64            `db:"id" json:"id"`
	RegistrationID string           `db:"registration_id" json:"registration_id"`
	Kind           NotificationKind `db:"kind" json:"kind"`
	AttemptNumber  int              `db:"attempt_number" json:"attempt_number"`
	Outcome        AttemptOutcome   `db:"outcome" json:"outcome"`
	ErrorDetail    *string          `db:"error_detail" json:"error_detail,omitempty"`
	ProviderStatus *int             `db:"provider_status" json:"provider_status,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

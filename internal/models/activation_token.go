// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// ActivationToken stores a hashed single-use activation credential.
type ActivationToken struct { //nolint:govet // fieldalignment: readability over optimization
	TokenHash      string     `db:"token_hash" json:"-"` // SHA256 hash
	RegistrationID string     `db:"registration_id" json:"registration_id"`
	IssuedAt       time.Time  `db:"issued_at" json:"issued_at"`
	ExpiresAt      time.Time  `db:"expires_at" json:"expires_at"`
	ConsumedAt     *time.Time `db:"consumed_at" json:"consumed_at,omitempty"`
	InvalidatedAt  *time.Time `db:"invalidated_at" json:"invalidated_at,omitempty"`
}

// IsConsumed reports whether the token was already used.
func (t *ActivationToken) IsConsumed() bool {
	return t.ConsumedAt != nil
}

// IsExpired reports whether the token was superseded or its TTL elapsed at now.
func (t *ActivationToken) IsExpired(now time.Time) bool {
	return t.InvalidatedAt != nil || !now.Before(t.ExpiresAt)
}

// TokenHead is the current-token pointer of a registration.
type TokenHead struct {
	RegistrationID string `db:"registration_id"`
	TokenHash      string `db:"token_hash"`
	Generation     int64  `db:"generation"`
}

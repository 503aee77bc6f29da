// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Account is the customer account created by a successful activation.
type Account struct {
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	Email          string    `db:"email" json:"email"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	ID             int64     `db:"id" json:"id"`
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/signup-desk/internal/models"
)

// GetAccountByRegistration retrieves the account created for a registration.
func (r *Repository) GetAccountByRegistration(ctx context.Context, registrationID string) (*models.Account, error) {
	var account models.Account
	err := r.db.GetContext(ctx, &account,
		`SELECT id, registration_id, email, password_hash, created_at FROM accounts WHERE registration_id = ?`,
		registrationID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &account, nil
}

// CountAccounts returns the number of activated accounts.
func (r *Repository) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM accounts`)
	return count, err
}

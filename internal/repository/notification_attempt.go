// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"

	"codeberg.org/oliverandrich/signup-desk/internal/models"
)

// CreateNotificationAttempt appends an attempt record. The attempt number is
// assigned as the next number for the registration and kind.
func (r *Repository) CreateNotificationAttempt(ctx context.Context, a *models.NotificationAttempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.timestamp()
	}
	a.CreatedAt = a.CreatedAt.UTC()

	row := r.db.QueryRowxContext(ctx,
		`INSERT INTO notification_attempts
			(registration_id, kind, attempt_number, outcome, error_detail, provider_status, created_at)
		 SELECT ?, ?, COALESCE(MAX(attempt_number), 0) + 1, ?, ?, ?, ?
		 FROM notification_attempts WHERE registration_id = ? AND kind = ?
		 RETURNING id, attempt_number`,
		a.RegistrationID, a.Kind, a.Outcome, a.ErrorDetail, a.ProviderStatus, a.CreatedAt,
		a.RegistrationID, a.Kind)
	if err := row.Scan(&a.ID, &a.AttemptNumber); err != nil {
		return fmt.Errorf("insert notification attempt: %w", err)
	}
	return nil
}

// ListNotificationAttempts returns all attempts for a registration in insertion order.
func (r *Repository) ListNotificationAttempts(ctx context.Context, registrationID string) ([]models.NotificationAttempt, error) {
	attempts := []models.NotificationAttempt{}
	err := r.db.SelectContext(ctx, &attempts,
		`SELECT id, registration_id, kind, attempt_number, outcome, error_detail, provider_status, created_at
		 FROM notification_attempts WHERE registration_id = ? ORDER BY id ASC`,
		registrationID)
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

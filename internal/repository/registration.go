// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"strings"

	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"github.com/vinovest/sqlx"
)

// RegistrationFilter narrows ListRegistrations. Zero values match everything.
type RegistrationFilter struct {
	Status models.Status
}

// Mutation changes the workflow fields of a registration inside a conditional update.
// Returning an error aborts the update without writing.
type Mutation func(reg *models.Registration) error

const selectRegistration = `SELECT id, first_name, last_name, email, company, primary_role, organization_type,
	team_size, customer_type, main_challenge, challenge_details, status, admin_notes, version,
	created_at, updated_at, activated_at FROM registrations`

// CreateRegistration inserts a new registration at version 1.
func (r *Repository) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	now := r.timestamp()
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = now
	}
	reg.CreatedAt = reg.CreatedAt.UTC()
	reg.UpdatedAt = reg.CreatedAt
	reg.Version = 1
	if reg.Status == "" {
		reg.Status = models.StatusPending
	}

	_, err := r.db.NamedExecContext(ctx, `INSERT INTO registrations (
		id, first_name, last_name, email, company, primary_role, organization_type, team_size,
		customer_type, main_challenge, challenge_details, status, admin_notes, version, created_at, updated_at
	) VALUES (
		:id, :first_name, :last_name, :email, :company, :primary_role, :organization_type, :team_size,
		:customer_type, :main_challenge, :challenge_details, :status, :admin_notes, :version, :created_at, :updated_at
	)`, reg)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

// GetRegistration retrieves a registration by ID.
func (r *Repository) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	return getRegistration(ctx, r.db, id)
}

func getRegistration(ctx context.Context, q sqlx.QueryerContext, id string) (*models.Registration, error) {
	var reg models.Registration
	if err := sqlx.GetContext(ctx, q, &reg, selectRegistration+` WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &reg, nil
}

// ListRegistrations returns registrations ordered by submission time (newest first).
func (r *Repository) ListRegistrations(ctx context.Context, filter RegistrationFilter) ([]models.Registration, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := selectRegistration
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	regs := []models.Registration{}
	if err := r.db.SelectContext(ctx, &regs, query, args...); err != nil {
		return nil, err
	}
	return regs, nil
}

// ConditionalUpdateRegistration applies mutate to the registration only if its stored
// version still equals expectedVersion. On success the version is incremented and
// updated_at is stamped. Only status and admin_notes are written.
func (r *Repository) ConditionalUpdateRegistration(ctx context.Context, id string, expectedVersion int64, mutate Mutation) (*models.Registration, error) {
	var updated *models.Registration

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getRegistration(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return ErrConcurrentModification
		}

		next := *current
		if err := mutate(&next); err != nil {
			return err
		}
		next.Version = current.Version + 1
		next.UpdatedAt = r.timestamp()

		res, err := tx.ExecContext(ctx,
			`UPDATE registrations SET status = ?, admin_notes = ?, version = ?, updated_at = ?
			 WHERE id = ? AND version = ?`,
			next.Status, next.AdminNotes, next.Version, next.UpdatedAt, id, expectedVersion)
		if err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		n, err := affected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrConcurrentModification
		}

		// Identity and profile are immutable, return what is stored.
		next.ID, next.Email, next.CreatedAt = current.ID, current.Email, current.CreatedAt
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CountRegistrationsByStatus returns the number of registrations per status.
func (r *Repository) CountRegistrationsByStatus(ctx context.Context) (map[models.Status]int64, error) {
	rows := []struct {
		Status models.Status `db:"status"`
		Count  int64         `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM registrations GROUP BY status`); err != nil {
		return nil, err
	}

	counts := make(map[models.Status]int64, len(models.AllStatuses()))
	for _, s := range models.AllStatuses() {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"github.com/vinovest/sqlx"
)

const selectActivationToken = `SELECT token_hash, registration_id, issued_at, expires_at, consumed_at, invalidated_at
	FROM activation_tokens`

// GetActivationToken retrieves an activation token by hash.
func (r *Repository) GetActivationToken(ctx context.Context, tokenHash string) (*models.ActivationToken, error) {
	var token models.ActivationToken
	if err := r.db.GetContext(ctx, &token, selectActivationToken+` WHERE token_hash = ?`, tokenHash); err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}

// ListActivationTokens returns all tokens ever issued for a registration, oldest first.
func (r *Repository) ListActivationTokens(ctx context.Context, registrationID string) ([]models.ActivationToken, error) {
	tokens := []models.ActivationToken{}
	err := r.db.SelectContext(ctx, &tokens,
		selectActivationToken+` WHERE registration_id = ? ORDER BY issued_at ASC, rowid ASC`, registrationID)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// GetTokenHead retrieves the current-token pointer of a registration.
func (r *Repository) GetTokenHead(ctx context.Context, registrationID string) (*models.TokenHead, error) {
	var head models.TokenHead
	err := r.db.GetContext(ctx, &head,
		`SELECT registration_id, token_hash, generation FROM activation_token_heads WHERE registration_id = ?`,
		registrationID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &head, nil
}

// RotateActivationToken makes token the single live token of its registration.
// The head pointer is compare-and-swapped against expectedGeneration (0 means no
// head exists yet); a lost race returns ErrConcurrentModification and writes nothing.
// Every previously live token is invalidated in the same transaction.
func (r *Repository) RotateActivationToken(ctx context.Context, token *models.ActivationToken, expectedGeneration int64) error {
	now := r.timestamp()

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if expectedGeneration == 0 {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO activation_token_heads (registration_id, token_hash, generation) VALUES (?, ?, 1)`,
				token.RegistrationID, token.TokenHash)
			if isUniqueViolation(err) {
				return ErrConcurrentModification
			}
			if err != nil {
				return fmt.Errorf("insert token head: %w", err)
			}
		} else {
			res, err := tx.ExecContext(ctx,
				`UPDATE activation_token_heads SET token_hash = ?, generation = generation + 1
				 WHERE registration_id = ? AND generation = ?`,
				token.TokenHash, token.RegistrationID, expectedGeneration)
			if err != nil {
				return fmt.Errorf("update token head: %w", err)
			}
			n, err := affected(res)
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrConcurrentModification
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE activation_tokens SET invalidated_at = ?
			 WHERE registration_id = ? AND consumed_at IS NULL AND invalidated_at IS NULL`,
			now, token.RegistrationID); err != nil {
			return fmt.Errorf("invalidate previous tokens: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO activation_tokens (token_hash, registration_id, issued_at, expires_at) VALUES (?, ?, ?, ?)`,
			token.TokenHash, token.RegistrationID, token.IssuedAt.UTC(), token.ExpiresAt.UTC()); err != nil {
			return fmt.Errorf("insert activation token: %w", err)
		}
		return nil
	})
}

// consumeActivationToken flips consumed_at if the token is still live at the given time.
func consumeActivationToken(ctx context.Context, tx sqlx.ExecerContext, tokenHash string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE activation_tokens SET consumed_at = ?
		 WHERE token_hash = ? AND consumed_at IS NULL AND invalidated_at IS NULL AND expires_at > ?`,
		at, tokenHash, at)
	if err != nil {
		return fmt.Errorf("consume activation token: %w", err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTokenNotLive
	}
	return nil
}

// ConsumeActivationToken marks a live token as consumed.
// Returns ErrTokenNotLive when it was consumed, invalidated or expired first.
func (r *Repository) ConsumeActivationToken(ctx context.Context, tokenHash string) error {
	return consumeActivationToken(ctx, r.db, tokenHash, r.timestamp())
}

// ActivateAccount consumes the token, creates the account and stamps the
// registration's activated_at in one transaction.
func (r *Repository) ActivateAccount(ctx context.Context, tokenHash string, account *models.Account) error {
	now := r.timestamp()

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := consumeActivationToken(ctx, tx, tokenHash, now); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE registrations SET activated_at = ? WHERE id = ? AND activated_at IS NULL`,
			now, account.RegistrationID)
		if err != nil {
			return fmt.Errorf("mark registration activated: %w", err)
		}
		n, err := affected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrAlreadyActivated
		}

		account.CreatedAt = now
		row := tx.QueryRowxContext(ctx,
			`INSERT INTO accounts (registration_id, email, password_hash, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
			account.RegistrationID, account.Email, account.PasswordHash, account.CreatedAt)
		if err := row.Scan(&account.ID); err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyActivated
			}
			return fmt.Errorf("insert account: %w", err)
		}
		return nil
	})
}

// InvalidateExpiredActivationTokens invalidates live tokens whose TTL elapsed.
// Returns the number of tokens affected.
func (r *Repository) InvalidateExpiredActivationTokens(ctx context.Context) (int64, error) {
	now := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`UPDATE activation_tokens SET invalidated_at = ?
		 WHERE consumed_at IS NULL AND invalidated_at IS NULL AND expires_at <= ?`,
		now, now)
	if err != nil {
		return 0, err
	}
	return affected(res)
}

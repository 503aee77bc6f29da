// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package activation issues, consumes and redeems single-use account activation tokens.
package activation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"codeberg.org/oliverandrich/signup-desk/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTTL is how long an activation token stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// maxIssueTries bounds how often Issue retries after losing the head CAS.
const maxIssueTries = 5

var (
	ErrTokenInvalid     = errors.New("activation token is invalid")
	ErrTokenExpired     = errors.New("activation token has expired")
	ErrTokenAlreadyUsed = errors.New("activation token has already been used")
	ErrIssueConflict    = errors.New("activation token issue kept conflicting")
	ErrAlreadyActivated = errors.New("account is already activated")
	ErrNotApproved      = errors.New("registration is not approved")
	ErrWeakPassword     = errors.New("password does not meet requirements")
)

// Issuer manages activation tokens. Plaintext tokens are only ever returned
// to the caller, the store keeps their hashes.
type Issuer struct {
	repo       *repository.Repository
	logger     *slog.Logger
	now        func() time.Time
	policy     PasswordPolicy
	ttl        time.Duration
	bcryptCost int
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithTTL sets the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithClock sets the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithPasswordPolicy replaces the default password policy.
func WithPasswordPolicy(p PasswordPolicy) Option {
	return func(i *Issuer) { i.policy = p }
}

// WithBcryptCost sets the bcrypt cost for account passwords.
func WithBcryptCost(cost int) Option {
	return func(i *Issuer) { i.bcryptCost = cost }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Issuer) { i.logger = logger }
}

// NewIssuer creates an Issuer.
func NewIssuer(repo *repository.Repository, opts ...Option) *Issuer {
	i := &Issuer{
		repo:       repo,
		logger:     slog.Default(),
		now:        time.Now,
		policy:     DefaultPasswordPolicy(),
		ttl:        DefaultTTL,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a fresh token for the registration and makes it the only live one.
func (i *Issuer) Issue(ctx context.Context, registrationID string) (string, error) {
	if _, err := i.repo.GetRegistration(ctx, registrationID); err != nil {
		return "", fmt.Errorf("load registration: %w", err)
	}

	plaintext, hash, err := GenerateToken()
	if err != nil {
		return "", err
	}

	for try := 1; try <= maxIssueTries; try++ {
		var generation int64
		head, err := i.repo.GetTokenHead(ctx, registrationID)
		switch {
		case err == nil:
			generation = head.Generation
		case errors.Is(err, repository.ErrNotFound):
		default:
			return "", fmt.Errorf("read token head: %w", err)
		}

		issuedAt := i.now().UTC()
		token := &models.ActivationToken{
			TokenHash:      hash,
			RegistrationID: registrationID,
			IssuedAt:       issuedAt,
			ExpiresAt:      issuedAt.Add(i.ttl),
		}

		err = i.repo.RotateActivationToken(ctx, token, generation)
		if err == nil {
			i.logger.DebugContext(ctx, "activation token issued",
				"registration_id", registrationID, "generation", generation+1)
			return plaintext, nil
		}
		if !errors.Is(err, repository.ErrConcurrentModification) {
			return "", fmt.Errorf("rotate activation token: %w", err)
		}
		i.logger.DebugContext(ctx, "activation token issue lost race, retrying",
			"registration_id", registrationID, "try", try)
	}

	return "", ErrIssueConflict
}

// Consume redeems a token exactly once.
func (i *Issuer) Consume(ctx context.Context, token string) (*models.ActivationToken, error) {
	hash := HashToken(token)

	stored, err := i.lookup(ctx, hash)
	if err != nil {
		return nil, err
	}

	err = i.repo.ConsumeActivationToken(ctx, hash)
	if errors.Is(err, repository.ErrTokenNotLive) {
		return nil, i.reclassify(ctx, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("consume activation token: %w", err)
	}

	now := i.now().UTC()
	stored.ConsumedAt = &now
	return stored, nil
}

// Activate redeems the token and creates the customer's account with password.
func (i *Issuer) Activate(ctx context.Context, token, password string) (*models.Account, error) {
	hash := HashToken(token)

	stored, err := i.lookup(ctx, hash)
	if err != nil {
		return nil, err
	}

	reg, err := i.repo.GetRegistration(ctx, stored.RegistrationID)
	if err != nil {
		return nil, fmt.Errorf("load registration: %w", err)
	}
	if reg.IsActivated() {
		return nil, ErrAlreadyActivated
	}
	if reg.Status != models.StatusApproved {
		return nil, ErrNotApproved
	}

	if err := i.policy.Check(password, reg.Email, emailLocalPart(reg.Email), reg.FirstName, reg.LastName); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), i.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &models.Account{
		RegistrationID: reg.ID,
		Email:          reg.Email,
		PasswordHash:   string(passwordHash),
	}
	err = i.repo.ActivateAccount(ctx, hash, account)
	switch {
	case errors.Is(err, repository.ErrTokenNotLive):
		return nil, i.reclassify(ctx, hash)
	case errors.Is(err, repository.ErrAlreadyActivated):
		return nil, ErrAlreadyActivated
	case err != nil:
		return nil, fmt.Errorf("activate account: %w", err)
	}

	i.logger.InfoContext(ctx, "account activated", "registration_id", reg.ID, "account_id", account.ID)
	return account, nil
}

// PruneExpired invalidates live tokens past their expiry. Rows are kept for audit.
func (i *Issuer) PruneExpired(ctx context.Context) (int64, error) {
	n, err := i.repo.InvalidateExpiredActivationTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("invalidate expired tokens: %w", err)
	}
	return n, nil
}

// lookup loads a token and fails unless it is live right now.
func (i *Issuer) lookup(ctx context.Context, hash string) (*models.ActivationToken, error) {
	stored, err := i.repo.GetActivationToken(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("load activation token: %w", err)
	}
	if err := i.classify(stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// reclassify explains why a conditional consume matched no row.
func (i *Issuer) reclassify(ctx context.Context, hash string) error {
	stored, err := i.repo.GetActivationToken(ctx, hash)
	if err != nil {
		return fmt.Errorf("reload activation token: %w", err)
	}
	if err := i.classify(stored); err != nil {
		return err
	}
	// Expired between our clock and the store's.
	return ErrTokenExpired
}

func (i *Issuer) classify(t *models.ActivationToken) error {
	switch {
	case t.IsConsumed():
		return ErrTokenAlreadyUsed
	case t.IsExpired(i.now()):
		return ErrTokenExpired
	}
	return nil
}

func emailLocalPart(addr string) string {
	local, _, _ := strings.Cut(addr, "@")
	return local
}

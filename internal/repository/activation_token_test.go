// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"codeberg.org/oliverandrich/signup-desk/internal/repository"
	"codeberg.org/oliverandrich/signup-desk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToken(regID, hash string, issued time.Time) *models.ActivationToken {
	return &models.ActivationToken{
		TokenHash:      hash,
		RegistrationID: regID,
		IssuedAt:       issued,
		ExpiresAt:      issued.Add(7 * 24 * time.Hour),
	}
}

func TestRotateActivationToken_First(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")

	err := repo.RotateActivationToken(ctx, newToken(reg.ID, "hash-1", time.Now()), 0)
	require.NoError(t, err)

	head, err := repo.GetTokenHead(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-1", head.TokenHash)
	assert.Equal(t, int64(1), head.Generation)

	token, err := repo.GetActivationToken(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, token.RegistrationID)
	assert.Nil(t, token.ConsumedAt)
	assert.Nil(t, token.InvalidatedAt)
}

func TestRotateActivationToken_InvalidatesPrevious(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")
	now := time.Now()

	require.NoError(t, repo.RotateActivationToken(ctx, newToken(reg.ID, "hash-1", now), 0))
	require.NoError(t, repo.RotateActivationToken(ctx, newToken(reg.ID, "hash-2", now.Add(time.Second)), 1))

	head, err := repo.GetTokenHead(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-2", head.TokenHash)
	assert.Equal(t, int64(2), head.Generation)

	tokens, err := repo.ListActivationTokens(ctx, reg.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "hash-1", tokens[0].TokenHash)
	assert.NotNil(t, tokens[0].InvalidatedAt)
	assert.Nil(t, tokens[1].InvalidatedAt)
}

func TestRotateActivationToken_StaleGeneration(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")
	now := time.Now()

	require.NoError(t, repo.RotateActivationToken(ctx, newToken(reg.ID, "hash-1", now), 0))

	err := repo.RotateActivationToken(ctx, newToken(reg.ID, "hash-2", now), 0)
	assert.ErrorIs(t, err, repository.ErrConcurrentModification)

	err = repo.RotateActivationToken(ctx, newToken(reg.ID, "hash-3", now), 5)
	assert.ErrorIs(t, err, repository.ErrConcurrentModification)

	tokens, err := repo.ListActivationTokens(ctx, reg.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 1, "lost races write nothing")
	assert.Nil(t, tokens[0].InvalidatedAt)
}

func TestGetTokenHead_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetTokenHead(context.Background(), "missing")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeActivationToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")
	require.NoError(t, repo.RotateActivationToken(ctx, newToken(reg.ID, "hash-1", time.Now()), 0))

	require.NoError(t, repo.ConsumeActivationToken(ctx, "hash-1"))

	token, err := repo.GetActivationToken(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, token.IsConsumed())

	err = repo.ConsumeActivationToken(ctx, "hash-1")
	assert.ErrorIs(t, err, repository.ErrTokenNotLive)
}

func TestConsumeActivationToken_Invalidated(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")
	now := time.Now()
	require.NoError(t, repo.RotateActivationToken(ctx, newToken(reg.ID, "hash-1", now), 0))
	require.NoError(t, repo.RotateActivationToken(ctx, newToken(reg.ID, "hash-2", now), 1))

	err := repo.ConsumeActivationToken(ctx, "hash-1")

	assert.ErrorIs(t, err, repository.ErrTokenNotLive)
}

func TestConsumeActivationToken_Concurrent(t *testing.T) {
	_, repo := testutil.NewFileTestDB(t)
	ctx := context.Background()
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")
	require.NoError(t, repo.RotateActivationToken(ctx, newToken(reg.ID, "hash-1", time.Now()), 0))

	const consumers = 8
	errs := make(chan error, consumers)
	for range consumers {
		go func() { errs <- repo.ConsumeActivationToken(ctx, "hash-1") }()
	}

	var ok int
	for range consumers {
		err := <-errs
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, repository.ErrTokenNotLive)
	}
	assert.Equal(t, 1, ok)
}

func TestActivateAccount(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")
	reg = testutil.SetStatus(t, repo, reg, models.StatusApproved)
	require.NoError(t, repo.RotateActivationToken(ctx, newToken(reg.ID, "hash-1", time.Now()), 0))

	account := &models.Account{RegistrationID: reg.ID, Email: reg.Email, PasswordHash: "bcrypt-hash"}
	require.NoError(t, repo.ActivateAccount(ctx, "hash-1", account))
	assert.NotZero(t, account.ID)

	stored, err := repo.GetRegistration(ctx, reg.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActivated())
	assert.Equal(t, reg.Version, stored.Version, "activation does not bump the workflow version")

	acc, err := repo.GetAccountByRegistration(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", acc.Email)
	assert.Equal(t, "bcrypt-hash", acc.PasswordHash)

	count, err := repo.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestActivateAccount_TokenNotLiveRollsBack(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")
	require.NoError(t, repo.RotateActivationToken(ctx, newToken(reg.ID, "hash-1", time.Now()), 0))
	require.NoError(t, repo.ConsumeActivationToken(ctx, "hash-1"))

	err := repo.ActivateAccount(ctx, "hash-1", &models.Account{RegistrationID: reg.ID, Email: reg.Email, PasswordHash: "x"})

	assert.ErrorIs(t, err, repository.ErrTokenNotLive)
	_, err = repo.GetAccountByRegistration(ctx, reg.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestActivateAccount_AlreadyActivated(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")
	now := time.Now()
	require.NoError(t, repo.RotateActivationToken(ctx, newToken(reg.ID, "hash-1", now), 0))
	require.NoError(t, repo.ActivateAccount(ctx, "hash-1", &models.Account{RegistrationID: reg.ID, Email: reg.Email, PasswordHash: "x"}))

	require.NoError(t, repo.RotateActivationToken(ctx, newToken(reg.ID, "hash-2", now), 1))
	err := repo.ActivateAccount(ctx, "hash-2", &models.Account{RegistrationID: reg.ID, Email: reg.Email, PasswordHash: "y"})

	assert.ErrorIs(t, err, repository.ErrAlreadyActivated)
	token, err := repo.GetActivationToken(ctx, "hash-2")
	require.NoError(t, err)
	assert.False(t, token.IsConsumed(), "failed activation leaves the token live")
}

func TestInvalidateExpiredActivationTokens(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := testutil.NewTestRegistration(t, repo, "old@example.com")
	live := testutil.NewTestRegistration(t, repo, "new@example.com")

	old := newToken(expired.ID, "hash-old", now.Add(-8*24*time.Hour))
	require.NoError(t, repo.RotateActivationToken(ctx, old, 0))
	require.NoError(t, repo.RotateActivationToken(ctx, newToken(live.ID, "hash-new", now), 0))

	n, err := repo.InvalidateExpiredActivationTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	token, err := repo.GetActivationToken(ctx, "hash-old")
	require.NoError(t, err)
	assert.NotNil(t, token.InvalidatedAt)

	token, err = repo.GetActivationToken(ctx, "hash-new")
	require.NoError(t, err)
	assert.Nil(t, token.InvalidatedAt)

	n, err = repo.InvalidateExpiredActivationTokens(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWithClock(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	fixed := time.Date(2030, 6, 1, 9, 0, 0, 0, time.UTC)
	clocked := repo.WithClock(func() time.Time { return fixed })

	reg := testutil.RegistrationFixture("ada@example.com")
	require.NoError(t, clocked.CreateRegistration(context.Background(), reg))

	assert.True(t, reg.CreatedAt.Equal(fixed))
	assert.False(t, errors.Is(repo.Ping(context.Background()), repository.ErrNotFound))
}

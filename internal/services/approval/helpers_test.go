// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package approval_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/signup-desk/internal/events"
	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"codeberg.org/oliverandrich/signup-desk/internal/repository"
	"codeberg.org/oliverandrich/signup-desk/internal/services/activation"
	"codeberg.org/oliverandrich/signup-desk/internal/services/approval"
	"codeberg.org/oliverandrich/signup-desk/internal/services/notify"
	"codeberg.org/oliverandrich/signup-desk/internal/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	repo   *repository.Repository
	mailer *testutil.FakeMailer
	issuer *activation.Issuer
	hub    *events.Hub
	engine *approval.Engine
}

func newHarnessWithRepo(repo *repository.Repository, opts ...approval.Option) *harness {
	h := &harness{
		repo:   repo,
		mailer: testutil.NewFakeMailer(),
		issuer: activation.NewIssuer(repo, activation.WithBcryptCost(bcrypt.MinCost)),
		hub:    events.NewHub(),
	}
	dispatcher := notify.New(repo, h.mailer, notify.Config{
		LinkBaseURL:   "https://signup.example.com",
		TokenTTL:      activation.DefaultTTL,
		MaxAttempts:   3,
		BackoffBase:   time.Millisecond,
		BackoffFactor: 4,
	}, nil)
	h.engine = approval.New(repo, h.issuer, dispatcher, append([]approval.Option{approval.WithEvents(h.hub)}, opts...)...)
	return h
}

func newHarness(t *testing.T, opts ...approval.Option) *harness {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	return newHarnessWithRepo(repo, opts...)
}

func (h *harness) submit(t *testing.T, email string) *models.Registration {
	t.Helper()
	reg, err := h.engine.Submit(context.Background(), approval.SubmitParams{
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         email,
		Company:       "Analytical Engines Ltd",
		CustomerType:  "consulting",
		MainChallenge: "client_acquisition",
	})
	require.NoError(t, err)
	return reg
}

func (h *harness) liveTokens(t *testing.T, regID string) int {
	t.Helper()
	tokens, err := h.repo.ListActivationTokens(context.Background(), regID)
	require.NoError(t, err)
	now := time.Now()
	live := 0
	for _, tok := range tokens {
		if !tok.IsConsumed() && !tok.IsExpired(now) {
			live++
		}
	}
	return live
}

func (h *harness) attempts(t *testing.T, regID string) []models.NotificationAttempt {
	t.Helper()
	attempts, err := h.repo.ListNotificationAttempts(context.Background(), regID)
	require.NoError(t, err)
	return attempts
}

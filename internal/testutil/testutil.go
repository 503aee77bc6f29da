// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/signup-desk/internal/database"
	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"codeberg.org/oliverandrich/signup-desk/internal/repository"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewFileTestDB creates a file-backed SQLite database in a temp dir.
// Use it for tests that need several concurrent connections.
func NewFileTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// RegistrationFixture returns a valid pending registration that is not yet stored.
func RegistrationFixture(email string) *models.Registration {
	local := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		local = email[:i]
	}
	return &models.Registration{
		ID:               uuid.NewString(),
		FirstName:        "Test",
		LastName:         local,
		Email:            email,
		Company:          "Example Corp",
		PrimaryRole:      "Managing Partner",
		OrganizationType: "consultancy",
		TeamSize:         "1-10",
		CustomerType:     models.CustomerConsulting,
		MainChallenge:    models.ChallengeClientAcquisition,
		ChallengeDetails: "We need more qualified leads.",
		Status:           models.StatusPending,
	}
}

// NewTestRegistration stores a registration fixture with the given email.
func NewTestRegistration(t *testing.T, repo *repository.Repository, email string) *models.Registration {
	t.Helper()
	reg := RegistrationFixture(email)
	require.NoError(t, repo.CreateRegistration(context.Background(), reg))
	return reg
}

// NewTestRegistrationAt stores a registration fixture submitted at the given time.
func NewTestRegistrationAt(t *testing.T, repo *repository.Repository, email string, at time.Time) *models.Registration {
	t.Helper()
	reg := RegistrationFixture(email)
	reg.CreatedAt = at
	require.NoError(t, repo.CreateRegistration(context.Background(), reg))
	return reg
}

// SetStatus forces a registration into status through the conditional write path.
func SetStatus(t *testing.T, repo *repository.Repository, reg *models.Registration, status models.Status) *models.Registration {
	t.Helper()
	updated, err := repo.ConditionalUpdateRegistration(context.Background(), reg.ID, reg.Version,
		func(r *models.Registration) error {
			r.Status = status
			return nil
		})
	require.NoError(t, err)
	return updated
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package query_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"codeberg.org/oliverandrich/signup-desk/internal/repository"
	"codeberg.org/oliverandrich/signup-desk/internal/services/query"
	"codeberg.org/oliverandrich/signup-desk/internal/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, repo *repository.Repository, first, last, email, company string, at time.Time) *models.Registration {
	t.Helper()
	reg := testutil.RegistrationFixture(email)
	reg.FirstName = first
	reg.LastName = last
	reg.Company = company
	reg.CreatedAt = at
	require.NoError(t, repo.CreateRegistration(context.Background(), reg))
	return reg
}

func emails(regs []models.Registration) []string {
	return lo.Map(regs, func(r models.Registration, _ int) string { return r.Email })
}

func TestList(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := query.New(repo)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	seed(t, repo, "Ada", "Lovelace", "ada@engines.io", "Analytical Engines", base)
	grace := seed(t, repo, "Grace", "Hopper", "grace@navy.mil", "US Navy", base.Add(time.Hour))
	seed(t, repo, "Jörg", "Müller", "joerg@example.de", "Straße & Söhne", base.Add(2*time.Hour))
	testutil.SetStatus(t, repo, grace, models.StatusContacted)

	tests := []struct {
		name   string
		filter query.Filter
		want   []string
	}{
		{"no filter newest first", query.Filter{}, []string{"joerg@example.de", "grace@navy.mil", "ada@engines.io"}},
		{"first name", query.Filter{Query: "ada"}, []string{"ada@engines.io"}},
		{"last name case-insensitive", query.Filter{Query: "HOPPER"}, []string{"grace@navy.mil"}},
		{"full name", query.Filter{Query: "ada love"}, []string{"ada@engines.io"}},
		{"email domain", query.Filter{Query: "navy.mil"}, []string{"grace@navy.mil"}},
		{"company", query.Filter{Query: "engines"}, []string{"ada@engines.io"}},
		{"unicode fold", query.Filter{Query: "STRASSE"}, nil},
		{"unicode lower", query.Filter{Query: "MÜLLER"}, []string{"joerg@example.de"}},
		{"status only", query.Filter{Status: "contacted"}, []string{"grace@navy.mil"}},
		{"status and text", query.Filter{Query: "ada", Status: "contacted"}, nil},
		{"status and matching text", query.Filter{Query: "grace", Status: " Contacted "}, []string{"grace@navy.mil"}},
		{"no match", query.Filter{Query: "nobody"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regs, err := svc.List(ctx, tt.filter)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, regs)
				return
			}
			assert.Equal(t, tt.want, emails(regs))
		})
	}
}

func TestList_InvalidStatus(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := query.New(repo).List(context.Background(), query.Filter{Status: "archived"})

	assert.ErrorIs(t, err, query.ErrInvalidFilter)
}

func TestList_SameTimestampOrderedByID(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	at := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	a := seed(t, repo, "A", "One", "a@example.com", "", at)
	b := seed(t, repo, "B", "Two", "b@example.com", "", at)

	regs, err := query.New(repo).List(context.Background(), query.Filter{})
	require.NoError(t, err)
	require.Len(t, regs, 2)

	first, second := a, b
	if a.ID < b.ID {
		first, second = b, a
	}
	assert.Equal(t, first.ID, regs[0].ID)
	assert.Equal(t, second.ID, regs[1].ID)
}

func TestCounts(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	reg := testutil.NewTestRegistration(t, repo, "one@example.com")
	testutil.NewTestRegistration(t, repo, "two@example.com")
	testutil.SetStatus(t, repo, reg, models.StatusRejected)

	counts, err := query.New(repo).Counts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.StatusPending])
	assert.Equal(t, int64(1), counts[models.StatusRejected])
	assert.Equal(t, int64(0), counts[models.StatusApproved])
}

func TestList_PendingAcme(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	base := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	older := seed(t, repo, "Wile", "Coyote", "wile@acme.test", "ACME Corp", base)
	seed(t, repo, "Road", "Runner", "road@desert.test", "Desert Inc", base.Add(time.Hour))
	contacted := seed(t, repo, "Bugs", "Bunny", "bugs@example.test", "Acme Looniversity", base.Add(2*time.Hour))
	newer := seed(t, repo, "Acme", "Founder", "founder@example.test", "Founders", base.Add(3*time.Hour))
	testutil.SetStatus(t, repo, contacted, models.StatusContacted)

	regs, err := query.New(repo).List(context.Background(), query.Filter{Status: "pending", Query: "acme"})

	require.NoError(t, err)
	assert.Equal(t, []string{newer.Email, older.Email}, emails(regs))
}

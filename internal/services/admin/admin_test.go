// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package admin_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/signup-desk/internal/i18n"
	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"codeberg.org/oliverandrich/signup-desk/internal/repository"
	"codeberg.org/oliverandrich/signup-desk/internal/services/activation"
	"codeberg.org/oliverandrich/signup-desk/internal/services/admin"
	"codeberg.org/oliverandrich/signup-desk/internal/services/approval"
	"codeberg.org/oliverandrich/signup-desk/internal/services/notify"
	"codeberg.org/oliverandrich/signup-desk/internal/services/query"
	"codeberg.org/oliverandrich/signup-desk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func setup(t *testing.T) (*admin.Service, *repository.Repository, *testutil.FakeMailer) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	mailer := testutil.NewFakeMailer()
	dispatcher := notify.New(repo, mailer, notify.Config{
		LinkBaseURL: "https://signup.example.com",
		BackoffBase: time.Millisecond,
	}, nil)
	engine := approval.New(repo, activation.NewIssuer(repo), dispatcher)
	svc, err := admin.New(engine, query.New(repo), nil)
	require.NoError(t, err)
	return svc, repo, mailer
}

func ptr(v int64) *int64 { return &v }

func TestApproveRegistration_CurrentVersion(t *testing.T) {
	svc, repo, mailer := setup(t)
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")

	resp, err := svc.ApproveRegistration(context.Background(), reg.ID, nil)

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "Registration approved and activation email sent.", resp.Message)
	require.NotNil(t, resp.Registration)
	assert.Equal(t, models.StatusApproved, resp.Registration.Status)
	assert.Len(t, mailer.Sent(), 1)
}

func TestApproveRegistration_StaleVersion(t *testing.T) {
	svc, repo, _ := setup(t)
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")
	testutil.SetStatus(t, repo, reg, models.StatusContacted)

	resp, err := svc.ApproveRegistration(context.Background(), reg.ID, ptr(1))

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, admin.CodeConcurrentModification, resp.Error)
	assert.Nil(t, resp.Registration)
}

func TestApproveRegistration_DeliveryFailedIsSuccess(t *testing.T) {
	svc, repo, mailer := setup(t)
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")
	mailer.FailAlways(testutil.Permanent(550))

	resp, err := svc.ApproveRegistration(context.Background(), reg.ID, ptr(1))

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, admin.CodeDeliveryFailed, resp.Error)
	assert.Contains(t, resp.Message, "resend")
	assert.Equal(t, models.StatusApproved, resp.Registration.Status)
}

func TestRejectRegistration(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")

	resp, err := svc.RejectRegistration(ctx, reg.ID, "", nil)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, admin.CodeValidationFailed, resp.Error)
	assert.Contains(t, resp.Fields, "reason")

	resp, err = svc.RejectRegistration(ctx, reg.ID, "No fit", nil)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, models.StatusRejected, resp.Registration.Status)

	resp, err = svc.RejectRegistration(ctx, reg.ID, "Again", nil)
	require.NoError(t, err)
	assert.Equal(t, admin.CodeAlreadyFinalized, resp.Error)
}

func TestUpdateStatus(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")

	resp, err := svc.UpdateStatus(ctx, reg.ID, "demo_scheduled", "", ptr(1))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Status updated.", resp.Message)

	resp, err = svc.UpdateStatus(ctx, reg.ID, "contacted", "", nil)
	require.NoError(t, err)
	assert.Equal(t, admin.CodeInvalidTransition, resp.Error)

	resp, err = svc.UpdateStatus(ctx, reg.ID, "archived", "", nil)
	require.NoError(t, err)
	assert.Equal(t, admin.CodeValidationFailed, resp.Error)
	assert.Contains(t, resp.Fields, "status")
}

func TestResendActivationEmail(t *testing.T) {
	svc, repo, mailer := setup(t)
	ctx := context.Background()
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")

	resp, err := svc.ResendActivationEmail(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, admin.CodeInvalidState, resp.Error)

	_, err = svc.ApproveRegistration(ctx, reg.ID, nil)
	require.NoError(t, err)
	resp, err = svc.ResendActivationEmail(ctx, reg.ID)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Len(t, mailer.Sent(), 2)

	resp, err = svc.ResendActivationEmail(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, admin.CodeNotFound, resp.Error)
	assert.Equal(t, "Registration not found.", resp.Message)
}

func TestAddNote(t *testing.T) {
	svc, repo, _ := setup(t)
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")

	resp, err := svc.AddNote(context.Background(), reg.ID, "Called back", nil)

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Registration.AdminNotes, "Called back")
	assert.Equal(t, int64(2), resp.Registration.Version)
}

func TestResponse_Localized(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := i18n.WithLocale(context.Background(), language.German)

	resp, err := svc.ApproveRegistration(ctx, "missing", nil)

	require.NoError(t, err)
	assert.Equal(t, admin.CodeNotFound, resp.Error)
	assert.NotEqual(t, "Registration not found.", resp.Message)
	assert.NotEqual(t, "msg_not_found", resp.Message)
}

func TestListAndDetail(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")
	testutil.NewTestRegistration(t, repo, "grace@example.com")

	regs, err := svc.ListPendingRegistrations(ctx, query.Filter{Query: "ADA"})
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, reg.ID, regs[0].ID)

	_, err = svc.ApproveRegistration(ctx, reg.ID, nil)
	require.NoError(t, err)
	detail, err := svc.Registration(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, detail.Registration.Status)
	assert.Len(t, detail.Attempts, 1)

	_, err = svc.Registration(ctx, "missing")
	code, ok := admin.ErrorCode(err)
	assert.True(t, ok)
	assert.Equal(t, admin.CodeNotFound, code)

	counts, err := svc.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.StatusPending])
}

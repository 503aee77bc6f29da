// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/signup-desk/internal/models"
	"codeberg.org/oliverandrich/signup-desk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNotificationAttempt_Numbering(t *testing.T) {
	db, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	reg := testutil.NewTestRegistration(t, repo, "ada@example.com")

	detail := "421 try again later"
	status := 421
	first := &models.NotificationAttempt{
		RegistrationID: reg.ID, Kind: models.KindActivation, Outcome: models.OutcomeFailed,
		ErrorDetail: &detail, ProviderStatus: &status,
	}
	second := &models.NotificationAttempt{RegistrationID: reg.ID, Kind: models.KindActivation, Outcome: models.OutcomeSent}
	rejection := &models.NotificationAttempt{RegistrationID: reg.ID, Kind: models.KindRejection, Outcome: models.OutcomeSent}

	require.NoError(t, repo.CreateNotificationAttempt(ctx, first))
	require.NoError(t, repo.CreateNotificationAttempt(ctx, second))
	require.NoError(t, repo.CreateNotificationAttempt(ctx, rejection))

	assert.Equal(t, 1, first.AttemptNumber)
	assert.Equal(t, 2, second.AttemptNumber)
	assert.Equal(t, 1, rejection.AttemptNumber, "numbering is per kind")

	attempts, err := repo.ListNotificationAttempts(ctx, reg.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.Equal(t, models.OutcomeFailed, attempts[0].Outcome)
	require.NotNil(t, attempts[0].ErrorDetail)
	assert.Equal(t, detail, *attempts[0].ErrorDetail)
	require.NotNil(t, attempts[0].ProviderStatus)
	assert.Equal(t, 421, *attempts[0].ProviderStatus)
	assert.Nil(t, attempts[1].ErrorDetail)

	_, err = db.ExecContext(ctx, `UPDATE notification_attempts SET outcome = 'sent' WHERE id = ?`, first.ID)
	assert.Error(t, err, "attempt records are append-only")
	_, err = db.ExecContext(ctx, `DELETE FROM notification_attempts WHERE id = ?`, first.ID)
	assert.Error(t, err, "attempt records are append-only")
}

func TestListNotificationAttempts_Empty(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	attempts, err := repo.ListNotificationAttempts(context.Background(), "missing")

	require.NoError(t, err)
	assert.Empty(t, attempts)
}

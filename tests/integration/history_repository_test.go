package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/decision"
	"herald/internal/history"
	pkgerrors "herald/pkg/errors"
)

func TestHistoryRepository_FindDeliveries_NewestFirst(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := history.NewRepository(infra.PostgresDB)
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

	older := createTestDelivery("t1", "pat@example.com", decision.StatusDelivered, base)
	newer := createTestDelivery("t1", "pat@example.com", decision.StatusPendingDelivery, base.Add(10*time.Minute))
	failed := createTestDelivery("t1", "pat@example.com", decision.StatusFailed, base.Add(20*time.Minute))
	voided := createTestDelivery("t1", "pat@example.com", decision.StatusVoid, base.Add(30*time.Minute))
	otherIdentity := createTestDelivery("t1", "pat@example.com", decision.StatusDelivered, base.Add(40*time.Minute))
	otherIdentity.IdentityValue = "A-2"

	for _, rec := range []*decision.DeliveryRecord{older, newer, failed, voided, otherIdentity} {
		_, err := repo.CreateDelivery(ctx, rec)
		require.NoError(t, err)
	}

	found, err := repo.FindDeliveries(ctx, decision.DeliveryQuery{
		TemplateID:    "t1",
		Recipient:     "pat@example.com",
		IdentityKey:   "appointment_id",
		IdentityValue: "A-1",
	})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, newer.ID, found[0].ID)
	assert.Equal(t, older.ID, found[1].ID)
}

func TestHistoryRepository_UpdateStatus(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := history.NewRepository(infra.PostgresDB)

	rec := createTestDelivery("t1", "pat@example.com", decision.StatusPendingRetry, time.Now().UTC())
	after := time.Now().UTC().Add(time.Hour)
	rec.DeliverAfter = &after
	id, err := repo.CreateDelivery(ctx, rec)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, id, decision.StatusVoid, "max deferrals reached", nil))

	got, err := repo.GetDelivery(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, decision.StatusVoid, got.Status)
	assert.Equal(t, "max deferrals reached", got.StatusMessage)
	assert.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.DeliverAfter)

	err = repo.UpdateStatus(ctx, "00000000-0000-0000-0000-000000000000", decision.StatusVoid, "", nil)
	assert.True(t, pkgerrors.IsNotFound(err))

	err = repo.UpdateStatus(ctx, id, decision.Status("bogus"), "", nil)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestHistoryRepository_Reschedule(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := history.NewRepository(infra.PostgresDB)

	rec := createTestDelivery("t1", "pat@example.com", decision.StatusPendingRetry, time.Now().UTC())
	id, err := repo.CreateDelivery(ctx, rec)
	require.NoError(t, err)

	next := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	require.NoError(t, repo.Reschedule(ctx, id, "outside delivery window", next, 3))

	got, err := repo.GetDelivery(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, decision.StatusPendingRetry, got.Status)
	assert.Equal(t, 3, got.Deferrals)
	require.NotNil(t, got.DeliverAfter)
	assert.True(t, next.Equal(*got.DeliverAfter))

	require.NoError(t, repo.UpdateStatus(ctx, id, decision.StatusVoid, "", nil))
	err = repo.Reschedule(ctx, id, "", next, 4)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestHistoryRepository_GetDelivery_NotFound(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	repo := history.NewRepository(infra.PostgresDB)

	_, err := repo.GetDelivery(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestHistoryRepository_ListByRecipient(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := history.NewRepository(infra.PostgresDB)
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 3; i++ {
		_, err := repo.CreateDelivery(ctx, createTestDelivery("t1", "pat@example.com", decision.StatusDelivered, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	_, err := repo.CreateDelivery(ctx, createTestDelivery("t1", "other@example.com", decision.StatusDelivered, base))
	require.NoError(t, err)

	records, err := repo.ListByRecipient(ctx, "pat@example.com", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].CreatedAt.After(records[1].CreatedAt))
}

func TestHistoryRepository_ListOverdue(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, false, false)

	ctx := context.Background()
	repo := history.NewRepository(infra.PostgresDB)
	now := time.Now().UTC()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	overdue := createTestDelivery("t1", "pat@example.com", decision.StatusPendingRetry, now.Add(-2*time.Hour))
	overdue.DeliverAfter = &past
	notYet := createTestDelivery("t1", "pat@example.com", decision.StatusPendingRetry, now.Add(-2*time.Hour))
	notYet.DeliverAfter = &future
	sent := createTestDelivery("t1", "pat@example.com", decision.StatusPendingDelivery, now.Add(-2*time.Hour))

	for _, rec := range []*decision.DeliveryRecord{overdue, notYet, sent} {
		_, err := repo.CreateDelivery(ctx, rec)
		require.NoError(t, err)
	}

	records, err := repo.ListOverdue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, overdue.ID, records[0].ID)
}

package repository

import (
	"context"
	"testing"
	"time"

	"esusu/models"
	"esusu/repository/testutil"
	"esusu/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotationRepository_Create(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewRotationRepository(testDB.DB)
	ctx := context.Background()

	ada := seedUser(t, testDB.DB, 1, "Ada")
	bayo := seedUser(t, testDB.DB, 2, "Bayo")
	group := seedGroup(t, testDB.DB, ada.ID, "Lagos Friends")
	period := models.Period{Cycle: 1, Week: 1}

	t.Run("first writer wins", func(t *testing.T) {
		rotation := testutil.CreateTestRotation(group.ID, ada.ID, period, 1500000)
		created, err := repo.Create(ctx, rotation)
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotZero(t, rotation.ID)
	})

	t.Run("second writer for the same period loses", func(t *testing.T) {
		duplicate := testutil.CreateTestRotation(group.ID, bayo.ID, period, 1500000)
		created, err := repo.Create(ctx, duplicate)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Zero(t, duplicate.ID)

		// The winning row is untouched
		existing, err := repo.GetByPeriod(ctx, group.ID, period)
		require.NoError(t, err)
		require.NotNil(t, existing)
		assert.Equal(t, ada.ID, existing.RecipientID)
	})

	t.Run("next period gets its own row", func(t *testing.T) {
		rotation := testutil.CreateTestRotation(group.ID, bayo.ID, models.Period{Cycle: 1, Week: 2}, 1500000)
		created, err := repo.Create(ctx, rotation)
		require.NoError(t, err)
		assert.True(t, created)
	})
}

func TestRotationRepository_GetByPeriod(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewRotationRepository(testDB.DB)
	ctx := context.Background()

	ada := seedUser(t, testDB.DB, 1, "Ada")
	group := seedGroup(t, testDB.DB, ada.ID, "Lagos Friends")

	t.Run("no rotation yet", func(t *testing.T) {
		rotation, err := repo.GetByPeriod(ctx, group.ID, models.Period{Cycle: 1, Week: 1})
		require.NoError(t, err)
		assert.Nil(t, rotation)
	})

	t.Run("rotation found", func(t *testing.T) {
		rotation := testutil.CreateTestRotation(group.ID, ada.ID, models.Period{Cycle: 2, Week: 3}, 1500000)
		created, err := repo.Create(ctx, rotation)
		require.NoError(t, err)
		require.True(t, created)

		retrieved, err := repo.GetByPeriod(ctx, group.ID, models.Period{Cycle: 2, Week: 3})
		require.NoError(t, err)
		require.NotNil(t, retrieved)
		assert.Equal(t, rotation.ID, retrieved.ID)
		assert.Equal(t, models.RotationStatusPending, retrieved.Status)
		assert.Nil(t, retrieved.PaidAt)
		assert.Nil(t, retrieved.TransferReference)
	})
}

func TestRotationRepository_MarkPaid(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewRotationRepository(testDB.DB)
	ctx := context.Background()

	ada := seedUser(t, testDB.DB, 1, "Ada")
	group := seedGroup(t, testDB.DB, ada.ID, "Lagos Friends")

	rotation := testutil.CreateTestRotation(group.ID, ada.ID, models.Period{Cycle: 1, Week: 1}, 1500000)
	created, err := repo.Create(ctx, rotation)
	require.NoError(t, err)
	require.True(t, created)

	paidAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("pending rotation paid", func(t *testing.T) {
		err := repo.MarkPaid(ctx, rotation.ID, "TRF_abc123", paidAt)
		require.NoError(t, err)

		retrieved, err := repo.GetByID(ctx, rotation.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RotationStatusPaid, retrieved.Status)
		require.NotNil(t, retrieved.TransferReference)
		assert.Equal(t, "TRF_abc123", *retrieved.TransferReference)
		require.NotNil(t, retrieved.PaidAt)
		assert.True(t, retrieved.PaidAt.Equal(paidAt))
	})

	t.Run("paid rotation cannot be paid again", func(t *testing.T) {
		err := repo.MarkPaid(ctx, rotation.ID, "TRF_other", paidAt)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not pending")
	})

	t.Run("paid rotation cannot fail", func(t *testing.T) {
		err := repo.MarkFailed(ctx, rotation.ID)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not pending")
	})
}

func TestRotationRepository_MarkFailed(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewRotationRepository(testDB.DB)
	ctx := context.Background()

	ada := seedUser(t, testDB.DB, 1, "Ada")
	group := seedGroup(t, testDB.DB, ada.ID, "Lagos Friends")

	rotation := testutil.CreateTestRotation(group.ID, ada.ID, models.Period{Cycle: 1, Week: 1}, 1500000)
	created, err := repo.Create(ctx, rotation)
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, repo.MarkFailed(ctx, rotation.ID))

	retrieved, err := repo.GetByID(ctx, rotation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RotationStatusFailed, retrieved.Status)
	assert.Nil(t, retrieved.PaidAt)
}

func TestRotationRepository_List(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewRotationRepository(testDB.DB)
	ctx := context.Background()

	ada := seedUser(t, testDB.DB, 1, "Ada")
	bayo := seedUser(t, testDB.DB, 2, "Bayo")
	group := seedGroup(t, testDB.DB, ada.ID, "Lagos Friends")

	r1 := testutil.CreateTestRotation(group.ID, ada.ID, models.Period{Cycle: 1, Week: 1}, 1500000)
	created, err := repo.Create(ctx, r1)
	require.NoError(t, err)
	require.True(t, created)

	r2 := testutil.CreateTestRotation(group.ID, bayo.ID, models.Period{Cycle: 1, Week: 2}, 1500000)
	created, err = repo.Create(ctx, r2)
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, repo.MarkPaid(ctx, r1.ID, "TRF_xyz", time.Now().UTC()))

	t.Run("filter by group", func(t *testing.T) {
		rotations, err := repo.List(ctx, service.RotationFilter{GroupID: &group.ID})
		require.NoError(t, err)
		assert.Len(t, rotations, 2)
	})

	t.Run("filter by status", func(t *testing.T) {
		status := models.RotationStatusPending
		rotations, err := repo.List(ctx, service.RotationFilter{GroupID: &group.ID, Status: &status})
		require.NoError(t, err)
		require.Len(t, rotations, 1)
		assert.Equal(t, r2.ID, rotations[0].ID)
	})

	t.Run("filter by recipient", func(t *testing.T) {
		rotations, err := repo.List(ctx, service.RotationFilter{RecipientID: &ada.ID})
		require.NoError(t, err)
		require.Len(t, rotations, 1)
		assert.Equal(t, r1.ID, rotations[0].ID)
	})
}

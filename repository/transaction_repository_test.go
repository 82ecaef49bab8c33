package repository

import (
	"context"
	"testing"

	"esusu/models"
	"esusu/repository/testutil"
	"esusu/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionRepository_Record(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewTransactionRepository(testDB.DB)
	ctx := context.Background()

	user := seedUser(t, testDB.DB, 1, "Ada")
	group := seedGroup(t, testDB.DB, user.ID, "Lagos Friends")

	t.Run("entry with metadata", func(t *testing.T) {
		transaction := testutil.CreateTestTransaction(user.ID, models.TransactionTypeContribution, "THR_1000_AAAA1111", 500000)
		transaction.GroupID = &group.ID
		transaction.Metadata = map[string]any{
			"cycle":   1,
			"week":    2,
			"channel": "paystack",
		}

		err := repo.Record(ctx, transaction)
		require.NoError(t, err)
		assert.NotZero(t, transaction.ID)
		assert.False(t, transaction.CreatedAt.IsZero())

		entries, err := repo.List(ctx, service.TransactionFilter{UserID: &user.ID})
		require.NoError(t, err)
		require.Len(t, entries, 1)

		entry := entries[0]
		assert.Equal(t, models.TransactionStatusPending, entry.Status)
		require.NotNil(t, entry.GroupID)
		assert.Equal(t, group.ID, *entry.GroupID)
		// JSONB numbers come back as float64
		assert.Equal(t, float64(1), entry.Metadata["cycle"])
		assert.Equal(t, float64(2), entry.Metadata["week"])
		assert.Equal(t, "paystack", entry.Metadata["channel"])
	})

	t.Run("entry without metadata", func(t *testing.T) {
		transaction := testutil.CreateTestTransaction(user.ID, models.TransactionTypePayout, "THR_1001_BBBB2222", 1500000)
		transaction.Metadata = nil

		err := repo.Record(ctx, transaction)
		require.NoError(t, err)
		assert.NotZero(t, transaction.ID)
	})

	t.Run("duplicate reference rejected", func(t *testing.T) {
		transaction := testutil.CreateTestTransaction(user.ID, models.TransactionTypeContribution, "THR_1000_AAAA1111", 500000)
		err := repo.Record(ctx, transaction)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate key")
	})
}

func TestTransactionRepository_UpdateStatusByReference(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewTransactionRepository(testDB.DB)
	ctx := context.Background()

	user := seedUser(t, testDB.DB, 1, "Ada")

	transaction := testutil.CreateTestTransaction(user.ID, models.TransactionTypeContribution, "THR_2000_CCCC3333", 500000)
	require.NoError(t, repo.Record(ctx, transaction))

	t.Run("status transition", func(t *testing.T) {
		err := repo.UpdateStatusByReference(ctx, "THR_2000_CCCC3333", models.TransactionStatusCompleted)
		require.NoError(t, err)

		entries, err := repo.List(ctx, service.TransactionFilter{UserID: &user.ID})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, models.TransactionStatusCompleted, entries[0].Status)
	})

	t.Run("unknown reference", func(t *testing.T) {
		err := repo.UpdateStatusByReference(ctx, "THR_0_NOSUCH00", models.TransactionStatusCompleted)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestTransactionRepository_GetPendingByRelated(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewTransactionRepository(testDB.DB)
	ctx := context.Background()

	ada := seedUser(t, testDB.DB, 1, "Ada")
	group := seedGroup(t, testDB.DB, ada.ID, "Lagos Friends")

	rotation := testutil.CreateTestRotation(group.ID, ada.ID, models.Period{Cycle: 1, Week: 1}, 1500000)
	created, err := NewRotationRepository(testDB.DB).Create(ctx, rotation)
	require.NoError(t, err)
	require.True(t, created)

	relatedType := models.RelatedTypeRotation

	t.Run("no pending entry", func(t *testing.T) {
		entry, err := repo.GetPendingByRelated(ctx, relatedType, rotation.ID)
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("pending entry found", func(t *testing.T) {
		transaction := testutil.CreateTestTransaction(ada.ID, models.TransactionTypePayout, "THR_3000_DDDD4444", 1500000)
		transaction.GroupID = &group.ID
		transaction.RelatedID = &rotation.ID
		transaction.RelatedType = &relatedType
		require.NoError(t, repo.Record(ctx, transaction))

		entry, err := repo.GetPendingByRelated(ctx, relatedType, rotation.ID)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "THR_3000_DDDD4444", entry.Reference)
	})

	t.Run("resolved entry no longer blocks", func(t *testing.T) {
		err := repo.UpdateStatusByReference(ctx, "THR_3000_DDDD4444", models.TransactionStatusCancelled)
		require.NoError(t, err)

		entry, err := repo.GetPendingByRelated(ctx, relatedType, rotation.ID)
		require.NoError(t, err)
		assert.Nil(t, entry)
	})
}

func TestTransactionRepository_RecordPayoutAttempt(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewTransactionRepository(testDB.DB)
	ctx := context.Background()

	ada := seedUser(t, testDB.DB, 1, "Ada")
	group := seedGroup(t, testDB.DB, ada.ID, "Lagos Friends")

	rotation := testutil.CreateTestRotation(group.ID, ada.ID, models.Period{Cycle: 1, Week: 1}, 1500000)
	created, err := NewRotationRepository(testDB.DB).Create(ctx, rotation)
	require.NoError(t, err)
	require.True(t, created)

	relatedType := models.RelatedTypeRotation
	guardFor := func(reference string) *models.Transaction {
		transaction := testutil.CreateTestTransaction(ada.ID, models.TransactionTypePayout, reference, 1500000)
		transaction.GroupID = &group.ID
		transaction.RelatedID = &rotation.ID
		transaction.RelatedType = &relatedType
		return transaction
	}

	t.Run("first attempt wins", func(t *testing.T) {
		guard := guardFor("THR_5000_AAAA0001")
		inserted, err := repo.RecordPayoutAttempt(ctx, guard)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.NotZero(t, guard.ID)
	})

	t.Run("concurrent attempt for the same rotation loses", func(t *testing.T) {
		rival := guardFor("THR_5001_AAAA0002")
		inserted, err := repo.RecordPayoutAttempt(ctx, rival)
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.Zero(t, rival.ID)

		// Only the winning guard exists
		entry, err := repo.GetPendingByRelated(ctx, relatedType, rotation.ID)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "THR_5000_AAAA0001", entry.Reference)
	})

	t.Run("completed attempt still blocks", func(t *testing.T) {
		err := repo.UpdateStatusByReference(ctx, "THR_5000_AAAA0001", models.TransactionStatusCompleted)
		require.NoError(t, err)

		inserted, err := repo.RecordPayoutAttempt(ctx, guardFor("THR_5002_AAAA0003"))
		require.NoError(t, err)
		assert.False(t, inserted)
	})

	t.Run("cancelled attempt frees the slot", func(t *testing.T) {
		err := repo.UpdateStatusByReference(ctx, "THR_5000_AAAA0001", models.TransactionStatusCancelled)
		require.NoError(t, err)

		inserted, err := repo.RecordPayoutAttempt(ctx, guardFor("THR_5003_AAAA0004"))
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("contribution entries are not constrained", func(t *testing.T) {
		relatedContribution := models.RelatedTypeContribution
		target := int64(100)
		for _, reference := range []string{"THR_5004_AAAA0005", "THR_5005_AAAA0006"} {
			transaction := testutil.CreateTestTransaction(ada.ID, models.TransactionTypeContribution, reference, 500000)
			transaction.RelatedID = &target
			transaction.RelatedType = &relatedContribution
			require.NoError(t, repo.Record(ctx, transaction))
		}
	})
}

func TestTransactionRepository_List(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewTransactionRepository(testDB.DB)
	ctx := context.Background()

	ada := seedUser(t, testDB.DB, 1, "Ada")
	bayo := seedUser(t, testDB.DB, 2, "Bayo")

	t1 := testutil.CreateTestTransaction(ada.ID, models.TransactionTypeContribution, "THR_4000_EEEE5555", 500000)
	require.NoError(t, repo.Record(ctx, t1))
	t2 := testutil.CreateTestTransaction(ada.ID, models.TransactionTypePayout, "THR_4001_FFFF6666", 1500000)
	require.NoError(t, repo.Record(ctx, t2))
	t3 := testutil.CreateTestTransaction(bayo.ID, models.TransactionTypeContribution, "THR_4002_ABAB7777", 500000)
	require.NoError(t, repo.Record(ctx, t3))

	t.Run("filter by user", func(t *testing.T) {
		entries, err := repo.List(ctx, service.TransactionFilter{UserID: &ada.ID})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("filter by type", func(t *testing.T) {
		txType := models.TransactionTypePayout
		entries, err := repo.List(ctx, service.TransactionFilter{Type: &txType})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, t2.ID, entries[0].ID)
	})

	t.Run("limit", func(t *testing.T) {
		entries, err := repo.List(ctx, service.TransactionFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}

package repository

import (
	"context"
	"testing"

	"esusu/models"
	"esusu/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	t.Run("user not found", func(t *testing.T) {
		user, err := repo.GetByID(ctx, 99999)
		require.NoError(t, err)
		assert.Nil(t, user)

		user, err = repo.GetByWhatsappID(ctx, "2340000000000")
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("create fills generated fields", func(t *testing.T) {
		user := testutil.CreateTestUser(1, "Ada")
		err := repo.Create(ctx, user)
		require.NoError(t, err)

		assert.NotZero(t, user.ID)
		assert.True(t, user.IsActive)
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("lookup by whatsapp ID", func(t *testing.T) {
		user := testutil.CreateTestUser(2, "Bayo")
		require.NoError(t, repo.Create(ctx, user))

		retrieved, err := repo.GetByWhatsappID(ctx, user.WhatsappID)
		require.NoError(t, err)
		require.NotNil(t, retrieved)
		assert.Equal(t, user.ID, retrieved.ID)
		assert.Equal(t, "Bayo", retrieved.Name)
		// No payout details on file yet
		assert.Nil(t, retrieved.BankDetails)
		assert.False(t, retrieved.HasPayoutDetails())
	})

	t.Run("duplicate whatsapp ID rejected", func(t *testing.T) {
		first := testutil.CreateTestUser(3, "Chidi")
		require.NoError(t, repo.Create(ctx, first))

		second := testutil.CreateTestUser(3, "Chidi Again")
		err := repo.Create(ctx, second)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate key")
	})
}

func TestUserRepository_UpdateBankDetails(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser(1, "Ada")
	require.NoError(t, repo.Create(ctx, user))

	t.Run("details stored and read back", func(t *testing.T) {
		err := repo.UpdateBankDetails(ctx, user.ID, models.BankDetails{
			AccountNumber: "0011223344",
			BankName:      "GTBank",
			AccountName:   "Ada Obi",
		})
		require.NoError(t, err)

		retrieved, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, retrieved.BankDetails)
		assert.Equal(t, "0011223344", retrieved.BankDetails.AccountNumber)
		assert.Equal(t, "GTBank", retrieved.BankDetails.BankName)
		assert.Equal(t, "Ada Obi", retrieved.BankDetails.AccountName)
		assert.True(t, retrieved.HasPayoutDetails())
	})

	t.Run("details replaced on update", func(t *testing.T) {
		err := repo.UpdateBankDetails(ctx, user.ID, models.BankDetails{
			AccountNumber: "9988776655",
			BankName:      "Access Bank",
			AccountName:   "Ada Obi",
		})
		require.NoError(t, err)

		retrieved, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "9988776655", retrieved.BankDetails.AccountNumber)
		assert.Equal(t, "Access Bank", retrieved.BankDetails.BankName)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := repo.UpdateBankDetails(ctx, 99999, models.BankDetails{AccountNumber: "1"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

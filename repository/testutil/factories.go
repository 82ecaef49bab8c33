package testutil

import (
	"fmt"
	"time"

	"esusu/models"
)

// CreateTestUser creates a test user with default values. The whatsapp ID,
// phone number and email are derived from the seed so unique constraints hold
// across repeated calls.
func CreateTestUser(seed int, name string) *models.User {
	return &models.User{
		WhatsappID:  fmt.Sprintf("234800000%04d", seed),
		PhoneNumber: fmt.Sprintf("+234800000%04d", seed),
		Name:        name,
		Email:       fmt.Sprintf("user%d@example.com", seed),
		IsActive:    true,
	}
}

// CreateTestUserWithBank creates a test user with payout details on file
func CreateTestUserWithBank(seed int, name string) *models.User {
	user := CreateTestUser(seed, name)
	user.BankDetails = &models.BankDetails{
		AccountNumber: fmt.Sprintf("00112233%02d", seed%100),
		BankName:      "First Bank",
		AccountName:   name,
	}
	return user
}

// CreateTestGroup creates a weekly test group owned by creatorID
func CreateTestGroup(creatorID int64, name string) *models.Group {
	return &models.Group{
		Name:               name,
		Description:        "test group",
		ContributionAmount: 500000,
		Cadence:            models.CadenceWeekly,
		MaxMembers:         10,
		CreatorID:          creatorID,
		StartDate:          time.Now().Add(-8 * 24 * time.Hour).UTC(),
		IsActive:           true,
	}
}

// CreateTestContribution creates a pending contribution for the given period
func CreateTestContribution(userID, groupID int64, period models.Period, reference string) *models.Contribution {
	return &models.Contribution{
		UserID:    userID,
		GroupID:   groupID,
		Amount:    500000,
		Cycle:     period.Cycle,
		Week:      period.Week,
		Reference: reference,
		Status:    models.ContributionStatusPending,
	}
}

// CreateTestRotation creates a pending rotation for the given period
func CreateTestRotation(groupID, recipientID int64, period models.Period, amount int64) *models.Rotation {
	return &models.Rotation{
		GroupID:     groupID,
		RecipientID: recipientID,
		Cycle:       period.Cycle,
		Week:        period.Week,
		Amount:      amount,
		Status:      models.RotationStatusPending,
	}
}

// CreateTestTransaction creates a pending ledger entry
func CreateTestTransaction(userID int64, txType models.TransactionType, reference string, amount int64) *models.Transaction {
	return &models.Transaction{
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Reference:   reference,
		Description: "test entry",
		Status:      models.TransactionStatusPending,
		Metadata: map[string]any{
			"test": true,
		},
	}
}

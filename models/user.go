package models

import (
	"time"
)

// User represents a registered thrift member, reachable through the
// notification gateway via their WhatsappID
type User struct {
	ID           int64        `db:"id"`
	WhatsappID   string       `db:"whatsapp_id"`
	PhoneNumber  string       `db:"phone_number"`
	Name         string       `db:"name"`
	Email        string       `db:"email"`
	BankDetails  *BankDetails `db:"-"`
	IsActive     bool         `db:"is_active"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

// BankDetails holds a user's payout destination
type BankDetails struct {
	AccountNumber string `db:"account_number"`
	BankName      string `db:"bank_name"`
	AccountName   string `db:"account_name"`
}

// HasPayoutDetails reports whether the user has a usable payout destination on file
func (u *User) HasPayoutDetails() bool {
	return u.BankDetails != nil && u.BankDetails.AccountNumber != ""
}

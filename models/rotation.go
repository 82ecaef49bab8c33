package models

import (
	"time"
)

// RotationStatus represents the state of a payout
type RotationStatus string

const (
	RotationStatusPending RotationStatus = "pending"
	RotationStatusPaid    RotationStatus = "paid"
	RotationStatusFailed  RotationStatus = "failed"
)

// Rotation is the payout event for one (group, cycle, week). At most one row
// exists per tuple; the amount is fixed at creation and never recomputed.
type Rotation struct {
	ID                int64          `db:"id"`
	GroupID           int64          `db:"group_id"`
	RecipientID       int64          `db:"recipient_id"`
	Cycle             int            `db:"cycle"`
	Week              int            `db:"week"`
	Amount            int64          `db:"amount"`
	Status            RotationStatus `db:"status"`
	PaidAt            *time.Time     `db:"paid_at"`
	TransferReference *string        `db:"transfer_reference"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

// Period returns the period this rotation pays out
func (r *Rotation) Period() Period {
	return Period{Cycle: r.Cycle, Week: r.Week}
}

// IsPending checks if the rotation still needs to be dispatched or reconciled
func (r *Rotation) IsPending() bool {
	return r.Status == RotationStatusPending
}

// IsPaid checks if the payout has been completed
func (r *Rotation) IsPaid() bool {
	return r.Status == RotationStatusPaid
}

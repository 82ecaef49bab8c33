package models

import (
	"time"
)

// ContributionStatus represents the state of a contribution attempt
type ContributionStatus string

const (
	ContributionStatusPending   ContributionStatus = "pending"
	ContributionStatusConfirmed ContributionStatus = "confirmed"
	ContributionStatusFailed    ContributionStatus = "failed"
)

// Contribution records one member's payment attempt for one period.
// At most one row exists per (user, group, cycle, week); rows are never
// deleted, only transitioned.
type Contribution struct {
	ID        int64              `db:"id"`
	UserID    int64              `db:"user_id"`
	GroupID   int64              `db:"group_id"`
	Amount    int64              `db:"amount"`
	Cycle     int                `db:"cycle"`
	Week      int                `db:"week"`
	Reference string             `db:"reference"`
	Status    ContributionStatus `db:"status"`
	PaidAt    *time.Time         `db:"paid_at"`
	CreatedAt time.Time          `db:"created_at"`
	UpdatedAt time.Time          `db:"updated_at"`
}

// Period returns the period this contribution belongs to
func (c *Contribution) Period() Period {
	return Period{Cycle: c.Cycle, Week: c.Week}
}

// IsConfirmed checks if the contribution has been confirmed by the payment provider
func (c *Contribution) IsConfirmed() bool {
	return c.Status == ContributionStatusConfirmed
}

// IsPending checks if the contribution is still awaiting payment
func (c *Contribution) IsPending() bool {
	return c.Status == ContributionStatusPending
}

package models

import (
	"time"
)

// TransactionType represents the direction of a money movement
type TransactionType string

const (
	TransactionTypeContribution TransactionType = "contribution"
	TransactionTypePayout       TransactionType = "payout"
)

// TransactionStatus represents the state of a ledger entry
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// RelatedType represents what type of entity the related_id refers to
type RelatedType string

const (
	RelatedTypeContribution RelatedType = "contribution"
	RelatedTypeRotation     RelatedType = "rotation"
)

// Transaction is a generic audit record of money movement, derived from but
// separate from Contribution and Rotation records
type Transaction struct {
	ID          int64             `db:"id"`
	UserID      int64             `db:"user_id"`
	GroupID     *int64            `db:"group_id"`
	Amount      int64             `db:"amount"`
	Type        TransactionType   `db:"type"`
	Reference   string            `db:"reference"`
	Description string            `db:"description"`
	Status      TransactionStatus `db:"status"`
	Metadata    map[string]any    `db:"metadata"`
	RelatedID   *int64            `db:"related_id"`
	RelatedType *RelatedType      `db:"related_type"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
}

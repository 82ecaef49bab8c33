package service

import (
	"errors"
)

var (
	// ErrNotMember is returned when the user is not an active member of the group
	ErrNotMember = errors.New("user is not an active member of this group")

	// ErrAmountMismatch is returned when the offered amount differs from the
	// group's contribution amount
	ErrAmountMismatch = errors.New("amount does not match the group contribution amount")

	// ErrAlreadyContributed is returned when a confirmed contribution already
	// exists for the member's current period
	ErrAlreadyContributed = errors.New("already contributed for this period")

	// ErrNotFound is returned when a referenced record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrGroupInactive is returned for operations on a deactivated group
	ErrGroupInactive = errors.New("group is not active")

	// ErrGroupFull is returned when a group has reached its member cap
	ErrGroupFull = errors.New("group is full")

	// ErrMissingPayoutDetails is returned when a payout recipient has no bank
	// details on file; the rotation stays pending until an operator fixes it
	ErrMissingPayoutDetails = errors.New("recipient has no payout details on file")

	// ErrProviderFailure is returned when the payment provider definitively
	// rejected an operation
	ErrProviderFailure = errors.New("payment provider reported failure")

	// ErrProviderAmbiguous is returned when the provider outcome is unknown;
	// the payout stays pending until explicitly reconciled
	ErrProviderAmbiguous = errors.New("payment provider outcome is unknown")

	// ErrAwaitingReconciliation is returned when a payout attempt is already
	// in flight or unresolved; dispatching again risks a duplicate transfer
	ErrAwaitingReconciliation = errors.New("payout awaiting reconciliation of a previous attempt")
)

package service

import (
	"context"
	"time"

	"esusu/events"
	"esusu/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID retrieves a user by their internal ID
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// GetByWhatsappID retrieves a user by their WhatsApp handle
	GetByWhatsappID(ctx context.Context, whatsappID string) (*models.User, error)

	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// UpdateBankDetails replaces a user's payout destination
	UpdateBankDetails(ctx context.Context, userID int64, details models.BankDetails) error
}

// GroupRepository defines the interface for group and membership data access
type GroupRepository interface {
	// GetByID retrieves a group by its ID
	GetByID(ctx context.Context, id int64) (*models.Group, error)

	// GetActiveGroups returns all groups currently collecting contributions
	GetActiveGroups(ctx context.Context) ([]*models.Group, error)

	// Create creates a new group
	Create(ctx context.Context, group *models.Group) error

	// AddMember adds a user to a group, enforcing the member cap and
	// at-most-once membership
	AddMember(ctx context.Context, groupID, userID int64) (*models.GroupMember, error)

	// GetMemberSnapshot returns the group's active members in stable join
	// order, captured at call time
	GetMemberSnapshot(ctx context.Context, groupID int64) (*models.MemberSnapshot, error)

	// IncrementTotalContributions adds to the group's running confirmed total
	IncrementTotalContributions(ctx context.Context, groupID int64, amount int64) error

	// AdvanceTo moves the group's stored cycle counter and last-advanced
	// marker to the given period. Returns false if the group has already
	// advanced to (or past) that period, making boundary advancement
	// idempotent across overlapping sweeps.
	AdvanceTo(ctx context.Context, groupID int64, period models.Period) (bool, error)
}

// ContributionRepository defines the interface for contribution data access
type ContributionRepository interface {
	// Create creates a new contribution record in pending status
	Create(ctx context.Context, contribution *models.Contribution) error

	// GetByReference retrieves a contribution by its payment reference
	GetByReference(ctx context.Context, reference string) (*models.Contribution, error)

	// GetByUserAndPeriod retrieves the contribution a user made for a period,
	// whatever its status
	GetByUserAndPeriod(ctx context.Context, userID, groupID int64, period models.Period) (*models.Contribution, error)

	// Confirm transitions a contribution to confirmed and stamps the payment
	// time. Returns false if the row was already confirmed, so concurrent
	// confirmation callbacks cannot double-apply side effects.
	Confirm(ctx context.Context, reference string, paidAt time.Time) (bool, error)

	// MarkFailed transitions a pending contribution to failed
	MarkFailed(ctx context.Context, reference string) error

	// ResetForRetry returns a failed contribution to pending under a fresh
	// reference so the member can retry without creating a second row
	ResetForRetry(ctx context.Context, id int64, newReference string) error

	// CountConfirmedForPeriod counts confirmed contributions for a period
	CountConfirmedForPeriod(ctx context.Context, groupID int64, period models.Period) (int, error)

	// GetConfirmedUserIDs returns the users with a confirmed contribution for
	// a period
	GetConfirmedUserIDs(ctx context.Context, groupID int64, period models.Period) ([]int64, error)

	// List returns contributions matching the filter, newest first
	List(ctx context.Context, filter ContributionFilter) ([]*models.Contribution, error)
}

// RotationRepository defines the interface for rotation (payout) data access
type RotationRepository interface {
	// Create inserts the rotation if no row exists yet for its
	// (group, cycle, week). Returns false when another writer won the race;
	// the unique key is the serialization point for payout creation.
	Create(ctx context.Context, rotation *models.Rotation) (bool, error)

	// GetByID retrieves a rotation by its ID
	GetByID(ctx context.Context, id int64) (*models.Rotation, error)

	// GetByPeriod retrieves the rotation for a (group, cycle, week)
	GetByPeriod(ctx context.Context, groupID int64, period models.Period) (*models.Rotation, error)

	// MarkPaid finalizes a rotation after a provider-confirmed transfer
	MarkPaid(ctx context.Context, id int64, transferReference string, paidAt time.Time) error

	// MarkFailed records a provider-reported transfer failure
	MarkFailed(ctx context.Context, id int64) error

	// List returns rotations matching the filter, newest first
	List(ctx context.Context, filter RotationFilter) ([]*models.Rotation, error)
}

// TransactionRepository defines the interface for the audit ledger
type TransactionRepository interface {
	// Record creates a new ledger entry
	Record(ctx context.Context, transaction *models.Transaction) error

	// RecordPayoutAttempt inserts a transfer-guard ledger entry. Returns
	// false when an unresolved attempt already exists for the same target,
	// without inserting.
	RecordPayoutAttempt(ctx context.Context, transaction *models.Transaction) (bool, error)

	// UpdateStatusByReference transitions a ledger entry's status
	UpdateStatusByReference(ctx context.Context, reference string, status models.TransactionStatus) error

	// GetPendingByRelated returns the pending ledger entry attached to an
	// entity, if any
	GetPendingByRelated(ctx context.Context, relatedType models.RelatedType, relatedID int64) (*models.Transaction, error)

	// List returns ledger entries matching the filter, newest first
	List(ctx context.Context, filter TransactionFilter) ([]*models.Transaction, error)
}

// ContributionFilter narrows contribution queries for the report surface
type ContributionFilter struct {
	GroupID *int64
	UserID  *int64
	Status  *models.ContributionStatus
	From    *time.Time
	To      *time.Time
	Limit   int
}

// RotationFilter narrows rotation queries for the report surface
type RotationFilter struct {
	GroupID     *int64
	RecipientID *int64
	Status      *models.RotationStatus
	From        *time.Time
	To          *time.Time
	Limit       int
}

// TransactionFilter narrows ledger queries for the report surface
type TransactionFilter struct {
	UserID *int64
	Type   *models.TransactionType
	Status *models.TransactionStatus
	From   *time.Time
	To     *time.Time
	Limit  int
}

// InitiateResult is returned by InitiateContribution
type InitiateResult struct {
	Contribution *models.Contribution
	Instructions *models.PaymentInstructions
	// Resumed is true when an in-flight pending record for the same period
	// was returned instead of a new one being created
	Resumed bool
}

// ConfirmResult is returned by ConfirmContribution
type ConfirmResult struct {
	Contribution     *models.Contribution
	AlreadyConfirmed bool
}

// ContributionService defines the contribution ledger operations
type ContributionService interface {
	// InitiateContribution validates and records a member's intent to pay for
	// the current period, returning payment instructions
	InitiateContribution(ctx context.Context, userID, groupID, amount int64) (*InitiateResult, error)

	// ConfirmContribution applies a payment-provider confirmation for a
	// reference; safe to call any number of times
	ConfirmContribution(ctx context.Context, reference string) (*ConfirmResult, error)

	// FailContribution applies a payment-provider failure report for a
	// reference, closing out its ledger entry. A confirmation that already
	// landed wins; repeated reports are no-ops.
	FailContribution(ctx context.Context, reference string) error
}

// RotationService decides when a period is complete and who gets paid
type RotationService interface {
	// EvaluatePeriod checks completeness for a (group, cycle, week) and
	// creates the rotation if warranted. Returns the rotation and whether
	// this call created it.
	EvaluatePeriod(ctx context.Context, groupID int64, period models.Period) (*models.Rotation, bool, error)
}

// ReconcileOutcome is the operator's verdict on an ambiguous payout
type ReconcileOutcome string

const (
	ReconcileOutcomePaid   ReconcileOutcome = "paid"
	ReconcileOutcomeFailed ReconcileOutcome = "failed"
)

// PayoutService moves a rotation's funds through the payment provider
type PayoutService interface {
	// Dispatch attempts the transfer for a pending rotation
	Dispatch(ctx context.Context, rotationID int64) error

	// Reconcile resolves a rotation stuck pending after an ambiguous
	// provider response, per operator instruction
	Reconcile(ctx context.Context, rotationID int64, outcome ReconcileOutcome, transferReference string) error
}

// ReportService is the read-only query surface for the admin/report layer
type ReportService interface {
	ListContributions(ctx context.Context, filter ContributionFilter) ([]*models.Contribution, error)
	ListRotations(ctx context.Context, filter RotationFilter) ([]*models.Rotation, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*models.Transaction, error)
	GroupSummary(ctx context.Context, groupID int64) (*GroupSummary, error)
}

// GroupSummary aggregates a group's collection state for reporting
type GroupSummary struct {
	Group              *models.Group
	ActiveMembers      int
	CurrentPeriod      models.Period
	ConfirmedThisWeek  int
	RotationsPaid      int
	RotationsPending   int
	TotalContributions int64
}

// TransferStatus classifies a provider transfer outcome
type TransferStatus string

const (
	TransferStatusSuccess TransferStatus = "success"
	TransferStatusFailed  TransferStatus = "failed"
	// TransferStatusAmbiguous means the outcome is unknown (timeout, 5xx);
	// the caller must not treat it as a failure
	TransferStatusAmbiguous TransferStatus = "ambiguous"
)

// TransferResult is the provider's answer to a transfer attempt
type TransferResult struct {
	Status       TransferStatus
	TransferCode string
	Message      string
}

// PaymentProvider abstracts the external money-movement API
type PaymentProvider interface {
	// CreateRecipient registers a payout destination and returns the
	// provider's handle for it
	CreateRecipient(ctx context.Context, name string, details models.BankDetails) (string, error)

	// Transfer moves funds to a previously created recipient
	Transfer(ctx context.Context, recipientCode string, amount int64, reference, reason string) (TransferResult, error)
}

// Notifier abstracts the outbound messaging gateway. Send is best-effort;
// failures must never block ledger state transitions.
type Notifier interface {
	Send(ctx context.Context, whatsappID string, text string) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	GroupRepository() GroupRepository
	ContributionRepository() ContributionRepository
	RotationRepository() RotationRepository
	TransactionRepository() TransactionRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

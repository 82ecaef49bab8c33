package service

import (
	"context"
	"time"

	"esusu/events"
	"esusu/models"

	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByWhatsappID(ctx context.Context, whatsappID string) (*models.User, error) {
	args := m.Called(ctx, whatsappID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateBankDetails(ctx context.Context, userID int64, details models.BankDetails) error {
	args := m.Called(ctx, userID, details)
	return args.Error(0)
}

// MockGroupRepository is a mock implementation of GroupRepository
type MockGroupRepository struct {
	mock.Mock
}

func (m *MockGroupRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Group), args.Error(1)
}

func (m *MockGroupRepository) GetActiveGroups(ctx context.Context) ([]*models.Group, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Group), args.Error(1)
}

func (m *MockGroupRepository) Create(ctx context.Context, group *models.Group) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *MockGroupRepository) AddMember(ctx context.Context, groupID, userID int64) (*models.GroupMember, error) {
	args := m.Called(ctx, groupID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GroupMember), args.Error(1)
}

func (m *MockGroupRepository) GetMemberSnapshot(ctx context.Context, groupID int64) (*models.MemberSnapshot, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MemberSnapshot), args.Error(1)
}

func (m *MockGroupRepository) IncrementTotalContributions(ctx context.Context, groupID int64, amount int64) error {
	args := m.Called(ctx, groupID, amount)
	return args.Error(0)
}

func (m *MockGroupRepository) AdvanceTo(ctx context.Context, groupID int64, period models.Period) (bool, error) {
	args := m.Called(ctx, groupID, period)
	return args.Bool(0), args.Error(1)
}

// MockContributionRepository is a mock implementation of ContributionRepository
type MockContributionRepository struct {
	mock.Mock
}

func (m *MockContributionRepository) Create(ctx context.Context, contribution *models.Contribution) error {
	args := m.Called(ctx, contribution)
	return args.Error(0)
}

func (m *MockContributionRepository) GetByReference(ctx context.Context, reference string) (*models.Contribution, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contribution), args.Error(1)
}

func (m *MockContributionRepository) GetByUserAndPeriod(ctx context.Context, userID, groupID int64, period models.Period) (*models.Contribution, error) {
	args := m.Called(ctx, userID, groupID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contribution), args.Error(1)
}

func (m *MockContributionRepository) Confirm(ctx context.Context, reference string, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, reference, paidAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockContributionRepository) MarkFailed(ctx context.Context, reference string) error {
	args := m.Called(ctx, reference)
	return args.Error(0)
}

func (m *MockContributionRepository) ResetForRetry(ctx context.Context, id int64, newReference string) error {
	args := m.Called(ctx, id, newReference)
	return args.Error(0)
}

func (m *MockContributionRepository) CountConfirmedForPeriod(ctx context.Context, groupID int64, period models.Period) (int, error) {
	args := m.Called(ctx, groupID, period)
	return args.Int(0), args.Error(1)
}

func (m *MockContributionRepository) GetConfirmedUserIDs(ctx context.Context, groupID int64, period models.Period) ([]int64, error) {
	args := m.Called(ctx, groupID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockContributionRepository) List(ctx context.Context, filter ContributionFilter) ([]*models.Contribution, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Contribution), args.Error(1)
}

// MockRotationRepository is a mock implementation of RotationRepository
type MockRotationRepository struct {
	mock.Mock
}

func (m *MockRotationRepository) Create(ctx context.Context, rotation *models.Rotation) (bool, error) {
	args := m.Called(ctx, rotation)
	return args.Bool(0), args.Error(1)
}

func (m *MockRotationRepository) GetByID(ctx context.Context, id int64) (*models.Rotation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rotation), args.Error(1)
}

func (m *MockRotationRepository) GetByPeriod(ctx context.Context, groupID int64, period models.Period) (*models.Rotation, error) {
	args := m.Called(ctx, groupID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rotation), args.Error(1)
}

func (m *MockRotationRepository) MarkPaid(ctx context.Context, id int64, transferReference string, paidAt time.Time) error {
	args := m.Called(ctx, id, transferReference, paidAt)
	return args.Error(0)
}

func (m *MockRotationRepository) MarkFailed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRotationRepository) List(ctx context.Context, filter RotationFilter) ([]*models.Rotation, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Rotation), args.Error(1)
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Record(ctx context.Context, transaction *models.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) RecordPayoutAttempt(ctx context.Context, transaction *models.Transaction) (bool, error) {
	args := m.Called(ctx, transaction)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) UpdateStatusByReference(ctx context.Context, reference string, status models.TransactionStatus) error {
	args := m.Called(ctx, reference, status)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetPendingByRelated(ctx context.Context, relatedType models.RelatedType, relatedID int64) (*models.Transaction, error) {
	args := m.Called(ctx, relatedType, relatedID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) List(ctx context.Context, filter TransactionFilter) ([]*models.Transaction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// RecordingPublisher captures published events for assertion without the
// ceremony of mock expectations
type RecordingPublisher struct {
	Events []events.Event
}

func (p *RecordingPublisher) Publish(event events.Event) {
	p.Events = append(p.Events, event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Lifecycle methods go
// through mock expectations; repository getters return whatever was wired via
// SetRepositories.
type MockUnitOfWork struct {
	mock.Mock

	userRepo         UserRepository
	groupRepo        GroupRepository
	contributionRepo ContributionRepository
	rotationRepo     RotationRepository
	transactionRepo  TransactionRepository
	eventBus         EventPublisher
}

// SetRepositories wires the repositories the getters return. A nil eventBus
// falls back to a recording publisher, so services can publish freely.
func (m *MockUnitOfWork) SetRepositories(
	userRepo UserRepository,
	groupRepo GroupRepository,
	contributionRepo ContributionRepository,
	rotationRepo RotationRepository,
	transactionRepo TransactionRepository,
	eventBus EventPublisher,
) {
	m.userRepo = userRepo
	m.groupRepo = groupRepo
	m.contributionRepo = contributionRepo
	m.rotationRepo = rotationRepo
	m.transactionRepo = transactionRepo
	if eventBus == nil {
		eventBus = &RecordingPublisher{}
	}
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository {
	return m.userRepo
}

func (m *MockUnitOfWork) GroupRepository() GroupRepository {
	return m.groupRepo
}

func (m *MockUnitOfWork) ContributionRepository() ContributionRepository {
	return m.contributionRepo
}

func (m *MockUnitOfWork) RotationRepository() RotationRepository {
	return m.rotationRepo
}

func (m *MockUnitOfWork) TransactionRepository() TransactionRepository {
	return m.transactionRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockPaymentProvider is a mock implementation of PaymentProvider
type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) CreateRecipient(ctx context.Context, name string, details models.BankDetails) (string, error) {
	args := m.Called(ctx, name, details)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentProvider) Transfer(ctx context.Context, recipientCode string, amount int64, reference, reason string) (TransferResult, error) {
	args := m.Called(ctx, recipientCode, amount, reference, reason)
	return args.Get(0).(TransferResult), args.Error(1)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, whatsappID string, text string) error {
	args := m.Called(ctx, whatsappID, text)
	return args.Error(0)
}

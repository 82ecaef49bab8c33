package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"esusu/models"
	"esusu/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var sweepStart = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

// ten days in: cycle 1, week 2 for a three-member weekly group
var sweepNow = sweepStart.Add(10 * 24 * time.Hour)

type stubRotationService struct {
	calls []models.Period
	err   error
}

func (s *stubRotationService) EvaluatePeriod(ctx context.Context, groupID int64, period models.Period) (*models.Rotation, bool, error) {
	s.calls = append(s.calls, period)
	return nil, false, s.err
}

type stubPayoutService struct {
	dispatched []int64
	err        error
}

func (s *stubPayoutService) Dispatch(ctx context.Context, rotationID int64) error {
	s.dispatched = append(s.dispatched, rotationID)
	return s.err
}

func (s *stubPayoutService) Reconcile(ctx context.Context, rotationID int64, outcome service.ReconcileOutcome, transferReference string) error {
	return nil
}

func sweepGroup() *models.Group {
	return &models.Group{
		ID:                 1,
		Name:               "Lagos Friends",
		ContributionAmount: 500000,
		Cadence:            models.CadenceWeekly,
		StartDate:          sweepStart,
		IsActive:           true,
		LastAdvancedCycle:  1,
		LastAdvancedWeek:   2,
	}
}

func sweepSnapshot() *models.MemberSnapshot {
	return &models.MemberSnapshot{
		GroupID: 1,
		Members: []*models.SnapshotMember{
			{UserID: 10, Name: "Ada", WhatsappID: "2348000000010"},
			{UserID: 20, Name: "Bayo", WhatsappID: "2348000000020"},
			{UserID: 30, Name: "Chidi", WhatsappID: "2348000000030"},
		},
	}
}

type sweepMocks struct {
	uow              *service.MockUnitOfWork
	groupRepo        *service.MockGroupRepository
	contributionRepo *service.MockContributionRepository
	rotationRepo     *service.MockRotationRepository
	notifier         *service.MockNotifier
	rotations        *stubRotationService
	payouts          *stubPayoutService
}

func setupScheduler(groups []*models.Group) (*Scheduler, *sweepMocks) {
	m := &sweepMocks{
		uow:              new(service.MockUnitOfWork),
		groupRepo:        new(service.MockGroupRepository),
		contributionRepo: new(service.MockContributionRepository),
		rotationRepo:     new(service.MockRotationRepository),
		notifier:         new(service.MockNotifier),
		rotations:        &stubRotationService{},
		payouts:          &stubPayoutService{},
	}
	mockFactory := new(service.MockUnitOfWorkFactory)

	m.uow.SetRepositories(nil, m.groupRepo, m.contributionRepo, m.rotationRepo, nil, nil)
	mockFactory.On("Create").Return(m.uow)
	m.groupRepo.On("GetActiveGroups", mock.Anything).Return(groups, nil)

	s := NewScheduler(mockFactory, m.rotations, m.payouts, m.notifier, time.Hour)
	s.now = func() time.Time { return sweepNow }

	return s, m
}

// noPendingRotations is the default for tests not exercising the payout
// catch-up step
func noPendingRotations(m *sweepMocks) {
	m.rotationRepo.On("List", mock.Anything, mock.AnythingOfType("service.RotationFilter")).Return(nil, nil)
}

func TestSweep_RemindsLaggardsOnly(t *testing.T) {
	ctx := context.Background()
	s, m := setupScheduler([]*models.Group{sweepGroup()})
	noPendingRotations(m)

	m.uow.On("Begin", mock.Anything).Return(nil)
	m.uow.On("Rollback").Return(nil)

	period := models.Period{Cycle: 1, Week: 2}
	m.groupRepo.On("GetMemberSnapshot", mock.Anything, int64(1)).Return(sweepSnapshot(), nil)
	m.contributionRepo.On("GetConfirmedUserIDs", mock.Anything, int64(1), period).Return([]int64{10}, nil)

	reminder := mock.MatchedBy(func(text string) bool { return strings.Contains(text, "Reminder") })
	m.notifier.On("Send", mock.Anything, "2348000000020", reminder).Return(nil)
	m.notifier.On("Send", mock.Anything, "2348000000030", reminder).Return(nil)

	s.Sweep(ctx)

	// Completeness catch-up runs for the current period
	require.Len(t, m.rotations.calls, 1)
	assert.Equal(t, period, m.rotations.calls[0])

	// Ada already paid, only the two laggards hear about it
	m.notifier.AssertNumberOfCalls(t, "Send", 2)
	m.notifier.AssertExpectations(t)
}

func TestSweep_AdvancesGroupAndBroadcasts(t *testing.T) {
	ctx := context.Background()
	group := sweepGroup()
	group.LastAdvancedWeek = 1 // still on the previous period
	s, m := setupScheduler([]*models.Group{group})
	noPendingRotations(m)

	m.uow.On("Begin", mock.Anything).Return(nil)
	m.uow.On("Commit").Return(nil)
	m.uow.On("Rollback").Return(nil)

	period := models.Period{Cycle: 1, Week: 2}
	m.groupRepo.On("GetMemberSnapshot", mock.Anything, int64(1)).Return(sweepSnapshot(), nil)
	m.contributionRepo.On("GetConfirmedUserIDs", mock.Anything, int64(1), period).Return(nil, nil)
	m.groupRepo.On("AdvanceTo", mock.Anything, int64(1), period).Return(true, nil)

	// Week 2's recipient is Bayo; the broadcast names them
	broadcast := mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "New contribution week") && strings.Contains(text, "Bayo")
	})
	m.notifier.On("Send", mock.Anything, mock.AnythingOfType("string"), broadcast).Return(nil)

	s.Sweep(ctx)

	// All three members get the broadcast, and no reminders fire in the
	// same sweep that opened the period
	m.notifier.AssertNumberOfCalls(t, "Send", 3)
	m.groupRepo.AssertExpectations(t)
}

func TestSweep_AdvanceRaceLostSendsNothing(t *testing.T) {
	ctx := context.Background()
	group := sweepGroup()
	group.LastAdvancedWeek = 1
	s, m := setupScheduler([]*models.Group{group})
	noPendingRotations(m)

	m.uow.On("Begin", mock.Anything).Return(nil)
	m.uow.On("Commit").Return(nil)
	m.uow.On("Rollback").Return(nil)

	period := models.Period{Cycle: 1, Week: 2}
	m.groupRepo.On("GetMemberSnapshot", mock.Anything, int64(1)).Return(sweepSnapshot(), nil)
	m.contributionRepo.On("GetConfirmedUserIDs", mock.Anything, int64(1), period).Return(nil, nil)

	// Another scheduler instance advanced the group first
	m.groupRepo.On("AdvanceTo", mock.Anything, int64(1), period).Return(false, nil)

	s.Sweep(ctx)

	m.notifier.AssertNotCalled(t, "Send")
}

func TestSweep_GroupFailureDoesNotStallOthers(t *testing.T) {
	ctx := context.Background()
	broken := sweepGroup()
	healthy := sweepGroup()
	healthy.ID = 2
	s, m := setupScheduler([]*models.Group{broken, healthy})
	noPendingRotations(m)

	m.uow.On("Begin", mock.Anything).Return(nil)
	m.uow.On("Rollback").Return(nil)

	m.groupRepo.On("GetMemberSnapshot", mock.Anything, int64(1)).Return(nil, errors.New("connection reset"))
	m.groupRepo.On("GetMemberSnapshot", mock.Anything, int64(2)).Return(sweepSnapshot(), nil)

	period := models.Period{Cycle: 1, Week: 2}
	m.contributionRepo.On("GetConfirmedUserIDs", mock.Anything, int64(2), period).Return([]int64{10, 20, 30}, nil)

	s.Sweep(ctx)

	// The healthy group was still evaluated
	require.Len(t, m.rotations.calls, 1)
	m.notifier.AssertNotCalled(t, "Send")
}

func TestSweep_DispatchesStalledPendingRotations(t *testing.T) {
	ctx := context.Background()
	s, m := setupScheduler(nil)

	m.uow.On("Begin", mock.Anything).Return(nil)
	m.uow.On("Rollback").Return(nil)

	// Two rotations whose dispatch events never reached a handler
	stalled := []*models.Rotation{
		{ID: 7, GroupID: 1, Status: models.RotationStatusPending},
		{ID: 9, GroupID: 2, Status: models.RotationStatusPending},
	}
	m.rotationRepo.On("List", mock.Anything, mock.MatchedBy(func(f service.RotationFilter) bool {
		return f.Status != nil && *f.Status == models.RotationStatusPending
	})).Return(stalled, nil)

	s.Sweep(ctx)

	assert.Equal(t, []int64{7, 9}, m.payouts.dispatched)
}

func TestSweep_ReconciliationBlockedRotationIsNotFatal(t *testing.T) {
	ctx := context.Background()
	s, m := setupScheduler(nil)
	m.payouts.err = service.ErrAwaitingReconciliation

	m.uow.On("Begin", mock.Anything).Return(nil)
	m.uow.On("Rollback").Return(nil)

	m.rotationRepo.On("List", mock.Anything, mock.AnythingOfType("service.RotationFilter")).
		Return([]*models.Rotation{{ID: 7, GroupID: 1, Status: models.RotationStatusPending}}, nil)

	s.Sweep(ctx)

	// The blocked rotation was attempted and surfaced, nothing panicked
	assert.Equal(t, []int64{7}, m.payouts.dispatched)
}

func TestSweep_OverlappingSweepSuppressed(t *testing.T) {
	s, m := setupScheduler(nil)

	s.sweeping.Store(true)
	s.Sweep(context.Background())
	s.sweeping.Store(false)

	// The suppressed sweep never touched the factory or the payout service
	assert.Empty(t, m.payouts.dispatched)
	assert.Empty(t, m.rotations.calls)
}

func TestSweep_EmptyGroupSkipped(t *testing.T) {
	ctx := context.Background()
	s, m := setupScheduler([]*models.Group{sweepGroup()})
	noPendingRotations(m)

	m.uow.On("Begin", mock.Anything).Return(nil)
	m.uow.On("Rollback").Return(nil)

	m.groupRepo.On("GetMemberSnapshot", mock.Anything, int64(1)).Return(&models.MemberSnapshot{GroupID: 1}, nil)

	s.Sweep(ctx)

	assert.Empty(t, m.rotations.calls)
	m.notifier.AssertNotCalled(t, "Send")
}

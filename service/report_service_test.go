package service

import (
	"context"
	"testing"

	"esusu/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupReportService() (ReportService, *MockUnitOfWork, *MockGroupRepository, *MockContributionRepository, *MockRotationRepository, *MockTransactionRepository) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockGroupRepo := new(MockGroupRepository)
	mockContributionRepo := new(MockContributionRepository)
	mockRotationRepo := new(MockRotationRepository)
	mockTransactionRepo := new(MockTransactionRepository)

	mockUoW.SetRepositories(nil, mockGroupRepo, mockContributionRepo, mockRotationRepo, mockTransactionRepo, nil)
	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", mock.Anything).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	return NewReportService(mockFactory), mockUoW, mockGroupRepo, mockContributionRepo, mockRotationRepo, mockTransactionRepo
}

func TestReportService_ListContributions(t *testing.T) {
	svc, _, _, mockContributionRepo, _, _ := setupReportService()
	ctx := context.Background()

	groupID := int64(1)
	filter := ContributionFilter{GroupID: &groupID, Limit: 10}
	expected := []*models.Contribution{{ID: 1}, {ID: 2}}
	mockContributionRepo.On("List", ctx, filter).Return(expected, nil)

	contributions, err := svc.ListContributions(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, expected, contributions)
	mockContributionRepo.AssertExpectations(t)
}

func TestReportService_ListRotations(t *testing.T) {
	svc, _, _, _, mockRotationRepo, _ := setupReportService()
	ctx := context.Background()

	recipientID := int64(20)
	filter := RotationFilter{RecipientID: &recipientID}
	expected := []*models.Rotation{{ID: 7}}
	mockRotationRepo.On("List", ctx, filter).Return(expected, nil)

	rotations, err := svc.ListRotations(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, expected, rotations)
}

func TestReportService_ListTransactions(t *testing.T) {
	svc, _, _, _, _, mockTransactionRepo := setupReportService()
	ctx := context.Background()

	txType := models.TransactionTypePayout
	filter := TransactionFilter{Type: &txType}
	expected := []*models.Transaction{{ID: 3}}
	mockTransactionRepo.On("List", ctx, filter).Return(expected, nil)

	transactions, err := svc.ListTransactions(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, expected, transactions)
}

func TestReportService_GroupSummary(t *testing.T) {
	svc, _, mockGroupRepo, mockContributionRepo, mockRotationRepo, _ := setupReportService()
	ctx := context.Background()

	group := testGroup()
	group.TotalContributions = 3000000
	mockGroupRepo.On("GetByID", ctx, int64(1)).Return(group, nil)
	mockGroupRepo.On("GetMemberSnapshot", ctx, int64(1)).Return(testSnapshot(), nil)
	mockContributionRepo.On("CountConfirmedForPeriod", ctx, int64(1), mock.AnythingOfType("models.Period")).Return(2, nil)

	paidStatus := models.RotationStatusPaid
	mockRotationRepo.On("List", ctx, mock.MatchedBy(func(f RotationFilter) bool {
		return f.Status != nil && *f.Status == paidStatus
	})).Return([]*models.Rotation{{ID: 1}}, nil)
	pendingStatus := models.RotationStatusPending
	mockRotationRepo.On("List", ctx, mock.MatchedBy(func(f RotationFilter) bool {
		return f.Status != nil && *f.Status == pendingStatus
	})).Return(nil, nil)

	summary, err := svc.GroupSummary(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, group, summary.Group)
	assert.Equal(t, 3, summary.ActiveMembers)
	assert.Equal(t, 2, summary.ConfirmedThisWeek)
	assert.Equal(t, 1, summary.RotationsPaid)
	assert.Equal(t, 0, summary.RotationsPending)
	assert.Equal(t, int64(3000000), summary.TotalContributions)
}

func TestReportService_GroupSummary_NotFound(t *testing.T) {
	svc, _, mockGroupRepo, _, _, _ := setupReportService()
	ctx := context.Background()

	mockGroupRepo.On("GetByID", ctx, int64(99)).Return(nil, nil)

	summary, err := svc.GroupSummary(ctx, 99)
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, ErrNotFound)
}

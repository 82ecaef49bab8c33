package service

import (
	"context"
	"fmt"
	"time"

	"esusu/models"
)

type reportService struct {
	uowFactory UnitOfWorkFactory
}

// NewReportService creates the read-only query surface
func NewReportService(uowFactory UnitOfWorkFactory) ReportService {
	return &reportService{uowFactory: uowFactory}
}

func (s *reportService) ListContributions(ctx context.Context, filter ContributionFilter) ([]*models.Contribution, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.ContributionRepository().List(ctx, filter)
}

func (s *reportService) ListRotations(ctx context.Context, filter RotationFilter) ([]*models.Rotation, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.RotationRepository().List(ctx, filter)
}

func (s *reportService) ListTransactions(ctx context.Context, filter TransactionFilter) ([]*models.Transaction, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.TransactionRepository().List(ctx, filter)
}

// GroupSummary reads the group's collection state in a single transaction so
// the counts are mutually consistent.
func (s *reportService) GroupSummary(ctx context.Context, groupID int64) (*GroupSummary, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	group, err := uow.GroupRepository().GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	if group == nil {
		return nil, fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}

	snapshot, err := uow.GroupRepository().GetMemberSnapshot(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member snapshot: %w", err)
	}

	period := CurrentPeriod(group.StartDate, time.Now().UTC(), group.Cadence, snapshot.Count())

	confirmed, err := uow.ContributionRepository().CountConfirmedForPeriod(ctx, groupID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to count confirmed contributions: %w", err)
	}

	paidStatus := models.RotationStatusPaid
	paid, err := uow.RotationRepository().List(ctx, RotationFilter{GroupID: &groupID, Status: &paidStatus})
	if err != nil {
		return nil, fmt.Errorf("failed to list paid rotations: %w", err)
	}

	pendingStatus := models.RotationStatusPending
	pending, err := uow.RotationRepository().List(ctx, RotationFilter{GroupID: &groupID, Status: &pendingStatus})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending rotations: %w", err)
	}

	return &GroupSummary{
		Group:              group,
		ActiveMembers:      snapshot.Count(),
		CurrentPeriod:      period,
		ConfirmedThisWeek:  confirmed,
		RotationsPaid:      len(paid),
		RotationsPending:   len(pending),
		TotalContributions: group.TotalContributions,
	}, nil
}

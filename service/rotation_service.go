package service

import (
	"context"
	"fmt"

	"esusu/events"
	"esusu/models"
	"esusu/observability"

	log "github.com/sirupsen/logrus"
)

type rotationService struct {
	uowFactory UnitOfWorkFactory
}

// NewRotationService creates a new rotation engine
func NewRotationService(uowFactory UnitOfWorkFactory) RotationService {
	return &rotationService{
		uowFactory: uowFactory,
	}
}

// EvaluatePeriod checks whether every active member has a confirmed
// contribution for the period and, if so, creates the payout rotation.
// Creation is exactly-once per (group, cycle, week): the rotations unique key
// decides the winner among concurrent evaluations, so this is safe to call
// from racing confirmation callbacks and from the periodic sweep.
func (s *rotationService) EvaluatePeriod(ctx context.Context, groupID int64, period models.Period) (*models.Rotation, bool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	group, err := uow.GroupRepository().GetByID(ctx, groupID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get group: %w", err)
	}
	if group == nil {
		return nil, false, fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	if !group.IsActive {
		return nil, false, nil
	}

	// Membership is evaluated now, not at period start: completeness and
	// recipient selection must come from the one snapshot
	snapshot, err := uow.GroupRepository().GetMemberSnapshot(ctx, groupID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get member snapshot: %w", err)
	}
	if snapshot.Count() == 0 {
		return nil, false, nil
	}

	confirmed, err := uow.ContributionRepository().CountConfirmedForPeriod(ctx, groupID, period)
	if err != nil {
		return nil, false, fmt.Errorf("failed to count confirmed contributions: %w", err)
	}

	// A confirmed contribution from a member deactivated afterwards still
	// counts: the funds were collected
	if confirmed < snapshot.Count() {
		return nil, false, nil
	}

	recipient := snapshot.RecipientFor(period.Week)

	rotation := &models.Rotation{
		GroupID:     groupID,
		RecipientID: recipient.UserID,
		Cycle:       period.Cycle,
		Week:        period.Week,
		Amount:      group.ContributionAmount * int64(snapshot.Count()),
		Status:      models.RotationStatusPending,
	}

	created, err := uow.RotationRepository().Create(ctx, rotation)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create rotation: %w", err)
	}
	if !created {
		// Another confirmation already completed this period
		return nil, false, nil
	}

	// Dispatch happens after commit; the rotation row must be durable before
	// any external transfer call
	uow.EventBus().Publish(events.RotationCreatedEvent{
		RotationID:  rotation.ID,
		GroupID:     groupID,
		RecipientID: recipient.UserID,
		Cycle:       period.Cycle,
		Week:        period.Week,
		Amount:      rotation.Amount,
	})

	if err := uow.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	observability.RotationsCreated.Inc()

	log.WithFields(log.Fields{
		"groupId":     groupID,
		"cycle":       period.Cycle,
		"week":        period.Week,
		"recipientId": recipient.UserID,
		"amount":      rotation.Amount,
	}).Info("Rotation created for completed period")

	return rotation, true, nil
}

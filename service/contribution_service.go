package service

import (
	"context"
	"fmt"
	"time"

	"esusu/config"
	"esusu/events"
	"esusu/models"
	"esusu/observability"

	log "github.com/sirupsen/logrus"
)

type contributionService struct {
	uowFactory UnitOfWorkFactory
	cfg        *config.Config
	now        func() time.Time
}

// NewContributionService creates a new contribution ledger service
func NewContributionService(uowFactory UnitOfWorkFactory, cfg *config.Config) ContributionService {
	return &contributionService{
		uowFactory: uowFactory,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *contributionService) InitiateContribution(ctx context.Context, userID, groupID, amount int64) (*InitiateResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	group, err := uow.GroupRepository().GetByID(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	if group == nil {
		return nil, fmt.Errorf("group %d: %w", groupID, ErrNotFound)
	}
	if !group.IsActive {
		return nil, ErrGroupInactive
	}

	snapshot, err := uow.GroupRepository().GetMemberSnapshot(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member snapshot: %w", err)
	}
	if !snapshot.Contains(userID) {
		return nil, ErrNotMember
	}

	if amount != group.ContributionAmount {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrAmountMismatch, group.ContributionAmount, amount)
	}

	now := s.now()
	period := CurrentPeriod(group.StartDate, now, group.Cadence, snapshot.Count())

	existing, err := uow.ContributionRepository().GetByUserAndPeriod(ctx, userID, groupID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing contribution: %w", err)
	}

	if existing != nil {
		switch existing.Status {
		case models.ContributionStatusConfirmed:
			return nil, ErrAlreadyContributed

		case models.ContributionStatusPending:
			// In-flight attempt; hand the caller its reference again so
			// client retries converge on one record
			return &InitiateResult{
				Contribution: existing,
				Instructions: s.buildInstructions(existing.Reference, amount, existing.CreatedAt),
				Resumed:      true,
			}, nil

		case models.ContributionStatusFailed:
			// Retry reuses the row under a fresh reference. The failed
			// attempt's ledger entry is cancelled if FailContribution has
			// not already closed it out.
			staleReference := existing.Reference
			reference := NewReference()
			if err := uow.ContributionRepository().ResetForRetry(ctx, existing.ID, reference); err != nil {
				return nil, fmt.Errorf("failed to reset failed contribution: %w", err)
			}
			if err := uow.TransactionRepository().UpdateStatusByReference(ctx, staleReference, models.TransactionStatusCancelled); err != nil {
				return nil, fmt.Errorf("failed to cancel stale ledger entry: %w", err)
			}
			if err := s.recordLedgerEntry(ctx, uow, existing.ID, userID, group, period, reference); err != nil {
				return nil, err
			}
			if err := uow.Commit(); err != nil {
				return nil, fmt.Errorf("failed to commit transaction: %w", err)
			}

			existing.Reference = reference
			existing.Status = models.ContributionStatusPending
			return &InitiateResult{
				Contribution: existing,
				Instructions: s.buildInstructions(reference, amount, now),
			}, nil
		}
	}

	contribution := &models.Contribution{
		UserID:    userID,
		GroupID:   groupID,
		Amount:    amount,
		Cycle:     period.Cycle,
		Week:      period.Week,
		Reference: NewReference(),
		Status:    models.ContributionStatusPending,
	}

	if err := uow.ContributionRepository().Create(ctx, contribution); err != nil {
		return nil, fmt.Errorf("failed to create contribution: %w", err)
	}

	if err := s.recordLedgerEntry(ctx, uow, contribution.ID, userID, group, period, contribution.Reference); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userId":    userID,
		"groupId":   groupID,
		"cycle":     period.Cycle,
		"week":      period.Week,
		"reference": contribution.Reference,
	}).Info("Contribution initiated")

	return &InitiateResult{
		Contribution: contribution,
		Instructions: s.buildInstructions(contribution.Reference, amount, now),
	}, nil
}

func (s *contributionService) ConfirmContribution(ctx context.Context, reference string) (*ConfirmResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	contribution, err := uow.ContributionRepository().GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to get contribution: %w", err)
	}
	if contribution == nil {
		return nil, fmt.Errorf("contribution %s: %w", reference, ErrNotFound)
	}

	if contribution.IsConfirmed() {
		// Provider callbacks may be delivered more than once
		return &ConfirmResult{Contribution: contribution, AlreadyConfirmed: true}, nil
	}

	paidAt := s.now()
	updated, err := uow.ContributionRepository().Confirm(ctx, reference, paidAt)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm contribution: %w", err)
	}
	if !updated {
		// A concurrent callback won; its transaction applied the side effects
		contribution.Status = models.ContributionStatusConfirmed
		return &ConfirmResult{Contribution: contribution, AlreadyConfirmed: true}, nil
	}

	if err := uow.GroupRepository().IncrementTotalContributions(ctx, contribution.GroupID, contribution.Amount); err != nil {
		return nil, fmt.Errorf("failed to update group total: %w", err)
	}

	if err := uow.TransactionRepository().UpdateStatusByReference(ctx, reference, models.TransactionStatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to update ledger entry: %w", err)
	}

	// Completeness evaluation happens after commit so the rotation engine
	// never runs inside the confirmation write path
	uow.EventBus().Publish(events.ContributionConfirmedEvent{
		ContributionID: contribution.ID,
		UserID:         contribution.UserID,
		GroupID:        contribution.GroupID,
		Cycle:          contribution.Cycle,
		Week:           contribution.Week,
		Amount:         contribution.Amount,
		Reference:      reference,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	observability.ContributionsConfirmed.Inc()

	log.WithFields(log.Fields{
		"reference": reference,
		"groupId":   contribution.GroupID,
		"cycle":     contribution.Cycle,
		"week":      contribution.Week,
	}).Info("Contribution confirmed")

	contribution.Status = models.ContributionStatusConfirmed
	contribution.PaidAt = &paidAt
	return &ConfirmResult{Contribution: contribution}, nil
}

func (s *contributionService) FailContribution(ctx context.Context, reference string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	contribution, err := uow.ContributionRepository().GetByReference(ctx, reference)
	if err != nil {
		return fmt.Errorf("failed to get contribution: %w", err)
	}
	if contribution == nil {
		return fmt.Errorf("contribution %s: %w", reference, ErrNotFound)
	}

	// A success callback that already landed wins; a failure report can also
	// arrive more than once
	if contribution.Status != models.ContributionStatusPending {
		return nil
	}

	if err := uow.ContributionRepository().MarkFailed(ctx, reference); err != nil {
		return fmt.Errorf("failed to mark contribution failed: %w", err)
	}

	if err := uow.TransactionRepository().UpdateStatusByReference(ctx, reference, models.TransactionStatusFailed); err != nil {
		return fmt.Errorf("failed to update ledger entry: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"reference":      reference,
		"groupId":        contribution.GroupID,
		"contributionId": contribution.ID,
	}).Info("Contribution marked failed from provider report")

	return nil
}

func (s *contributionService) recordLedgerEntry(ctx context.Context, uow UnitOfWork, contributionID, userID int64, group *models.Group, period models.Period, reference string) error {
	relatedType := models.RelatedTypeContribution
	entry := &models.Transaction{
		UserID:      userID,
		GroupID:     &group.ID,
		Amount:      group.ContributionAmount,
		Type:        models.TransactionTypeContribution,
		Reference:   reference,
		Description: fmt.Sprintf("Contribution to %s - Cycle %d, Week %d", group.Name, period.Cycle, period.Week),
		Status:      models.TransactionStatusPending,
		RelatedID:   &contributionID,
		RelatedType: &relatedType,
	}
	if err := uow.TransactionRepository().Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}
	return nil
}

func (s *contributionService) buildInstructions(reference string, amount int64, initiatedAt time.Time) *models.PaymentInstructions {
	return &models.PaymentInstructions{
		BankName:      s.cfg.CollectionBankName,
		AccountNumber: s.cfg.CollectionAccountNumber,
		AccountName:   s.cfg.CollectionAccountName,
		Reference:     reference,
		Amount:        amount,
		ExpiresAt:     initiatedAt.Add(s.cfg.PaymentExpiry),
	}
}

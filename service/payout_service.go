package service

import (
	"context"
	"fmt"
	"time"

	"esusu/events"
	"esusu/models"
	"esusu/observability"

	log "github.com/sirupsen/logrus"
)

type payoutService struct {
	uowFactory UnitOfWorkFactory
	provider   PaymentProvider
	notifier   Notifier
	now        func() time.Time
}

// NewPayoutService creates a new payout dispatcher
func NewPayoutService(uowFactory UnitOfWorkFactory, provider PaymentProvider, notifier Notifier) PayoutService {
	return &payoutService{
		uowFactory: uowFactory,
		provider:   provider,
		notifier:   notifier,
		now:        time.Now,
	}
}

// Dispatch moves a pending rotation's funds to its recipient. The provider
// transfer happens outside any database transaction; a pending ledger entry
// recorded before the transfer is the dispatch guard, so an ambiguous outcome
// blocks further attempts until an operator reconciles it.
func (s *payoutService) Dispatch(ctx context.Context, rotationID int64) error {
	rotation, group, recipient, err := s.loadDispatchState(ctx, rotationID)
	if err != nil {
		return err
	}
	if rotation == nil {
		// Already resolved; nothing to do
		return nil
	}

	if !recipient.HasPayoutDetails() {
		observability.PayoutsBlocked.Inc()
		log.WithFields(log.Fields{
			"rotationId":  rotationID,
			"recipientId": recipient.ID,
			"groupId":     rotation.GroupID,
		}).Error("Payout blocked: recipient has no bank details on file")
		return ErrMissingPayoutDetails
	}

	// Recipient registration moves no money; a failure here leaves the
	// rotation pending and is safe to retry
	recipientCode, err := s.provider.CreateRecipient(ctx, recipient.Name, *recipient.BankDetails)
	if err != nil {
		return fmt.Errorf("failed to create transfer recipient: %w", err)
	}

	reference := NewReference()
	reason := fmt.Sprintf("Thrift payout - %s Cycle %d Week %d", group.Name, rotation.Cycle, rotation.Week)

	if err := s.recordPayoutAttempt(ctx, rotation, recipient.ID, reference, reason); err != nil {
		return err
	}

	result, err := s.provider.Transfer(ctx, recipientCode, rotation.Amount, reference, reason)
	if err != nil {
		// Transport-level surprises are ambiguous outcomes: money may have
		// moved, so the rotation and its ledger guard stay pending
		observability.PayoutsDispatched.WithLabelValues("ambiguous").Inc()
		log.WithFields(log.Fields{
			"rotationId": rotationID,
			"reference":  reference,
		}).WithError(err).Error("Payout outcome unknown, awaiting reconciliation")
		return fmt.Errorf("%w: %v", ErrProviderAmbiguous, err)
	}

	switch result.Status {
	case TransferStatusSuccess:
		return s.finalizePaid(ctx, rotation, reference, result.TransferCode)

	case TransferStatusFailed:
		return s.finalizeFailed(ctx, rotation, reference, result.Message)

	default:
		observability.PayoutsDispatched.WithLabelValues("ambiguous").Inc()
		log.WithFields(log.Fields{
			"rotationId": rotationID,
			"reference":  reference,
			"message":    result.Message,
		}).Error("Payout outcome unknown, awaiting reconciliation")
		return fmt.Errorf("%w: %s", ErrProviderAmbiguous, result.Message)
	}
}

// Reconcile resolves a rotation left pending by an ambiguous provider
// response. Operator-initiated only; never called automatically.
func (s *payoutService) Reconcile(ctx context.Context, rotationID int64, outcome ReconcileOutcome, transferReference string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	rotation, err := uow.RotationRepository().GetByID(ctx, rotationID)
	if err != nil {
		return fmt.Errorf("failed to get rotation: %w", err)
	}
	if rotation == nil {
		return fmt.Errorf("rotation %d: %w", rotationID, ErrNotFound)
	}
	if !rotation.IsPending() {
		return fmt.Errorf("rotation %d is already %s", rotationID, rotation.Status)
	}

	guard, err := uow.TransactionRepository().GetPendingByRelated(ctx, models.RelatedTypeRotation, rotationID)
	if err != nil {
		return fmt.Errorf("failed to get pending payout entry: %w", err)
	}

	switch outcome {
	case ReconcileOutcomePaid:
		reference := transferReference
		if reference == "" && guard != nil {
			reference = guard.Reference
		}
		if err := uow.RotationRepository().MarkPaid(ctx, rotationID, reference, s.now()); err != nil {
			return fmt.Errorf("failed to mark rotation paid: %w", err)
		}
		if guard != nil {
			if err := uow.TransactionRepository().UpdateStatusByReference(ctx, guard.Reference, models.TransactionStatusCompleted); err != nil {
				return fmt.Errorf("failed to complete payout entry: %w", err)
			}
		}

	case ReconcileOutcomeFailed:
		// The transfer never happened: clear the guard so a fresh dispatch
		// can run, and leave the rotation pending
		if guard != nil {
			if err := uow.TransactionRepository().UpdateStatusByReference(ctx, guard.Reference, models.TransactionStatusCancelled); err != nil {
				return fmt.Errorf("failed to cancel payout entry: %w", err)
			}
		}

	default:
		return fmt.Errorf("unknown reconcile outcome %q", outcome)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"rotationId": rotationID,
		"outcome":    outcome,
	}).Info("Rotation reconciled")

	return nil
}

// loadDispatchState reads everything Dispatch needs in one read-only
// transaction. Returns a nil rotation when the payout is already resolved.
func (s *payoutService) loadDispatchState(ctx context.Context, rotationID int64) (*models.Rotation, *models.Group, *models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	rotation, err := uow.RotationRepository().GetByID(ctx, rotationID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get rotation: %w", err)
	}
	if rotation == nil {
		return nil, nil, nil, fmt.Errorf("rotation %d: %w", rotationID, ErrNotFound)
	}
	if !rotation.IsPending() {
		return nil, nil, nil, nil
	}

	guard, err := uow.TransactionRepository().GetPendingByRelated(ctx, models.RelatedTypeRotation, rotationID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get pending payout entry: %w", err)
	}
	if guard != nil {
		return nil, nil, nil, ErrAwaitingReconciliation
	}

	group, err := uow.GroupRepository().GetByID(ctx, rotation.GroupID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get group: %w", err)
	}
	if group == nil {
		return nil, nil, nil, fmt.Errorf("group %d: %w", rotation.GroupID, ErrNotFound)
	}

	recipient, err := uow.UserRepository().GetByID(ctx, rotation.RecipientID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	if recipient == nil {
		return nil, nil, nil, fmt.Errorf("recipient %d: %w", rotation.RecipientID, ErrNotFound)
	}

	return rotation, group, recipient, nil
}

// recordPayoutAttempt durably records the transfer about to be attempted.
// The guard insert carries a unique constraint on its payout target, so a
// concurrent dispatch that slipped past the pending-entry read loses here
// instead of reaching the provider twice.
func (s *payoutService) recordPayoutAttempt(ctx context.Context, rotation *models.Rotation, recipientID int64, reference, reason string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	relatedType := models.RelatedTypeRotation
	entry := &models.Transaction{
		UserID:      recipientID,
		GroupID:     &rotation.GroupID,
		Amount:      rotation.Amount,
		Type:        models.TransactionTypePayout,
		Reference:   reference,
		Description: reason,
		Status:      models.TransactionStatusPending,
		RelatedID:   &rotation.ID,
		RelatedType: &relatedType,
	}
	created, err := uow.TransactionRepository().RecordPayoutAttempt(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to record payout attempt: %w", err)
	}
	if !created {
		log.WithFields(log.Fields{
			"rotationId": rotation.ID,
			"reference":  reference,
		}).Warn("Concurrent dispatch already holds the payout guard")
		return fmt.Errorf("rotation %d: %w", rotation.ID, ErrAwaitingReconciliation)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *payoutService) finalizePaid(ctx context.Context, rotation *models.Rotation, reference, transferCode string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	paidAt := s.now()
	if err := uow.RotationRepository().MarkPaid(ctx, rotation.ID, reference, paidAt); err != nil {
		return fmt.Errorf("failed to mark rotation paid: %w", err)
	}
	if err := uow.TransactionRepository().UpdateStatusByReference(ctx, reference, models.TransactionStatusCompleted); err != nil {
		return fmt.Errorf("failed to complete payout entry: %w", err)
	}

	uow.EventBus().Publish(events.RotationPaidEvent{
		RotationID:        rotation.ID,
		GroupID:           rotation.GroupID,
		RecipientID:       rotation.RecipientID,
		Amount:            rotation.Amount,
		TransferReference: reference,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	observability.PayoutsDispatched.WithLabelValues("success").Inc()

	log.WithFields(log.Fields{
		"rotationId":   rotation.ID,
		"reference":    reference,
		"transferCode": transferCode,
		"amount":       rotation.Amount,
	}).Info("Rotation paid")

	s.notifyPayout(ctx, rotation)
	return nil
}

func (s *payoutService) finalizeFailed(ctx context.Context, rotation *models.Rotation, reference, message string) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.RotationRepository().MarkFailed(ctx, rotation.ID); err != nil {
		return fmt.Errorf("failed to mark rotation failed: %w", err)
	}
	if err := uow.TransactionRepository().UpdateStatusByReference(ctx, reference, models.TransactionStatusFailed); err != nil {
		return fmt.Errorf("failed to fail payout entry: %w", err)
	}

	uow.EventBus().Publish(events.RotationFailedEvent{
		RotationID:  rotation.ID,
		GroupID:     rotation.GroupID,
		RecipientID: rotation.RecipientID,
		Amount:      rotation.Amount,
		Reason:      message,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	observability.PayoutsDispatched.WithLabelValues("failed").Inc()

	// Retrying risks a double transfer; the failure is surfaced for the
	// operator instead
	log.WithFields(log.Fields{
		"rotationId": rotation.ID,
		"reference":  reference,
		"message":    message,
	}).Error("Payout failed, operator action required")

	return fmt.Errorf("%w: %s", ErrProviderFailure, message)
}

// notifyPayout tells the recipient and the rest of the group about a
// completed payout. Best-effort: messaging failures are logged only.
func (s *payoutService) notifyPayout(ctx context.Context, rotation *models.Rotation) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		log.WithError(err).Warn("Skipping payout notifications")
		return
	}
	defer uow.Rollback()

	group, err := uow.GroupRepository().GetByID(ctx, rotation.GroupID)
	if err != nil || group == nil {
		log.WithError(err).Warn("Skipping payout notifications: group lookup failed")
		return
	}
	snapshot, err := uow.GroupRepository().GetMemberSnapshot(ctx, rotation.GroupID)
	if err != nil {
		log.WithError(err).Warn("Skipping payout notifications: snapshot lookup failed")
		return
	}

	var recipientName string
	for _, m := range snapshot.Members {
		if m.UserID == rotation.RecipientID {
			recipientName = m.Name
			break
		}
	}

	for _, member := range snapshot.Members {
		var text string
		if member.UserID == rotation.RecipientID {
			text = fmt.Sprintf("Congratulations! You've received your thrift payout of NGN %d from %s (Cycle %d, Week %d). The money has been sent to your registered account.",
				rotation.Amount, group.Name, rotation.Cycle, rotation.Week)
		} else {
			text = fmt.Sprintf("%s received this week's payout of NGN %d from %s. Next contribution cycle starts soon!",
				recipientName, rotation.Amount, group.Name)
		}
		if err := s.notifier.Send(ctx, member.WhatsappID, text); err != nil {
			log.WithFields(log.Fields{
				"userId":     member.UserID,
				"rotationId": rotation.ID,
			}).WithError(err).Warn("Failed to send payout notification")
		}
	}
}

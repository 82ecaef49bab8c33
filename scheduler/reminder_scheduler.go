// Package scheduler runs the periodic sweep that keeps groups moving: period
// advancement, completeness catch-up and contribution reminders.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"esusu/models"
	"esusu/observability"
	"esusu/service"

	log "github.com/sirupsen/logrus"
)

// Scheduler periodically sweeps all active groups. Each sweep is independent
// and idempotent, so overlapping deployments running their own schedulers
// cannot double-apply any transition.
type Scheduler struct {
	uowFactory      service.UnitOfWorkFactory
	rotationService service.RotationService
	payoutService   service.PayoutService
	notifier        service.Notifier
	interval        time.Duration
	now             func() time.Time

	sweeping atomic.Bool
}

// NewScheduler creates a sweep scheduler
func NewScheduler(uowFactory service.UnitOfWorkFactory, rotationService service.RotationService, payoutService service.PayoutService, notifier service.Notifier, interval time.Duration) *Scheduler {
	return &Scheduler{
		uowFactory:      uowFactory,
		rotationService: rotationService,
		payoutService:   payoutService,
		notifier:        notifier,
		interval:        interval,
		now:             time.Now,
	}
}

// Start launches the sweep worker. Returns a cleanup function to stop the
// worker gracefully.
func (s *Scheduler) Start(ctx context.Context) func() {
	ticker := time.NewTicker(s.interval)
	stopChan := make(chan struct{})

	go func() {
		log.WithField("interval", s.interval).Info("Reminder scheduler started")

		// Run immediately on startup
		s.Sweep(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info("Reminder scheduler shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Reminder scheduler shutting down (stop requested)...")
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(stopChan)
	}
}

// Sweep processes all active groups once. A sweep that is still running when
// the next tick fires suppresses the new one.
func (s *Scheduler) Sweep(ctx context.Context) {
	if !s.sweeping.CompareAndSwap(false, true) {
		log.Warn("Previous sweep still running, skipping")
		return
	}
	defer s.sweeping.Store(false)

	groups, err := s.activeGroups(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load active groups for sweep")
		return
	}

	for _, group := range groups {
		if err := s.processGroup(ctx, group); err != nil {
			// One failing group must not stall the rest
			log.WithFields(log.Fields{
				"groupId": group.ID,
			}).WithError(err).Error("Failed to process group in sweep")
		}
	}

	s.dispatchStalledRotations(ctx)
}

// dispatchStalledRotations retries the payout for every rotation still
// pending. A rotation whose dispatch event was lost (crash between the
// creating commit and the handler) has no guard ledger entry, so redispatching
// it is safe; one with a guard comes back as awaiting reconciliation and is
// surfaced for the operator instead of retried.
func (s *Scheduler) dispatchStalledRotations(ctx context.Context) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		log.WithError(err).Error("Failed to load pending rotations for sweep")
		return
	}
	defer uow.Rollback()

	status := models.RotationStatusPending
	rotations, err := uow.RotationRepository().List(ctx, service.RotationFilter{Status: &status})
	if err != nil {
		log.WithError(err).Error("Failed to load pending rotations for sweep")
		return
	}

	for _, rotation := range rotations {
		err := s.payoutService.Dispatch(ctx, rotation.ID)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrAwaitingReconciliation):
			log.WithFields(log.Fields{
				"rotationId": rotation.ID,
				"groupId":    rotation.GroupID,
			}).Warn("Rotation payout awaiting operator reconciliation")
		case errors.Is(err, service.ErrMissingPayoutDetails):
			// Dispatch already logged and counted the blocked payout
		default:
			log.WithFields(log.Fields{
				"rotationId": rotation.ID,
				"groupId":    rotation.GroupID,
			}).WithError(err).Error("Failed to dispatch pending rotation in sweep")
		}
	}
}

func (s *Scheduler) activeGroups(ctx context.Context) ([]*models.Group, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.GroupRepository().GetActiveGroups(ctx)
}

func (s *Scheduler) processGroup(ctx context.Context, group *models.Group) error {
	snapshot, laggards, err := s.readGroupState(ctx, group)
	if err != nil {
		return err
	}
	if snapshot.Count() == 0 {
		return nil
	}

	period := service.CurrentPeriod(group.StartDate, s.now().UTC(), group.Cadence, snapshot.Count())

	// Completeness catch-up: a confirmation whose follow-up evaluation was
	// lost (crash between commit and event delivery) gets retried here. The
	// rotation's unique key makes the retry harmless.
	if _, _, err := s.rotationService.EvaluatePeriod(ctx, group.ID, period); err != nil {
		log.WithFields(log.Fields{
			"groupId": group.ID,
			"cycle":   period.Cycle,
			"week":    period.Week,
		}).WithError(err).Error("Period evaluation failed during sweep")
	}

	if !group.HasAdvancedTo(period) {
		if err := s.advanceGroup(ctx, group, snapshot, period); err != nil {
			return err
		}
		// A new period just opened; reminders for it would be premature
		return nil
	}

	s.remindLaggards(ctx, group, snapshot, laggards, period)
	return nil
}

// readGroupState loads the member snapshot and the set of members without a
// confirmed contribution for the current period, in one transaction
func (s *Scheduler) readGroupState(ctx context.Context, group *models.Group) (*models.MemberSnapshot, map[int64]bool, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	snapshot, err := uow.GroupRepository().GetMemberSnapshot(ctx, group.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get member snapshot: %w", err)
	}
	if snapshot.Count() == 0 {
		return snapshot, nil, nil
	}

	period := service.CurrentPeriod(group.StartDate, s.now().UTC(), group.Cadence, snapshot.Count())
	confirmedIDs, err := uow.ContributionRepository().GetConfirmedUserIDs(ctx, group.ID, period)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get confirmed user IDs: %w", err)
	}

	confirmed := make(map[int64]bool, len(confirmedIDs))
	for _, id := range confirmedIDs {
		confirmed[id] = true
	}

	laggards := make(map[int64]bool)
	for _, member := range snapshot.Members {
		if !confirmed[member.UserID] {
			laggards[member.UserID] = true
		}
	}

	return snapshot, laggards, nil
}

// advanceGroup moves the group's stored counters to the current period and
// broadcasts the new week. The conditional update means only one of any
// number of concurrent sweeps sends the broadcast.
func (s *Scheduler) advanceGroup(ctx context.Context, group *models.Group, snapshot *models.MemberSnapshot, period models.Period) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	advanced, err := uow.GroupRepository().AdvanceTo(ctx, group.ID, period)
	if err != nil {
		return fmt.Errorf("failed to advance group %d: %w", group.ID, err)
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if !advanced {
		return nil
	}

	log.WithFields(log.Fields{
		"groupId": group.ID,
		"cycle":   period.Cycle,
		"week":    period.Week,
	}).Info("Group advanced to new period")

	recipient := snapshot.RecipientFor(period.Week)
	deadline := service.PeriodDeadline(group.StartDate, group.Cadence, period, snapshot.Count())

	for _, member := range snapshot.Members {
		text := fmt.Sprintf("New contribution week for %s! Cycle %d, Week %d. This week's recipient is %s. Contribute NGN %d before %s.",
			group.Name, period.Cycle, period.Week, recipient.Name, group.ContributionAmount, deadline.Format("Mon, 02 Jan 2006"))
		if err := s.notifier.Send(ctx, member.WhatsappID, text); err != nil {
			log.WithFields(log.Fields{
				"userId":  member.UserID,
				"groupId": group.ID,
			}).WithError(err).Warn("Failed to send new period broadcast")
		}
	}

	return nil
}

func (s *Scheduler) remindLaggards(ctx context.Context, group *models.Group, snapshot *models.MemberSnapshot, laggards map[int64]bool, period models.Period) {
	if len(laggards) == 0 {
		return
	}

	deadline := service.PeriodDeadline(group.StartDate, group.Cadence, period, snapshot.Count())

	for _, member := range snapshot.Members {
		if !laggards[member.UserID] {
			continue
		}
		text := fmt.Sprintf("Reminder: your NGN %d contribution to %s for Cycle %d, Week %d is still outstanding. Please pay before %s.",
			group.ContributionAmount, group.Name, period.Cycle, period.Week, deadline.Format("Mon, 02 Jan 2006"))
		if err := s.notifier.Send(ctx, member.WhatsappID, text); err != nil {
			log.WithFields(log.Fields{
				"userId":  member.UserID,
				"groupId": group.ID,
			}).WithError(err).Warn("Failed to send contribution reminder")
			continue
		}
		observability.RemindersSent.Inc()
	}
}

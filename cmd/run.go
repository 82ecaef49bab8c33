package cmd

import (
	"context"
	"fmt"
	"time"

	"esusu/config"
	"esusu/database"
	"esusu/events"
	"esusu/models"
	"esusu/notification"
	"esusu/payment"
	"esusu/repository"
	"esusu/scheduler"
	"esusu/service"
	"esusu/webhook"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Info("Starting thrift engine...")

	cfg := config.Get()

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established")

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	var notifier service.Notifier
	if cfg.WhatsappToken != "" {
		notifier = notification.NewWhatsappNotifier(cfg.WhatsappToken, cfg.WhatsappPhoneNumberID)
	} else {
		log.Warn("No WhatsApp credentials configured, notifications will only be logged")
		notifier = notification.NewLogNotifier()
	}

	provider := payment.NewClient(cfg.PaystackSecretKey)

	contributionService := service.NewContributionService(uowFactory, cfg)
	rotationService := service.NewRotationService(uowFactory)
	payoutService := service.NewPayoutService(uowFactory, provider, notifier)

	registerEventHandlers(eventBus, uowFactory, rotationService, payoutService, notifier)

	sweepScheduler := scheduler.NewScheduler(uowFactory, rotationService, payoutService, notifier, cfg.ReminderInterval)
	stopScheduler := sweepScheduler.Start(ctx)

	server := webhook.NewServer(cfg.ListenAddr, cfg.PaymentWebhookSecret, contributionService)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	log.WithField("environment", cfg.Environment).Info("Thrift engine is running")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			stopScheduler()
			db.Close()
			return fmt.Errorf("webhook server failed: %w", err)
		}
	}

	log.Info("Shutting down...")
	stopScheduler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Webhook server shutdown error")
	}

	db.Close()
	log.Info("Shutdown completed")

	return nil
}

// registerEventHandlers wires the post-commit event flow: a confirmed
// contribution triggers a completeness check, and a created rotation triggers
// its payout. Each handler re-reads state itself, so redelivery or concurrent
// delivery of the same event stays safe.
func registerEventHandlers(bus *events.Bus, uowFactory service.UnitOfWorkFactory, rotationService service.RotationService, payoutService service.PayoutService, notifier service.Notifier) {
	bus.Subscribe(events.EventTypeContributionConfirmed, func(ctx context.Context, event events.Event) {
		e, ok := event.(events.ContributionConfirmedEvent)
		if !ok {
			return
		}

		notifyContributor(ctx, uowFactory, notifier, e)

		period := models.Period{Cycle: e.Cycle, Week: e.Week}
		if _, _, err := rotationService.EvaluatePeriod(ctx, e.GroupID, period); err != nil {
			log.WithFields(log.Fields{
				"groupId": e.GroupID,
				"cycle":   e.Cycle,
				"week":    e.Week,
			}).WithError(err).Error("Period evaluation after confirmation failed")
		}
	})

	bus.Subscribe(events.EventTypeRotationCreated, func(ctx context.Context, event events.Event) {
		e, ok := event.(events.RotationCreatedEvent)
		if !ok {
			return
		}

		if err := payoutService.Dispatch(ctx, e.RotationID); err != nil {
			log.WithFields(log.Fields{
				"rotationId": e.RotationID,
				"groupId":    e.GroupID,
			}).WithError(err).Error("Payout dispatch failed")
		}
	})
}

func notifyContributor(ctx context.Context, uowFactory service.UnitOfWorkFactory, notifier service.Notifier, e events.ContributionConfirmedEvent) {
	uow := uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		log.WithError(err).Warn("Skipping contribution confirmation message")
		return
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, e.UserID)
	if err != nil || user == nil {
		log.WithField("userId", e.UserID).WithError(err).Warn("Skipping contribution confirmation message: user lookup failed")
		return
	}

	text := fmt.Sprintf("Payment received! Your contribution of NGN %d for Cycle %d, Week %d is confirmed (ref %s).",
		e.Amount, e.Cycle, e.Week, e.Reference)
	if err := notifier.Send(ctx, user.WhatsappID, text); err != nil {
		log.WithField("userId", e.UserID).WithError(err).Warn("Failed to send contribution confirmation message")
	}
}

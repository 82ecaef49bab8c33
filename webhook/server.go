// Package webhook exposes the HTTP surface: payment provider callbacks,
// health checks and metrics.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"esusu/observability"
	"esusu/payment"
	"esusu/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const maxBodySize = 1 << 20 // 1 MiB

// Server handles inbound webhooks from the payment provider
type Server struct {
	webhookSecret       string
	contributionService service.ContributionService
	httpServer          *http.Server
}

// NewServer creates the webhook server
func NewServer(listenAddr, webhookSecret string, contributionService service.ContributionService) *Server {
	s := &Server{
		webhookSecret:       webhookSecret,
		contributionService: contributionService,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/paystack", s.handlePaystackWebhook)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         listenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Start runs the HTTP server until it fails or Shutdown is called
func (s *Server) Start() error {
	log.WithField("addr", s.httpServer.Addr).Info("Webhook server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// handlePaystackWebhook processes provider callbacks. Once the signature
// checks out the response is always 200: the provider retries non-2xx
// responses, and every handled event is idempotent anyway.
func (s *Server) handlePaystackWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("x-paystack-signature")
	if !payment.VerifySignature(s.webhookSecret, body, signature) {
		observability.WebhooksRejected.Inc()
		log.Warn("Rejected webhook with invalid signature")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.WithError(err).Warn("Failed to decode webhook payload")
		w.WriteHeader(http.StatusOK)
		return
	}

	switch event.Event {
	case "charge.success":
		s.handleChargeSuccess(r.Context(), event.Data.Reference)
	case "charge.failed":
		s.handleChargeFailed(r.Context(), event.Data.Reference)
	default:
		log.WithField("event", event.Event).Debug("Ignoring unhandled webhook event")
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleChargeSuccess(ctx context.Context, reference string) {
	if reference == "" {
		log.Warn("charge.success webhook without a reference")
		return
	}

	result, err := s.contributionService.ConfirmContribution(ctx, reference)
	if err != nil {
		log.WithFields(log.Fields{
			"reference": reference,
		}).WithError(err).Error("Failed to confirm contribution from webhook")
		return
	}

	if result.AlreadyConfirmed {
		log.WithField("reference", reference).Info("Duplicate charge.success webhook ignored")
		return
	}

	log.WithFields(log.Fields{
		"reference":      reference,
		"contributionId": result.Contribution.ID,
	}).Info("Contribution confirmed from webhook")
}

func (s *Server) handleChargeFailed(ctx context.Context, reference string) {
	if reference == "" {
		log.Warn("charge.failed webhook without a reference")
		return
	}

	if err := s.contributionService.FailContribution(ctx, reference); err != nil {
		log.WithFields(log.Fields{
			"reference": reference,
		}).WithError(err).Error("Failed to record contribution failure from webhook")
		return
	}

	log.WithField("reference", reference).Info("Contribution failure recorded from webhook")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

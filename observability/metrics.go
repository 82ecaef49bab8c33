// Package observability exposes Prometheus metrics for the thrift engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ContributionsConfirmed counts contributions confirmed via payment webhook
	ContributionsConfirmed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "esusu_contributions_confirmed_total",
		Help: "Total number of confirmed contributions",
	})

	// RotationsCreated counts rotations created by the rotation engine
	RotationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "esusu_rotations_created_total",
		Help: "Total number of rotations created for complete periods",
	})

	// PayoutsDispatched counts payout dispatch outcomes by status
	// (success, failed, ambiguous)
	PayoutsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "esusu_payouts_dispatched_total",
		Help: "Total number of payout dispatch attempts by outcome",
	}, []string{"status"})

	// PayoutsBlocked counts payouts that could not be attempted because the
	// recipient has no bank details on file
	PayoutsBlocked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "esusu_payouts_blocked_total",
		Help: "Total number of payouts blocked by missing recipient bank details",
	})

	// RemindersSent counts contribution reminders sent to laggards
	RemindersSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "esusu_reminders_sent_total",
		Help: "Total number of contribution reminders sent",
	})

	// WebhooksRejected counts payment webhooks rejected for a bad signature
	WebhooksRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "esusu_webhooks_rejected_total",
		Help: "Total number of payment webhooks rejected for an invalid signature",
	})
)

func init() {
	prometheus.MustRegister(
		ContributionsConfirmed,
		RotationsCreated,
		PayoutsDispatched,
		PayoutsBlocked,
		RemindersSent,
		WebhooksRejected,
	)
}

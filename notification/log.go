package notification

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogNotifier writes messages to the log instead of delivering them. Used in
// development and test environments where no WhatsApp credentials exist.
type LogNotifier struct{}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Send logs the message
func (n *LogNotifier) Send(ctx context.Context, whatsappID string, text string) error {
	log.WithFields(log.Fields{
		"recipient": whatsappID,
		"text":      text,
	}).Info("Notification (log only)")
	return nil
}

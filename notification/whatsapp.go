// Package notification delivers outbound messages to members over WhatsApp.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultGraphURL = "https://graph.facebook.com/v18.0"

// WhatsappNotifier sends text messages through the WhatsApp Cloud API.
// It implements service.Notifier.
type WhatsappNotifier struct {
	baseURL       string
	token         string
	phoneNumberID string
	httpClient    *http.Client
}

// NewWhatsappNotifier creates a WhatsApp Cloud API notifier
func NewWhatsappNotifier(token, phoneNumberID string) *WhatsappNotifier {
	return &WhatsappNotifier{
		baseURL:       defaultGraphURL,
		token:         token,
		phoneNumberID: phoneNumberID,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewWhatsappNotifierWithBaseURL creates a notifier against a non-default API host
func NewWhatsappNotifierWithBaseURL(token, phoneNumberID, baseURL string) *WhatsappNotifier {
	n := NewWhatsappNotifier(token, phoneNumberID)
	n.baseURL = baseURL
	return n
}

// Send delivers a text message to a WhatsApp recipient
func (n *WhatsappNotifier) Send(ctx context.Context, whatsappID string, text string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                whatsappID,
		"type":              "text",
		"text": map[string]any{
			"body": text,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", n.baseURL, n.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("message rejected with status %d: %s", resp.StatusCode, raw)
	}

	log.WithFields(log.Fields{
		"recipient": whatsappID,
	}).Debug("Message sent")

	return nil
}

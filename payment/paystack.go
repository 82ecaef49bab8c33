// Package payment implements the Paystack transfer client.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"esusu/models"
	"esusu/service"

	log "github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://api.paystack.co"

// bankCodes maps common Nigerian bank names to their CBN bank codes
var bankCodes = map[string]string{
	"access bank":   "044",
	"gtbank":        "058",
	"gtb":           "058",
	"first bank":    "011",
	"uba":           "033",
	"zenith bank":   "057",
	"zenith":        "057",
	"fidelity bank": "070",
	"union bank":    "032",
	"sterling bank": "232",
	"stanbic ibtc":  "221",
	"wema bank":     "035",
	"fcmb":          "214",
	"ecobank":       "050",
	"keystone bank": "082",
	"polaris bank":  "076",
	"kuda":          "50211",
	"opay":          "999992",
	"palmpay":       "999991",
	"moniepoint":    "50515",
}

// Client talks to the Paystack API. It implements service.PaymentProvider.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient creates a Paystack client
func NewClient(secretKey string) *Client {
	return &Client{
		baseURL:   defaultBaseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a client against a non-default API host
func NewClientWithBaseURL(secretKey, baseURL string) *Client {
	c := NewClient(secretKey)
	c.baseURL = baseURL
	return c
}

type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type recipientData struct {
	RecipientCode string `json:"recipient_code"`
}

type transferData struct {
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
}

// CreateRecipient registers a payout destination and returns Paystack's
// recipient code. Creating the same account twice returns the same code, so
// the call is safe to repeat.
func (c *Client) CreateRecipient(ctx context.Context, name string, details models.BankDetails) (string, error) {
	payload := map[string]any{
		"type":           "nuban",
		"name":           name,
		"account_number": details.AccountNumber,
		"bank_code":      BankCode(details.BankName),
		"currency":       "NGN",
	}

	status, resp, err := c.post(ctx, "/transferrecipient", payload)
	if err != nil {
		return "", fmt.Errorf("failed to create transfer recipient: %w", err)
	}
	if status >= 400 || !resp.Status {
		return "", fmt.Errorf("recipient creation rejected: %s", resp.Message)
	}

	var data recipientData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", fmt.Errorf("failed to decode recipient response: %w", err)
	}
	if data.RecipientCode == "" {
		return "", fmt.Errorf("recipient creation returned no recipient code")
	}

	return data.RecipientCode, nil
}

// Transfer moves funds to a previously created recipient. The classification
// matters more than the error: a definite rejection comes back as a failed
// TransferResult, while transport errors and 5xx responses come back as
// errors because the transfer may still have gone through.
func (c *Client) Transfer(ctx context.Context, recipientCode string, amount int64, reference, reason string) (service.TransferResult, error) {
	payload := map[string]any{
		"source":    "balance",
		"amount":    amount, // already in the smallest currency unit
		"recipient": recipientCode,
		"reference": reference,
		"reason":    reason,
	}

	status, resp, err := c.post(ctx, "/transfer", payload)
	if err != nil {
		return service.TransferResult{Status: service.TransferStatusAmbiguous}, fmt.Errorf("transfer request failed: %w", err)
	}

	if status >= 500 {
		return service.TransferResult{Status: service.TransferStatusAmbiguous},
			fmt.Errorf("transfer returned server error %d: %s", status, resp.Message)
	}

	if status >= 400 || !resp.Status {
		// Definite rejection from the provider; no money moved
		return service.TransferResult{
			Status:  service.TransferStatusFailed,
			Message: resp.Message,
		}, nil
	}

	var data transferData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return service.TransferResult{Status: service.TransferStatusAmbiguous},
			fmt.Errorf("failed to decode transfer response: %w", err)
	}

	log.WithFields(log.Fields{
		"reference":    reference,
		"transferCode": data.TransferCode,
		"amount":       amount,
	}).Info("Transfer accepted by provider")

	return service.TransferResult{
		Status:       service.TransferStatusSuccess,
		TransferCode: data.TransferCode,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (int, *apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return httpResp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp apiResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &resp); err != nil {
			// Non-JSON bodies still carry the status code for classification
			resp.Message = string(raw)
		}
	}

	return httpResp.StatusCode, &resp, nil
}

// BankCode resolves a bank name to its code, falling back to First Bank's
// code when the name is unknown
func BankCode(bankName string) string {
	if code, ok := bankCodes[strings.ToLower(strings.TrimSpace(bankName))]; ok {
		return code
	}
	return "011"
}

// VerifySignature checks a webhook payload against the x-paystack-signature
// header using HMAC-SHA512 in constant time
func VerifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

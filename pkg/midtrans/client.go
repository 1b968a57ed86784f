// Package midtrans is a client for the Midtrans Snap API, used to charge
// one-off contact unlock payments in IDR.
package midtrans

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cassidypignatello/bali-renovation-os/internal/resilience"
)

// Sandbox base URLs. Production swaps the subdomains.
const (
	defaultAPIBaseURL  = "https://api.sandbox.midtrans.com"
	defaultSnapBaseURL = "https://app.sandbox.midtrans.com"
)

// Transaction statuses Midtrans reports that this application acts on.
const (
	StatusPending    = "pending"
	StatusSettlement = "settlement"
	StatusCapture    = "capture"
	StatusDeny       = "deny"
	StatusCancel     = "cancel"
	StatusExpire     = "expire"
)

// Client defines the Midtrans operations used for unlock payments.
type Client interface {
	CreateSnapTransaction(ctx context.Context, req SnapRequest) (*SnapResponse, error)
	GetTransactionStatus(ctx context.Context, orderID string) (*TransactionStatus, error)
}

// SnapRequest describes a payment to collect.
type SnapRequest struct {
	OrderID       string
	GrossAmount   int64
	ItemName      string
	CustomerEmail string
	FinishURL     string
}

// SnapResponse carries the hosted payment page handle.
type SnapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// TransactionStatus is the subset of the status response the unlock flow
// reads. GrossAmount arrives as a decimal string.
type TransactionStatus struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	PaymentType       string `json:"payment_type"`
	GrossAmount       string `json:"gross_amount"`
	FraudStatus       string `json:"fraud_status"`
}

// Settled reports whether the payment completed. Card payments settle as
// "capture" with fraud_status "accept"; everything else as "settlement".
func (s *TransactionStatus) Settled() bool {
	if s.TransactionStatus == StatusSettlement {
		return true
	}
	return s.TransactionStatus == StatusCapture && s.FraudStatus == "accept"
}

// APIError is returned when Midtrans responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("midtrans: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithAPIBaseURL overrides the core API base URL.
func WithAPIBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.apiBaseURL = url
		}
	}
}

// WithSnapBaseURL overrides the Snap base URL.
func WithSnapBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.snapBaseURL = url
		}
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	serverKey   string
	apiBaseURL  string
	snapBaseURL string
	http        *http.Client
}

// NewClient creates a Midtrans client authenticated with the server key.
func NewClient(serverKey string, opts ...Option) Client {
	c := &httpClient{
		serverKey:   serverKey,
		apiBaseURL:  defaultAPIBaseURL,
		snapBaseURL: defaultSnapBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) CreateSnapTransaction(ctx context.Context, req SnapRequest) (*SnapResponse, error) {
	if req.OrderID == "" {
		return nil, eris.New("midtrans: order id is required")
	}
	if req.GrossAmount <= 0 {
		return nil, eris.Errorf("midtrans: invalid gross amount %d", req.GrossAmount)
	}

	body := map[string]any{
		"transaction_details": map[string]any{
			"order_id":     req.OrderID,
			"gross_amount": req.GrossAmount,
		},
		"item_details": []map[string]any{
			{
				"id":       req.OrderID,
				"price":    req.GrossAmount,
				"quantity": 1,
				"name":     req.ItemName,
			},
		},
	}
	if req.CustomerEmail != "" {
		body["customer_details"] = map[string]any{
			"email": req.CustomerEmail,
		}
	}
	if req.FinishURL != "" {
		body["callbacks"] = map[string]any{
			"finish": req.FinishURL,
		}
	}

	var resp SnapResponse
	url := c.snapBaseURL + "/snap/v1/transactions"
	if err := c.do(ctx, http.MethodPost, url, body, &resp); err != nil {
		return nil, eris.Wrapf(err, "midtrans: create snap transaction %s", req.OrderID)
	}
	return &resp, nil
}

func (c *httpClient) GetTransactionStatus(ctx context.Context, orderID string) (*TransactionStatus, error) {
	var resp TransactionStatus
	url := fmt.Sprintf("%s/v2/%s/status", c.apiBaseURL, orderID)
	if err := c.do(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return nil, eris.Wrapf(err, "midtrans: transaction status %s", orderID)
	}
	return &resp, nil
}

func (c *httpClient) do(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.SetBasicAuth(c.serverKey, "")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
		// 429s and 5xx are worth retrying; client errors are not.
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}

// NewUnlockOrderID builds the order ID for a contact unlock. The random
// suffix keeps repeat purchases of the same worker distinct.
func NewUnlockOrderID(workerID string) string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("UNLOCK-%s-%s", workerID, hex.EncodeToString(buf))
}

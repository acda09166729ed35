package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/FeeBook/app/models"
	"github.com/ManuelReschke/FeeBook/internal/pkg/env"
)

const (
	GatewayName              = "pg"
	defaultGatewayAPIBaseURL = "https://sandbox.cashfree.com/pg"
	defaultGatewayAPIVersion = "2023-08-01"
)

var ErrGatewayNotConfigured = errors.New("payment gateway is not configured")

// GatewayClient talks to the hosted-checkout payment gateway.
type GatewayClient struct {
	AppID      string
	SecretKey  string
	APIBaseURL string
	APIVersion string
	ReturnURL  string
	NotifyURL  string

	HTTPClient *http.Client
}

// CustomerDetails identifies the payer at the gateway.
type CustomerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone"`
}

// OrderRequest is the gateway's create-order body.
type OrderRequest struct {
	OrderID       string          `json:"order_id"`
	OrderAmount   float64         `json:"order_amount"`
	OrderCurrency string          `json:"order_currency"`
	Customer      CustomerDetails `json:"customer_details"`
	OrderMeta     struct {
		ReturnURL string `json:"return_url,omitempty"`
		NotifyURL string `json:"notify_url,omitempty"`
	} `json:"order_meta"`
	OrderNote string            `json:"order_note,omitempty"`
	OrderTags map[string]string `json:"order_tags,omitempty"`
}

// OrderResponse is the subset of the gateway order the service keeps.
type OrderResponse struct {
	OrderID          string `json:"order_id"`
	PaymentSessionID string `json:"payment_session_id"`
	OrderStatus      string `json:"order_status"`
}

// GatewayPayment is one payment attempt against an order.
type GatewayPayment struct {
	PaymentID     string          `json:"cf_payment_id"`
	OrderID       string          `json:"order_id"`
	PaymentStatus string          `json:"payment_status"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	PaymentGroup  string          `json:"payment_group"`
	PaymentTime   string          `json:"payment_time"`
}

func NewGatewayClientFromEnv() *GatewayClient {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	returnURL := strings.TrimSpace(env.GetEnv("PG_RETURN_URL", ""))
	if returnURL == "" && base != "" {
		returnURL = base + "/consumer/payments/verify/{order_id}"
	}
	notifyURL := ""
	if base != "" {
		notifyURL = base + "/api/v1/pg/webhook"
	}

	return &GatewayClient{
		AppID:      strings.TrimSpace(env.GetEnv("PG_APP_ID", "")),
		SecretKey:  strings.TrimSpace(env.GetEnv("PG_SECRET_KEY", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("PG_API_BASE_URL", defaultGatewayAPIBaseURL)),
		APIVersion: strings.TrimSpace(env.GetEnv("PG_API_VERSION", defaultGatewayAPIVersion)),
		ReturnURL:  returnURL,
		NotifyURL:  notifyURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *GatewayClient) do(ctx context.Context, method, path string, in, out any) error {
	if strings.TrimSpace(c.AppID) == "" || strings.TrimSpace(c.SecretKey) == "" {
		return ErrGatewayNotConfigured
	}
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.APIBaseURL, "/")+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-client-id", c.AppID)
	req.Header.Set("x-client-secret", c.SecretKey)
	req.Header.Set("x-api-version", c.APIVersion)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("gateway %s %s failed: status=%d code=%s: %s", method, path, resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("gateway %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}
	return json.Unmarshal(raw, out)
}

// CreateOrder registers an order and returns its checkout session.
func (c *GatewayClient) CreateOrder(ctx context.Context, in OrderRequest) (*OrderResponse, error) {
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, errors.New("order id is required")
	}
	if in.OrderAmount <= 0 {
		return nil, errors.New("order amount must be positive")
	}
	if in.OrderCurrency == "" {
		in.OrderCurrency = "INR"
	}
	if in.OrderMeta.ReturnURL == "" {
		in.OrderMeta.ReturnURL = c.ReturnURL
	}
	if in.OrderMeta.NotifyURL == "" {
		in.OrderMeta.NotifyURL = c.NotifyURL
	}

	var out OrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", in, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.PaymentSessionID) == "" || strings.TrimSpace(out.OrderID) == "" {
		return nil, errors.New("gateway order response missing payment_session_id or order_id")
	}
	return &out, nil
}

// GetOrderPayments lists the payment attempts of an order, newest first as
// returned by the gateway.
func (c *GatewayClient) GetOrderPayments(ctx context.Context, orderID string) ([]GatewayPayment, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("order id is required")
	}
	var out []GatewayPayment
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID)+"/payments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WebhookEvent is a parsed payment notification.
type WebhookEvent struct {
	Type      string
	EventTime string
	OrderID   string
	Payment   GatewayPayment
}

// ParseWebhookEvent reads a payment webhook body.
func ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var raw struct {
		Type      string `json:"type"`
		EventTime string `json:"event_time"`
		Data      struct {
			Order struct {
				OrderID string `json:"order_id"`
			} `json:"order"`
			Payment GatewayPayment `json:"payment"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	out := &WebhookEvent{
		Type:      strings.TrimSpace(raw.Type),
		EventTime: strings.TrimSpace(raw.EventTime),
		OrderID:   strings.TrimSpace(raw.Data.Order.OrderID),
		Payment:   raw.Data.Payment,
	}
	if out.OrderID == "" {
		out.OrderID = strings.TrimSpace(out.Payment.OrderID)
	}
	if out.OrderID == "" {
		return nil, errors.New("webhook payload missing order id")
	}
	if out.Type == "" {
		return nil, errors.New("webhook payload missing type")
	}
	return out, nil
}

// EventID identifies a webhook delivery for deduplication.
func (e *WebhookEvent) EventID() string {
	if e.Payment.PaymentID != "" {
		return e.Type + ":" + e.Payment.PaymentID
	}
	return ""
}

// PaymentStatusToTransactionStatus maps a gateway payment status onto the
// transaction status set.
func PaymentStatusToTransactionStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "SUCCESS":
		return models.TransactionStatusSuccess
	case "FAILED":
		return models.TransactionStatusFailed
	case "PENDING":
		return models.TransactionStatusPending
	case "USER_DROPPED":
		return models.TransactionStatusUserDropped
	case "CANCELLED":
		return models.TransactionStatusCancelled
	case "NOT_ATTEMPTED":
		return models.TransactionStatusNotAttempted
	case "FLAGGED":
		return models.TransactionStatusFlagged
	case "VOID":
		return models.TransactionStatusVoid
	default:
		return models.TransactionStatusPending
	}
}

// SummarizePayments picks the status an order ends up in. Any successful
// payment wins, then pending, then the most recent attempt.
func SummarizePayments(payments []GatewayPayment) (string, *GatewayPayment) {
	if len(payments) == 0 {
		return models.TransactionStatusNotAttempted, nil
	}
	for i := range payments {
		if PaymentStatusToTransactionStatus(payments[i].PaymentStatus) == models.TransactionStatusSuccess {
			return models.TransactionStatusSuccess, &payments[i]
		}
	}
	for i := range payments {
		if PaymentStatusToTransactionStatus(payments[i].PaymentStatus) == models.TransactionStatusPending {
			return models.TransactionStatusPending, &payments[i]
		}
	}
	return PaymentStatusToTransactionStatus(payments[0].PaymentStatus), &payments[0]
}

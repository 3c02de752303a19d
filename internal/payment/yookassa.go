package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/workday-booking/internal/config"
	"github.com/iliyamo/workday-booking/internal/model"
)

// YooKassa is a Provider backed by the YooKassa REST API v3.
type YooKassa struct {
	baseURL   string
	shopID    string
	secretKey string
	returnURL string
	client    *http.Client
}

func NewYooKassa(cfg config.YooKassaConfig) *YooKassa {
	return &YooKassa{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		shopID:    cfg.ShopID,
		secretKey: cfg.SecretKey,
		returnURL: cfg.ReturnURL,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

type ykAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type ykConfirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type ykPayment struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Paid         bool            `json:"paid"`
	Amount       ykAmount        `json:"amount"`
	Confirmation *ykConfirmation `json:"confirmation,omitempty"`
}

type ykError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (y *YooKassa) Create(ctx context.Context, req CreateRequest) (*ProviderPayment, error) {
	body := map[string]any{
		"amount":       ykAmount{Value: req.Amount.StringFixed(2), Currency: req.Currency},
		"confirmation": ykConfirmation{Type: "redirect", ReturnURL: y.returnURL},
		"capture":      true,
		"description":  req.Description,
		"metadata":     req.Metadata,
	}
	var out ykPayment
	if err := y.do(ctx, http.MethodPost, "/payments", req.IdempotencyKey, body, &out); err != nil {
		return nil, err
	}
	return out.toProvider()
}

func (y *YooKassa) Lookup(ctx context.Context, id string) (*ProviderPayment, error) {
	var out ykPayment
	if err := y.do(ctx, http.MethodGet, "/payments/"+id, "", nil, &out); err != nil {
		return nil, err
	}
	return out.toProvider()
}

func (y *YooKassa) Refund(ctx context.Context, req RefundRequest) error {
	body := map[string]any{
		"payment_id": req.PaymentID,
		"amount":     ykAmount{Value: req.Amount.StringFixed(2), Currency: req.Currency},
	}
	return y.do(ctx, http.MethodPost, "/refunds", req.IdempotencyKey, body, nil)
}

func (p ykPayment) toProvider() (*ProviderPayment, error) {
	amount, err := decimal.NewFromString(p.Amount.Value)
	if err != nil && p.Amount.Value != "" {
		return nil, fmt.Errorf("yookassa: bad amount %q", p.Amount.Value)
	}
	out := &ProviderPayment{ID: p.ID, Status: MapStatus(p.Status), Amount: amount}
	if p.Confirmation != nil {
		out.ConfirmationURL = p.Confirmation.ConfirmationURL
	}
	return out, nil
}

// MapStatus reduces a provider status to a ledger payment status.
// waiting_for_capture cannot happen with capture=true but is still pending.
func MapStatus(s string) model.PaymentStatus {
	switch s {
	case "succeeded":
		return model.PaymentSucceeded
	case "canceled":
		return model.PaymentFailed
	default:
		return model.PaymentPending
	}
}

func (y *YooKassa) do(ctx context.Context, method, path, idemKey string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, y.baseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(y.shopID, y.secretKey)
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotence-Key", idemKey)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return fmt.Errorf("%w: %v", ErrNoSideEffect, err)
		}
		return fmt.Errorf("yookassa %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("yookassa read body: %w", err)
	}
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("yookassa %s %s: status %d", method, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		var e ykError
		_ = json.Unmarshal(raw, &e)
		return fmt.Errorf("%w: status %d %s %s", ErrRejected, resp.StatusCode, e.Code, e.Description)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("yookassa decode: %w", err)
	}
	return nil
}

// Notification is the body of a provider webhook call.  Only the payment id
// is used; the status is always re-read from the provider.
type Notification struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Object struct {
		ID string `json:"id"`
	} `json:"object"`
}

// ParseNotification extracts the payment id from a webhook body.
func ParseNotification(body []byte) (string, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return "", fmt.Errorf("%w: malformed notification", model.ErrValidation)
	}
	if n.Object.ID == "" {
		return "", fmt.Errorf("%w: notification without payment id", model.ErrValidation)
	}
	return n.Object.ID, nil
}

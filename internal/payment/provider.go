// Package payment talks to the payment provider.  The Gateway wraps a
// Provider and owns the idempotency-key policy: a fresh key for every new
// payment, the same key when resolving an ambiguous failure.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/workday-booking/internal/model"
)

var (
	// ErrNoSideEffect marks a provider call that certainly did not reach
	// the provider, e.g. the connection was refused.  Retrying with a new
	// key is safe.
	ErrNoSideEffect = errors.New("provider call had no side effect")
	// ErrRejected marks a definitive refusal by the provider (4xx).
	ErrRejected = errors.New("provider rejected request")
)

// CreateRequest describes a payment to open at the provider.
type CreateRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// RefundRequest describes a (partial) refund of a succeeded payment.
type RefundRequest struct {
	PaymentID      string
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
}

// ProviderPayment is the provider's view of a payment.
type ProviderPayment struct {
	ID              string
	Status          model.PaymentStatus
	Amount          decimal.Decimal
	ConfirmationURL string
}

// Provider is the payment provider API.  Implementations must honour
// IdempotencyKey: a repeated Create with the same key returns the payment
// created by the first call.
type Provider interface {
	Create(ctx context.Context, req CreateRequest) (*ProviderPayment, error)
	Lookup(ctx context.Context, id string) (*ProviderPayment, error)
	Refund(ctx context.Context, req RefundRequest) error
}

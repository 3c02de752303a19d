package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentKind distinguishes the deposit from the final balance.
type PaymentKind string

const (
	KindDeposit PaymentKind = "deposit"
	KindFinal   PaymentKind = "final"
)

// PaymentStatus mirrors the provider's view of a payment, reduced to the
// states the ledger cares about.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	// PaymentRefunding is held while a refund is with the provider.
	PaymentRefunding PaymentStatus = "refunding"
)

// Terminal reports whether no further provider-driven transition is expected.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSucceeded || s == PaymentFailed || s == PaymentRefunded
}

// Payment is a single provider payment attached to a reservation.  ID is
// the provider-assigned identifier.  ReservationID is nil once the
// reservation it belonged to has been deleted.
type Payment struct {
	ID              string          `json:"id"`
	ReservationID   *uint64         `json:"reservation_id,omitempty"`
	ClientID        int64           `json:"client_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Kind            PaymentKind     `json:"kind"`
	Status          PaymentStatus   `json:"status"`
	SlotDate        time.Time       `json:"slot_date"`
	IdempotencyKey  string          `json:"-"`
	ConfirmationURL string          `json:"confirmation_url,omitempty"`
	RefundedAmount  decimal.Decimal `json:"refunded_amount"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

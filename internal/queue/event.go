// Package queue defines the domain events exchanged over RabbitMQ and the
// publisher and consumer that carry them.
package queue

import "time"

// EventType names a domain event.
type EventType string

const (
	EventReservationConfirmed  EventType = "reservation.confirmed"
	EventReservationCancelled  EventType = "reservation.cancelled"
	EventRefundEligible        EventType = "refund.eligible"
	EventFinalPaymentConfirmed EventType = "payment.final_confirmed"
	EventReservationCompleted  EventType = "reservation.completed"
	EventPaymentRefunded       EventType = "payment.refunded"
)

// Event is published after the ledger commits a state change.  It carries
// enough context for consumers to notify or log without querying the
// ledger.
type Event struct {
	Type          EventType `json:"type"`
	ReservationID uint64    `json:"reservation_id,omitempty"`
	ClientID      int64     `json:"client_id"`
	Username      string    `json:"username,omitempty"`
	DisplayName   string    `json:"display_name,omitempty"`
	SlotDate      string    `json:"slot_date,omitempty"` // YYYY-MM-DD
	PaymentID     string    `json:"payment_id,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

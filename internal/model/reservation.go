package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusTentative      ReservationStatus = "tentative"
	StatusConfirmed      ReservationStatus = "confirmed"
	StatusBriefFiled     ReservationStatus = "brief_filed"
	StatusFinalConfirmed ReservationStatus = "final_confirmed"
	StatusCompleted      ReservationStatus = "completed"
	StatusCancelled      ReservationStatus = "cancelled"
)

// HoldsSlot reports whether a reservation in this state occupies its slot
// date.  At most one reservation per date may be in a holding state.
func (s ReservationStatus) HoldsSlot() bool {
	switch s {
	case StatusConfirmed, StatusBriefFiled, StatusFinalConfirmed:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusTentative, StatusConfirmed, StatusBriefFiled,
		StatusFinalConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Reservation is a client's claim on a single workday slot.  It is owned
// by the ledger; every other copy (the mirror, delivery jobs) is derived.
//
// Fields:
//  ID             – ledger-assigned identifier, monotonic.
//  ClientID       – chat user identifier of the client.
//  Username       – chat handle, may be empty.
//  DisplayName    – human readable name shown to the operator.
//  SlotDate       – the reserved day (UTC midnight).
//  Status         – lifecycle state.
//  DepositPaid    – a deposit payment succeeded.
//  FinalPaid      – a final payment succeeded.
//  BriefCompleted – the client filed the project brief.
//  RefundEligible – set when a paid reservation lost its slot or was cancelled.
//  CancelReason   – why the reservation was cancelled.
//  PaymentIDs     – provider ids of payments created for the reservation.
type Reservation struct {
	ID             uint64            `json:"id"`
	ClientID       int64             `json:"client_id"`
	Username       string            `json:"username,omitempty"`
	DisplayName    string            `json:"display_name"`
	SlotDate       time.Time         `json:"slot_date"`
	Status         ReservationStatus `json:"status"`
	DepositPaid    bool              `json:"deposit_paid"`
	FinalPaid      bool              `json:"final_paid"`
	BriefCompleted bool              `json:"brief_completed"`
	RefundEligible bool              `json:"refund_eligible"`
	CancelReason   string            `json:"cancel_reason,omitempty"`
	PaymentIDs     []string          `json:"payment_ids"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

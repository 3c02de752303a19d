// Package mirror keeps an external, human-facing copy of the ledger.  The
// mirror is never consulted for correctness; pushes are best effort.
package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/workday-booking/internal/model"
)

// Status labels shown in the mirror.
const (
	LabelAwaitingDeposit = "Awaiting deposit"
	LabelDepositReceived = "Deposit received"
	LabelBriefFiled      = "Brief filed"
	LabelPaidInFull      = "Paid in full"
	LabelCompleted       = "Project completed"
	LabelCancelled       = "Cancelled"
)

// LabelFor maps a reservation status to its mirror label.
func LabelFor(s model.ReservationStatus) string {
	switch s {
	case model.StatusConfirmed:
		return LabelDepositReceived
	case model.StatusBriefFiled:
		return LabelBriefFiled
	case model.StatusFinalConfirmed:
		return LabelPaidInFull
	case model.StatusCompleted:
		return LabelCompleted
	case model.StatusCancelled:
		return LabelCancelled
	default:
		return LabelAwaitingDeposit
	}
}

// bookedLabel reports whether a row with this label occupies its date.
func bookedLabel(label string) bool {
	switch label {
	case LabelDepositReceived, LabelBriefFiled, LabelPaidInFull:
		return true
	}
	return false
}

// ErrRowMissing is returned when a status update targets a row the mirror
// never received.
var ErrRowMissing = errors.New("mirror row missing")

// Row is one line of the mirror sheet, keyed by client and date label.
type Row struct {
	ClientID    int64     `json:"client_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	DateLabel   string    `json:"date"`
	PaymentRef  string    `json:"payment_ref"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Sheet is the external mirror.
type Sheet interface {
	UpsertRow(ctx context.Context, row Row) error
	UpdateStatusLabel(ctx context.Context, clientID int64, dateLabel, status string) error
	ListBookedDateLabels(ctx context.Context) ([]string, error)
}

// NopSheet discards every push and reports no booked dates.  It stands in
// when no mirror backend is configured.
type NopSheet struct{}

func (NopSheet) UpsertRow(context.Context, Row) error                         { return nil }
func (NopSheet) UpdateStatusLabel(context.Context, int64, string, string) error { return nil }
func (NopSheet) ListBookedDateLabels(context.Context) ([]string, error)        { return nil, nil }

package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/model"
	"github.com/iliyamo/workday-booking/internal/payment"
	"github.com/iliyamo/workday-booking/internal/queue"
)

// ReservationStore is the reservation half of the ledger.  Transition
// methods report whether the row was in the expected state and changed.
type ReservationStore interface {
	CreateTentative(ctx context.Context, res *model.Reservation) error
	Get(ctx context.Context, id uint64) (*model.Reservation, error)
	FindTentative(ctx context.Context, clientID int64, day time.Time) (*model.Reservation, error)
	ListByClient(ctx context.Context, clientID int64) ([]model.Reservation, error)
	ListByDate(ctx context.Context, day time.Time) ([]model.Reservation, error)
	DueForFinalPayment(ctx context.Context, day time.Time) ([]model.Reservation, error)
	Upcoming(ctx context.Context, from, to time.Time) ([]model.Reservation, error)
	HeldDates(ctx context.Context, from, to time.Time) ([]time.Time, error)
	CountByStatus(ctx context.Context) (map[model.ReservationStatus]int, error)

	DeleteTentative(ctx context.Context, id uint64) error
	ConfirmDeposit(ctx context.Context, id uint64) (bool, error)
	LoseSlot(ctx context.Context, id uint64, reason string) (bool, error)
	CancelConfirmed(ctx context.Context, id uint64, reason string) (bool, error)
	FileBrief(ctx context.Context, id uint64) (bool, error)
	MarkFinalPaid(ctx context.Context, id uint64) (bool, error)
	Complete(ctx context.Context, id uint64) (bool, error)
}

// PaymentStore is the payment half of the ledger.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	Get(ctx context.Context, id string) (*model.Payment, error)
	ListByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error)
	SetStatus(ctx context.Context, id string, from, to model.PaymentStatus) (bool, error)
	// MarkRefunded completes a refund of a payment in refunding.
	MarkRefunded(ctx context.Context, id string, amount decimal.Decimal) (bool, error)
}

// PaymentGateway opens, inspects and refunds provider payments.
type PaymentGateway interface {
	Create(ctx context.Context, req payment.CreateRequest) (*payment.Created, error)
	Status(ctx context.Context, id string) (*payment.ProviderPayment, error)
	Refund(ctx context.Context, paymentID string, amount decimal.Decimal, currency string) error
}

// Mirror receives best-effort copies of ledger changes.
type Mirror interface {
	PushReservation(res model.Reservation, paymentRef string)
	PushStatus(clientID int64, slotDate time.Time, status model.ReservationStatus)
	BookedDates(ctx context.Context) (calendar.DateSet, error)
}

// EventPublisher publishes domain events after a ledger commit.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

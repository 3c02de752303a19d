package queue

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// OperatorNotifier is the subset of notify.Operator the relay needs.
type OperatorNotifier interface {
	Notify(ctx context.Context, text string)
}

// OperatorRelay returns a Handler that journals every event and forwards
// the ones that need a human to the operator chat.
func OperatorRelay(op OperatorNotifier, log *logrus.Entry) Handler {
	return func(ctx context.Context, ev Event) error {
		log.WithFields(logrus.Fields{
			"event":          ev.Type,
			"reservation_id": ev.ReservationID,
			"client_id":      ev.ClientID,
			"slot_date":      ev.SlotDate,
			"payment_id":     ev.PaymentID,
		}).Info("domain event")

		if text := OperatorText(ev); text != "" {
			op.Notify(ctx, text)
		}
		return nil
	}
}

// OperatorText renders the operator message for an event, or "" when the
// event needs no attention.
func OperatorText(ev Event) string {
	who := ev.DisplayName
	if ev.Username != "" {
		who += " (@" + ev.Username + ")"
	}
	switch ev.Type {
	case EventReservationConfirmed:
		return fmt.Sprintf("New booking #%d\nClient: %s\nDate: %s\nDeposit: %s\nPayment: %s",
			ev.ReservationID, who, ev.SlotDate, ev.Amount, ev.PaymentID)
	case EventFinalPaymentConfirmed:
		return fmt.Sprintf("Final payment received for booking #%d\nClient: %s\nDate: %s\nAmount: %s",
			ev.ReservationID, who, ev.SlotDate, ev.Amount)
	case EventRefundEligible:
		return fmt.Sprintf("Refund needed for booking #%d\nClient: %s\nDate: %s\nPayment: %s\nReason: %s",
			ev.ReservationID, who, ev.SlotDate, ev.PaymentID, ev.Reason)
	case EventReservationCancelled:
		return fmt.Sprintf("Booking #%d cancelled by the client\nDate: %s", ev.ReservationID, ev.SlotDate)
	}
	return ""
}

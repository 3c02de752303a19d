package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/workday-booking/internal/model"
	"github.com/iliyamo/workday-booking/internal/payment"
	"github.com/iliyamo/workday-booking/internal/service"
)

const maxNotificationBytes = 64 << 10

// PaymentHandler receives payment provider webhooks.
type PaymentHandler struct {
	Booking *service.BookingService
	Log     *logrus.Entry
}

func NewPaymentHandler(booking *service.BookingService, log *logrus.Entry) *PaymentHandler {
	return &PaymentHandler{Booking: booking, Log: log}
}

// Notification handles POST /v1/payments/notifications.  Only the payment
// id is taken from the body; the status is read back from the provider.
// Outcomes the provider cannot fix by retrying (unknown payment, lost
// slot) are acknowledged with 200.  Gateway and ledger failures are not,
// so the provider delivers the notification again.
func (h *PaymentHandler) Notification(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxNotificationBytes))
	if err != nil {
		return badRequest(c, "unreadable body")
	}
	id, err := payment.ParseNotification(body)
	if err != nil {
		return writeError(c, err)
	}
	log := h.Log.WithField("payment_id", id)

	out, err := h.Booking.HandleNotification(c.Request().Context(), id)
	switch {
	case err == nil:
		fields := logrus.Fields{"status": out.Payment.Status}
		if out.Reservation != nil {
			fields["reservation_status"] = out.Reservation.Status
		}
		log.WithFields(fields).Info("payment notification processed")
	case errors.Is(err, model.ErrNotFound), errors.Is(err, payment.ErrRejected):
		log.WithError(err).Warn("notification for unknown payment")
	case errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrValidation):
		log.WithError(err).Info("notification acknowledged without effect")
	default:
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

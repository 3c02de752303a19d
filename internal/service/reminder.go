package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/metrics"
	"github.com/iliyamo/workday-booking/internal/model"
	"github.com/iliyamo/workday-booking/internal/notify"
)

// ReminderService reminds clients whose project day has come to pay the
// final balance.
type ReminderService struct {
	reservations ReservationStore
	notifier     notify.Notifier
	pricing      Pricing
	log          *logrus.Entry
}

func NewReminderService(reservations ReservationStore, notifier notify.Notifier, pricing Pricing, log *logrus.Entry) *ReminderService {
	return &ReminderService{reservations: reservations, notifier: notifier, pricing: pricing, log: log}
}

// Sweep sends a final-payment reminder for every confirmed or brief-filed
// reservation on today whose final payment has not succeeded.  It returns
// the reservations that were reminded.  A failed message is logged and
// skipped.
func (s *ReminderService) Sweep(ctx context.Context, today time.Time) ([]model.Reservation, error) {
	due, err := s.reservations.DueForFinalPayment(ctx, calendar.Day(today))
	if err != nil {
		return nil, fmt.Errorf("load due reservations: %w", err)
	}
	sent := make([]model.Reservation, 0, len(due))
	for _, res := range due {
		if err := s.notifier.Deliver(ctx, res.ClientID, notify.Text(s.reminderText(res))); err != nil {
			s.log.WithError(err).WithField("reservation_id", res.ID).Error("reminder not delivered")
			continue
		}
		metrics.RemindersSent.Inc()
		sent = append(sent, res)
	}
	s.log.WithFields(logrus.Fields{"day": calendar.Key(today), "due": len(due), "sent": len(sent)}).Info("reminder sweep done")
	return sent, nil
}

func (s *ReminderService) reminderText(res model.Reservation) string {
	return fmt.Sprintf("🔄 <b>Your project is in progress!</b>\n\n"+
		"Today (%s) we are working on your project. Please pay the remaining <b>%s</b> "+
		"before 20:00 so we can send you the finished work.\n\n"+
		"<i>After payment you will receive:</i>\n"+
		"• the link to your website\n• ad creatives\n• instructions",
		calendar.Label(res.SlotDate), s.pricing.Format(s.pricing.Final))
}

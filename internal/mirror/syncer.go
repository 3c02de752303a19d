package mirror

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/metrics"
	"github.com/iliyamo/workday-booking/internal/model"
)

// Syncer propagates ledger state to the Sheet.  Asynchronous pushes run in
// their own goroutine with a timeout; failures are logged and counted but
// never returned to the caller.
type Syncer struct {
	sheet   Sheet
	timeout time.Duration
	log     *logrus.Entry
	wg      sync.WaitGroup
}

func NewSyncer(sheet Sheet, timeout time.Duration, log *logrus.Entry) *Syncer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Syncer{sheet: sheet, timeout: timeout, log: log}
}

// PushReservation upserts the reservation's row in the background.
func (s *Syncer) PushReservation(res model.Reservation, paymentRef string) {
	s.async(func(ctx context.Context) error { return s.PushReservationNow(ctx, res, paymentRef) },
		logrus.Fields{"reservation_id": res.ID, "op": "upsert"})
}

// PushStatus updates the status label of the client's row for the date in
// the background.
func (s *Syncer) PushStatus(clientID int64, slotDate time.Time, status model.ReservationStatus) {
	s.async(func(ctx context.Context) error { return s.PushStatusNow(ctx, clientID, slotDate, status) },
		logrus.Fields{"client_id": clientID, "slot_date": calendar.Key(slotDate), "op": "status"})
}

// PushReservationNow is the synchronous form of PushReservation.  Errors
// wrap model.ErrMirror.
func (s *Syncer) PushReservationNow(ctx context.Context, res model.Reservation, paymentRef string) error {
	err := s.sheet.UpsertRow(ctx, Row{
		ClientID:    res.ClientID,
		Username:    res.Username,
		DisplayName: res.DisplayName,
		DateLabel:   calendar.Label(res.SlotDate),
		PaymentRef:  paymentRef,
		Status:      LabelFor(res.Status),
	})
	return s.result(err)
}

// PushStatusNow is the synchronous form of PushStatus.
func (s *Syncer) PushStatusNow(ctx context.Context, clientID int64, slotDate time.Time, status model.ReservationStatus) error {
	return s.result(s.sheet.UpdateStatusLabel(ctx, clientID, calendar.Label(slotDate), LabelFor(status)))
}

// BookedDates returns the dates the mirror believes are taken.  It is a
// hint for display only.
func (s *Syncer) BookedDates(ctx context.Context) (calendar.DateSet, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	labels, err := s.sheet.ListBookedDateLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMirror, err)
	}
	set := make(calendar.DateSet, len(labels))
	for _, l := range labels {
		d, err := calendar.ParseLabel(l)
		if err != nil {
			s.log.WithField("label", l).Debug("skipping unparseable mirror date")
			continue
		}
		set.Add(d)
	}
	return set, nil
}

// Wait blocks until in-flight background pushes finish.
func (s *Syncer) Wait() { s.wg.Wait() }

func (s *Syncer) async(push func(context.Context) error, fields logrus.Fields) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := push(ctx); err != nil {
			s.log.WithFields(fields).WithError(err).Warn("mirror push failed")
		}
	}()
}

func (s *Syncer) result(err error) error {
	if err != nil {
		metrics.MirrorPushes.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %v", model.ErrMirror, err)
	}
	metrics.MirrorPushes.WithLabelValues("ok").Inc()
	return nil
}

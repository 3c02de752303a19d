package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/model"
	"github.com/iliyamo/workday-booking/internal/queue"
	"github.com/iliyamo/workday-booking/internal/repository"
	"github.com/iliyamo/workday-booking/internal/testutil"
)

// Monday 2024-03-04, 09:00 UTC.
var testNow = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

type harness struct {
	ledger   *testutil.Ledger
	gateway  *testutil.Gateway
	notifier *testutil.Notifier
	events   *testutil.Publisher
	mirror   *testutil.Mirror
	svc      *BookingService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ledger:   testutil.NewLedger(),
		gateway:  testutil.NewGateway(),
		notifier: &testutil.Notifier{},
		events:   &testutil.Publisher{},
		mirror:   testutil.NewMirror(),
	}
	h.svc = NewBookingService(BookingDeps{
		Reservations: h.ledger.Reservations(),
		Payments:     h.ledger.Payments(),
		Gateway:      h.gateway,
		Mirror:       h.mirror,
		Events:       h.events,
		Notifier:     h.notifier,
		Calendar:     calendar.New(6, time.UTC),
		Pricing: Pricing{
			Deposit:  decimal.NewFromInt(4000),
			Final:    decimal.NewFromInt(11000),
			Currency: "RUB",
		},
		BriefFormURL: "https://forms.test/brief",
		Now:          func() time.Time { return testNow },
		Log:          testutil.Logger(),
	})
	return h
}

func (h *harness) reserve(t *testing.T, clientID int64, d time.Time) *ReserveResult {
	t.Helper()
	out, err := h.svc.Reserve(context.Background(), ReserveRequest{
		ClientID: clientID, Username: "client", DisplayName: "Client", SlotDate: d,
	})
	require.NoError(t, err)
	return out
}

// pay marks the payment succeeded at the provider and delivers the webhook.
func (h *harness) pay(t *testing.T, paymentID string) (*ReconcileResult, error) {
	t.Helper()
	h.gateway.SetStatus(paymentID, model.PaymentSucceeded)
	return h.svc.HandleNotification(context.Background(), paymentID)
}

func (h *harness) confirmed(t *testing.T, clientID int64, d time.Time) *model.Reservation {
	t.Helper()
	out := h.reserve(t, clientID, d)
	res, err := h.pay(t, out.Payment.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusConfirmed, res.Reservation.Status)
	return res.Reservation
}

func TestReserveCreatesTentativeWithDeposit(t *testing.T) {
	h := newHarness(t)
	out := h.reserve(t, 1, day(2024, 3, 6))

	assert.Equal(t, model.StatusTentative, out.Reservation.Status)
	assert.Equal(t, model.PaymentPending, out.Payment.Status)
	assert.Equal(t, model.KindDeposit, out.Payment.Kind)
	assert.True(t, out.Payment.Amount.Equal(decimal.NewFromInt(4000)))
	assert.NotEmpty(t, out.Payment.ConfirmationURL)
	assert.Equal(t, []string{out.Payment.ID}, out.Reservation.PaymentIDs)

	stored, err := h.ledger.Payments().Get(context.Background(), out.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Reservation.ID, *stored.ReservationID)
	assert.Equal(t, "deposit", h.gateway.Requests[0].Metadata["kind"])
	assert.Equal(t, model.StatusTentative, h.mirror.Status(1, day(2024, 3, 6)))
}

func TestReserveRejectsDatesOutsideCalendar(t *testing.T) {
	h := newHarness(t)
	for _, d := range []time.Time{
		day(2024, 3, 5), // Tuesday
		day(2024, 3, 1), // past Friday
		day(2024, 9, 2), // beyond the horizon
	} {
		_, err := h.svc.Reserve(context.Background(), ReserveRequest{ClientID: 1, SlotDate: d})
		assert.ErrorIs(t, err, model.ErrValidation, calendar.Key(d))
	}
	assert.Empty(t, h.gateway.Requests)
}

func TestReserveReusesTentative(t *testing.T) {
	h := newHarness(t)
	first := h.reserve(t, 1, day(2024, 3, 6))
	second := h.reserve(t, 1, day(2024, 3, 6))

	assert.Equal(t, first.Reservation.ID, second.Reservation.ID)
	assert.NotEqual(t, first.Payment.ID, second.Payment.ID)
	assert.Len(t, second.Reservation.PaymentIDs, 2)
}

func TestReserveHeldDateConflicts(t *testing.T) {
	h := newHarness(t)
	h.confirmed(t, 1, day(2024, 3, 6))

	_, err := h.svc.Reserve(context.Background(), ReserveRequest{ClientID: 2, SlotDate: day(2024, 3, 6)})
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestSameDayDepositsLaterPayerLoses(t *testing.T) {
	h := newHarness(t)
	target := day(2024, 3, 6)
	a := h.reserve(t, 1, target)
	b := h.reserve(t, 2, target)

	resA, err := h.pay(t, a.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, resA.Reservation.Status)

	resB, err := h.pay(t, b.Payment.ID)
	assert.ErrorIs(t, err, model.ErrConflict)
	require.NotNil(t, resB)
	assert.Equal(t, model.StatusCancelled, resB.Reservation.Status)
	assert.True(t, resB.Reservation.RefundEligible)
	assert.True(t, resB.Reservation.DepositPaid)
	assert.Equal(t, "slot lost to concurrent booking", resB.Reservation.CancelReason)

	refunds := h.events.Events(queue.EventRefundEligible)
	require.Len(t, refunds, 1)
	assert.Equal(t, b.Payment.ID, refunds[0].PaymentID)
	assert.Equal(t, int64(2), refunds[0].ClientID)
	assert.NotEmpty(t, h.notifier.Messages(2))
	assert.Equal(t, model.StatusCancelled, h.mirror.Status(2, target))

	held := h.ledger.Held(target)
	require.Len(t, held, 1)
	assert.Equal(t, int64(1), held[0].ClientID)
}

func TestConcurrentDepositsConfirmExactlyOne(t *testing.T) {
	h := newHarness(t)
	target := day(2024, 3, 8)
	const clients = 8
	payments := make([]string, clients)
	for i := range payments {
		payments[i] = h.reserve(t, int64(100+i), target).Payment.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, clients)
	for i, id := range payments {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = h.pay(t, id)
		}(i, id)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, model.ErrConflict)
	}
	assert.Equal(t, 1, won)
	assert.Len(t, h.ledger.Held(target), 1)
	assert.Len(t, h.events.Events(queue.EventRefundEligible), clients-1)
	assert.Len(t, h.events.Events(queue.EventReservationConfirmed), 1)

	stats, err := h.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats[model.StatusConfirmed])
	assert.Equal(t, clients-1, stats[model.StatusCancelled])
}

func TestReconcileIsIdempotent(t *testing.T) {
	h := newHarness(t)
	out := h.reserve(t, 1, day(2024, 3, 6))

	var last *ReconcileResult
	for i := 0; i < 3; i++ {
		res, err := h.pay(t, out.Payment.ID)
		require.NoError(t, err)
		last = res
	}
	assert.Equal(t, model.StatusConfirmed, last.Reservation.Status)
	assert.Equal(t, model.PaymentSucceeded, last.Payment.Status)
	assert.Len(t, h.events.Events(queue.EventReservationConfirmed), 1)
	assert.Empty(t, h.events.Events(queue.EventRefundEligible))
	assert.Len(t, h.notifier.Messages(1), 1)
	assert.Contains(t, h.notifier.Messages(1)[0].Content.Text, "https://forms.test/brief")
}

func TestReconcilePendingAndFailed(t *testing.T) {
	h := newHarness(t)
	out := h.reserve(t, 1, day(2024, 3, 6))
	ctx := context.Background()

	res, err := h.svc.Reconcile(ctx, out.Payment.ID, model.PaymentPending)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, res.Payment.Status)

	res, err = h.svc.Reconcile(ctx, out.Payment.ID, model.PaymentFailed)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, res.Payment.Status)
	assert.Equal(t, model.StatusTentative, res.Reservation.Status)

	_, err = h.svc.Reconcile(ctx, "missing", model.PaymentSucceeded)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestFinalPaymentRequiresDeposit(t *testing.T) {
	h := newHarness(t)
	out := h.reserve(t, 1, day(2024, 3, 6))

	_, err := h.svc.CreateFinalPayment(context.Background(), 1, out.Reservation.ID)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Len(t, h.gateway.Requests, 1)
}

func TestFinalPaymentAfterBrief(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.confirmed(t, 1, day(2024, 3, 6))

	filed, err := h.svc.FileBrief(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBriefFiled, filed.Status)
	assert.True(t, filed.BriefCompleted)

	p, err := h.svc.CreateFinalPayment(ctx, 1, res.ID)
	require.NoError(t, err)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(11000)))

	out, err := h.pay(t, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinalConfirmed, out.Reservation.Status)
	assert.True(t, out.Reservation.FinalPaid)
	assert.Len(t, h.events.Events(queue.EventFinalPaymentConfirmed), 1)

	_, err = h.svc.CreateFinalPayment(ctx, 1, res.ID)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestFinalPaymentBeforeBrief(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.confirmed(t, 1, day(2024, 3, 6))

	p, err := h.svc.CreateFinalPayment(ctx, 1, res.ID)
	require.NoError(t, err)
	out, err := h.pay(t, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, out.Reservation.Status)
	assert.True(t, out.Reservation.FinalPaid)

	filed, err := h.svc.FileBrief(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinalConfirmed, filed.Status)
}

func TestFileBrief(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.confirmed(t, 1, day(2024, 3, 6))

	for i := 0; i < 3; i++ {
		out, err := h.svc.FileBrief(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusBriefFiled, out.Status)
	}
	assert.Equal(t, model.StatusBriefFiled, h.mirror.Status(1, day(2024, 3, 6)))

	tentative := h.reserve(t, 2, day(2024, 3, 8))
	_, err := h.svc.FileBrief(ctx, tentative.Reservation.ID)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = h.svc.FileBrief(ctx, 999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("tentative is deleted", func(t *testing.T) {
		h := newHarness(t)
		out := h.reserve(t, 1, day(2024, 3, 6))

		res, err := h.svc.Cancel(ctx, 1, out.Reservation.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, res.Status)
		_, err = h.ledger.Reservations().Get(ctx, out.Reservation.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		p, err := h.ledger.Payments().Get(ctx, out.Payment.ID)
		require.NoError(t, err)
		assert.Nil(t, p.ReservationID)
	})

	t.Run("confirmed becomes refund eligible", func(t *testing.T) {
		h := newHarness(t)
		res := h.confirmed(t, 1, day(2024, 3, 6))

		out, err := h.svc.Cancel(ctx, 1, res.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, out.Status)
		assert.True(t, out.RefundEligible)
		assert.Empty(t, h.ledger.Held(day(2024, 3, 6)))
		refunds := h.events.Events(queue.EventRefundEligible)
		require.Len(t, refunds, 1)
		assert.Equal(t, res.PaymentIDs[0], refunds[0].PaymentID)
	})

	t.Run("later states are refused", func(t *testing.T) {
		h := newHarness(t)
		res := h.confirmed(t, 1, day(2024, 3, 6))
		_, err := h.svc.FileBrief(ctx, res.ID)
		require.NoError(t, err)

		_, err = h.svc.Cancel(ctx, 1, res.ID)
		assert.ErrorIs(t, err, model.ErrValidation)
	})

	t.Run("paid in full is refused", func(t *testing.T) {
		h := newHarness(t)
		res := h.confirmed(t, 1, day(2024, 3, 6))
		p, err := h.svc.CreateFinalPayment(ctx, 1, res.ID)
		require.NoError(t, err)
		paid, err := h.pay(t, p.ID)
		require.NoError(t, err)
		require.Equal(t, model.StatusConfirmed, paid.Reservation.Status)
		require.True(t, paid.Reservation.FinalPaid)

		_, err = h.svc.Cancel(ctx, 1, res.ID)
		assert.ErrorIs(t, err, model.ErrValidation)
		cur, err := h.svc.Reservation(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, cur.Status)
		assert.Len(t, h.ledger.Held(day(2024, 3, 6)), 1)
		assert.Empty(t, h.events.Events(queue.EventRefundEligible))

		ok, err := h.ledger.Reservations().CancelConfirmed(ctx, res.ID, "client cancelled")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("foreign client sees not found", func(t *testing.T) {
		h := newHarness(t)
		out := h.reserve(t, 1, day(2024, 3, 6))
		_, err := h.svc.Cancel(ctx, 2, out.Reservation.ID)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestLateDepositForWithdrawnReservation(t *testing.T) {
	h := newHarness(t)
	out := h.reserve(t, 1, day(2024, 3, 6))
	_, err := h.svc.Cancel(context.Background(), 1, out.Reservation.ID)
	require.NoError(t, err)

	res, err := h.pay(t, out.Payment.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Reservation)
	assert.Equal(t, model.PaymentSucceeded, res.Payment.Status)

	refunds := h.events.Events(queue.EventRefundEligible)
	require.Len(t, refunds, 1)
	assert.Equal(t, out.Payment.ID, refunds[0].PaymentID)
	assert.Equal(t, "2024-03-06", refunds[0].SlotDate)

	_, err = h.pay(t, out.Payment.ID)
	require.NoError(t, err)
	assert.Len(t, h.events.Events(queue.EventRefundEligible), 1)
}

func TestDuplicateDepositIsRefundEligible(t *testing.T) {
	h := newHarness(t)
	first := h.reserve(t, 1, day(2024, 3, 6))
	second := h.reserve(t, 1, day(2024, 3, 6))

	_, err := h.pay(t, first.Payment.ID)
	require.NoError(t, err)
	res, err := h.pay(t, second.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, res.Reservation.Status)

	refunds := h.events.Events(queue.EventRefundEligible)
	require.Len(t, refunds, 1)
	assert.Equal(t, second.Payment.ID, refunds[0].PaymentID)
	assert.Equal(t, "duplicate payment", refunds[0].Reason)
}

func TestCheckPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out := h.reserve(t, 1, day(2024, 3, 6))

	_, err := h.svc.CheckPayment(ctx, 2, out.Payment.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	res, err := h.svc.CheckPayment(ctx, 1, out.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTentative, res.Reservation.Status)

	h.gateway.SetStatus(out.Payment.ID, model.PaymentSucceeded)
	res, err = h.svc.CheckPayment(ctx, 1, out.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, res.Reservation.Status)

	h.gateway.StatusErr = model.ErrGateway
	_, err = h.svc.CheckPayment(ctx, 1, out.Payment.ID)
	assert.ErrorIs(t, err, model.ErrGateway)
}

func TestRefund(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out := h.reserve(t, 1, day(2024, 3, 6))

	_, err := h.svc.Refund(ctx, out.Payment.ID, nil)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = h.pay(t, out.Payment.ID)
	require.NoError(t, err)

	tooMuch := decimal.NewFromInt(5000)
	_, err = h.svc.Refund(ctx, out.Payment.ID, &tooMuch)
	assert.ErrorIs(t, err, model.ErrValidation)
	zero := decimal.Zero
	_, err = h.svc.Refund(ctx, out.Payment.ID, &zero)
	assert.ErrorIs(t, err, model.ErrValidation)

	part := decimal.NewFromInt(1500)
	p, err := h.svc.Refund(ctx, out.Payment.ID, &part)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentRefunded, p.Status)
	assert.True(t, p.RefundedAmount.Equal(part))
	require.Len(t, h.gateway.Refunds, 1)
	assert.True(t, h.gateway.Refunds[0].Equal(part))
	assert.Len(t, h.events.Events(queue.EventPaymentRefunded), 1)

	res, err := h.svc.Reservation(ctx, out.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, res.Status)

	_, err = h.svc.Refund(ctx, "missing", nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestConcurrentRefundPaysOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out := h.reserve(t, 1, day(2024, 3, 6))
	_, err := h.pay(t, out.Payment.ID)
	require.NoError(t, err)

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	h.gateway.BeforeRefund = func() {
		entered <- struct{}{}
		<-release
	}

	first := make(chan error, 1)
	go func() {
		_, err := h.svc.Refund(ctx, out.Payment.ID, nil)
		first <- err
	}()
	<-entered

	_, err = h.svc.Refund(ctx, out.Payment.ID, nil)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Contains(t, err.Error(), "already in progress")

	close(release)
	require.NoError(t, <-first)
	assert.Len(t, h.gateway.Refunds, 1)
	assert.Len(t, entered, 0)

	_, err = h.svc.Refund(ctx, out.Payment.ID, nil)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Len(t, h.gateway.Refunds, 1)
	assert.Len(t, h.events.Events(queue.EventPaymentRefunded), 1)
}

func TestRefundProviderFailureReleasesClaim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	out := h.reserve(t, 1, day(2024, 3, 6))
	_, err := h.pay(t, out.Payment.ID)
	require.NoError(t, err)

	h.gateway.RefundErr = model.ErrGateway
	_, err = h.svc.Refund(ctx, out.Payment.ID, nil)
	assert.ErrorIs(t, err, model.ErrGateway)
	p, err := h.ledger.Payments().Get(ctx, out.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSucceeded, p.Status)

	h.gateway.RefundErr = nil
	p, err = h.svc.Refund(ctx, out.Payment.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentRefunded, p.Status)
	assert.Len(t, h.gateway.Refunds, 1)
}

func TestUpcoming(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.confirmed(t, 1, day(2024, 3, 6))
	filed := h.confirmed(t, 2, day(2024, 3, 8))
	_, err := h.svc.FileBrief(ctx, filed.ID)
	require.NoError(t, err)
	h.confirmed(t, 3, day(2024, 3, 29))

	list, err := h.svc.Upcoming(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].ClientID)

	_, err = h.svc.Upcoming(ctx, 0)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCalendarViews(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.confirmed(t, 1, day(2024, 3, 6))
	h.mirror.Booked.Add(day(2024, 3, 8))

	days, err := h.svc.CalendarMonth(ctx, day(2024, 3, 1))
	require.NoError(t, err)
	require.Len(t, days, 12)
	assert.Equal(t, "2024-03-04", days[0].Date)
	assert.False(t, days[0].Booked)
	assert.Equal(t, "06.03.2024", days[1].Label)
	assert.True(t, days[1].Booked)
	assert.True(t, days[2].Booked)

	months, err := h.svc.CalendarMonths(ctx)
	require.NoError(t, err)
	require.Len(t, months, 6)
	assert.Equal(t, "2024-03", months[0].Month)
	assert.Equal(t, 10, months[0].Available)
	assert.Equal(t, "2024-08", months[5].Month)

	h.mirror.Down = true
	days, err = h.svc.CalendarMonth(ctx, day(2024, 3, 1))
	require.NoError(t, err)
	assert.True(t, days[1].Booked)
	assert.False(t, days[2].Booked)

	_, err = h.svc.CalendarMonth(ctx, day(2024, 9, 1))
	assert.ErrorIs(t, err, model.ErrValidation)
}

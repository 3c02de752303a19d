package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/metrics"
	"github.com/iliyamo/workday-booking/internal/model"
	"github.com/iliyamo/workday-booking/internal/notify"
	"github.com/iliyamo/workday-booking/internal/payment"
	"github.com/iliyamo/workday-booking/internal/queue"
	"github.com/iliyamo/workday-booking/internal/repository"
)

const (
	reasonSlotLost        = "slot lost to concurrent booking"
	reasonClientCancelled = "cancelled by client"
	reasonDuplicate       = "duplicate payment"
	reasonOrphaned        = "payment for a withdrawn reservation"
)

// Pricing holds the amounts charged for a reservation.
type Pricing struct {
	Deposit  decimal.Decimal
	Final    decimal.Decimal
	Currency string
}

// Amount returns the price of a payment kind.
func (p Pricing) Amount(kind model.PaymentKind) decimal.Decimal {
	if kind == model.KindFinal {
		return p.Final
	}
	return p.Deposit
}

// Format renders an amount with the currency, e.g. "4000 RUB".
func (p Pricing) Format(d decimal.Decimal) string {
	return d.StringFixedBank(0) + " " + p.Currency
}

// BookingDeps wires a BookingService.
type BookingDeps struct {
	Reservations ReservationStore
	Payments     PaymentStore
	Gateway      PaymentGateway
	Mirror       Mirror
	Events       EventPublisher
	Notifier     notify.Notifier
	Calendar     calendar.Calendar
	Pricing      Pricing
	BriefFormURL string
	Now          func() time.Time
	Log          *logrus.Entry
}

// BookingService is the reservation engine: it checks availability,
// creates reservations and payments, and reconciles payment confirmations
// into reservation state.  The ledger is the only source of truth; the
// mirror, events and chat messages follow a committed change and their
// failures never undo it.
type BookingService struct {
	reservations ReservationStore
	payments     PaymentStore
	gateway      PaymentGateway
	mirror       Mirror
	events       EventPublisher
	notifier     notify.Notifier
	cal          calendar.Calendar
	pricing      Pricing
	briefURL     string
	now          func() time.Time
	log          *logrus.Entry
}

func NewBookingService(d BookingDeps) *BookingService {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &BookingService{
		reservations: d.Reservations,
		payments:     d.Payments,
		gateway:      d.Gateway,
		mirror:       d.Mirror,
		events:       d.Events,
		notifier:     d.Notifier,
		cal:          d.Calendar,
		pricing:      d.Pricing,
		briefURL:     d.BriefFormURL,
		now:          d.Now,
		log:          d.Log,
	}
}

// ReserveRequest asks for a slot on behalf of a chat client.
type ReserveRequest struct {
	ClientID    int64
	Username    string
	DisplayName string
	SlotDate    time.Time
}

// ReserveResult is a tentative reservation and its pending deposit.
type ReserveResult struct {
	Reservation *model.Reservation `json:"reservation"`
	Payment     *model.Payment     `json:"payment"`
}

// Reserve creates (or reuses) a tentative reservation for the date and
// opens a deposit payment for it.  Availability is checked against the
// ledger only.  The date is not held until the deposit is reconciled.
func (s *BookingService) Reserve(ctx context.Context, req ReserveRequest) (*ReserveResult, error) {
	if req.ClientID == 0 {
		return nil, fmt.Errorf("%w: client id is required", model.ErrValidation)
	}
	day := calendar.Day(req.SlotDate)
	if !s.cal.Permitted(day, s.now()) {
		return nil, fmt.Errorf("%w: %s is not a bookable date", model.ErrValidation, calendar.Key(day))
	}
	held, err := s.reservations.HeldDates(ctx, day, day)
	if err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}
	if len(held) > 0 {
		return nil, fmt.Errorf("%w: slot no longer available", model.ErrConflict)
	}

	res, err := s.reservations.FindTentative(ctx, req.ClientID, day)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		name := strings.TrimSpace(req.DisplayName)
		if name == "" {
			name = req.Username
		}
		res = &model.Reservation{
			ClientID:    req.ClientID,
			Username:    req.Username,
			DisplayName: name,
			SlotDate:    day,
			Status:      model.StatusTentative,
		}
		if err := s.reservations.CreateTentative(ctx, res); err != nil {
			return nil, err
		}
		metrics.ReservationsCreated.Inc()
	case err != nil:
		return nil, err
	}

	pay, err := s.openPayment(ctx, res, model.KindDeposit)
	if err != nil {
		return nil, err
	}
	s.mirror.PushReservation(*res, pay.ID)
	s.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"client_id":      res.ClientID,
		"slot_date":      calendar.Key(day),
		"payment_id":     pay.ID,
	}).Info("tentative reservation created")
	return &ReserveResult{Reservation: res, Payment: pay}, nil
}

// CreateFinalPayment opens the final-balance payment for a client's
// reservation.  The deposit must have been paid.
func (s *BookingService) CreateFinalPayment(ctx context.Context, clientID int64, reservationID uint64) (*model.Payment, error) {
	res, err := s.clientReservation(ctx, clientID, reservationID)
	if err != nil {
		return nil, err
	}
	if !res.DepositPaid {
		return nil, fmt.Errorf("%w: deposit has not been paid", model.ErrValidation)
	}
	if res.FinalPaid {
		return nil, fmt.Errorf("%w: final payment already received", model.ErrValidation)
	}
	if res.Status != model.StatusConfirmed && res.Status != model.StatusBriefFiled {
		return nil, fmt.Errorf("%w: reservation is %s", model.ErrValidation, res.Status)
	}
	return s.openPayment(ctx, res, model.KindFinal)
}

// openPayment creates a provider payment with a fresh idempotency key and
// records it as pending before returning.
func (s *BookingService) openPayment(ctx context.Context, res *model.Reservation, kind model.PaymentKind) (*model.Payment, error) {
	amount := s.pricing.Amount(kind)
	created, err := s.gateway.Create(ctx, payment.CreateRequest{
		Amount:      amount,
		Currency:    s.pricing.Currency,
		Description: paymentDescription(kind, res.SlotDate),
		Metadata: map[string]string{
			"reservation_id": strconv.FormatUint(res.ID, 10),
			"client_id":      strconv.FormatInt(res.ClientID, 10),
			"slot_date":      calendar.Key(res.SlotDate),
			"kind":           string(kind),
		},
	})
	if err != nil {
		metrics.GatewayErrors.Inc()
		return nil, err
	}

	resID := res.ID
	p := &model.Payment{
		ID:              created.ID,
		ReservationID:   &resID,
		ClientID:        res.ClientID,
		Amount:          amount,
		Currency:        s.pricing.Currency,
		Kind:            kind,
		Status:          model.PaymentPending,
		SlotDate:        res.SlotDate,
		IdempotencyKey:  created.IdempotencyKey,
		ConfirmationURL: created.ConfirmationURL,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		s.log.WithError(err).WithField("payment_id", p.ID).Error("provider payment created but not recorded")
		return nil, err
	}
	res.PaymentIDs = append(res.PaymentIDs, p.ID)
	metrics.PaymentsCreated.WithLabelValues(string(kind)).Inc()
	return p, nil
}

func paymentDescription(kind model.PaymentKind, day time.Time) string {
	if kind == model.KindFinal {
		return "Final payment for " + calendar.Label(day)
	}
	return "Deposit for " + calendar.Label(day)
}

// ReconcileResult is the ledger state after a reconciliation.
type ReconcileResult struct {
	Payment     *model.Payment     `json:"payment"`
	Reservation *model.Reservation `json:"reservation,omitempty"`
}

// Reconcile applies a reported provider status to the ledger.  It is safe
// to call any number of times with the same input: transitions are
// conditional and side effects follow only the call that changed a row.
func (s *BookingService) Reconcile(ctx context.Context, paymentID string, reported model.PaymentStatus) (*ReconcileResult, error) {
	p, err := s.payments.Get(ctx, paymentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: payment %s", model.ErrNotFound, paymentID)
	}
	if err != nil {
		return nil, err
	}
	metrics.PaymentReconciliations.WithLabelValues(string(reported)).Inc()
	log := s.log.WithFields(logrus.Fields{"payment_id": p.ID, "kind": p.Kind, "reported": reported})

	switch reported {
	case model.PaymentPending, model.PaymentRefunded:
		return s.result(ctx, p)

	case model.PaymentFailed:
		if p.Status == model.PaymentPending {
			ok, err := s.payments.SetStatus(ctx, p.ID, model.PaymentPending, model.PaymentFailed)
			if err != nil {
				return nil, err
			}
			if ok {
				p.Status = model.PaymentFailed
				log.Info("payment failed")
				s.tell(ctx, p.ClientID, "Payment was not completed. You can try again from your booking.")
			}
		}
		return s.result(ctx, p)

	case model.PaymentSucceeded:
		fresh := false
		if p.Status == model.PaymentPending || p.Status == model.PaymentFailed {
			fresh, err = s.payments.SetStatus(ctx, p.ID, p.Status, model.PaymentSucceeded)
			if err != nil {
				return nil, err
			}
		}
		if p.Status == model.PaymentRefunded || p.Status == model.PaymentRefunding {
			return s.result(ctx, p)
		}
		p.Status = model.PaymentSucceeded
		if fresh {
			log.Info("payment succeeded")
		}
		res, err := s.applySucceeded(ctx, p, fresh)
		return &ReconcileResult{Payment: p, Reservation: res}, err
	}
	return nil, fmt.Errorf("%w: unknown payment status %q", model.ErrValidation, reported)
}

func (s *BookingService) result(ctx context.Context, p *model.Payment) (*ReconcileResult, error) {
	out := &ReconcileResult{Payment: p}
	if p.ReservationID != nil {
		res, err := s.reservations.Get(ctx, *p.ReservationID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		out.Reservation = res
	}
	return out, nil
}

// applySucceeded (re)applies the reservation transition a succeeded payment
// implies.  fresh is true only for the call that moved the payment to
// succeeded.
func (s *BookingService) applySucceeded(ctx context.Context, p *model.Payment, fresh bool) (*model.Reservation, error) {
	if p.ReservationID == nil {
		if fresh {
			s.refundEligible(ctx, nil, p, reasonOrphaned)
		}
		return nil, nil
	}
	res, err := s.reservations.Get(ctx, *p.ReservationID)
	if errors.Is(err, repository.ErrNotFound) {
		if fresh {
			s.refundEligible(ctx, nil, p, reasonOrphaned)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Kind == model.KindFinal {
		return s.applyFinal(ctx, res, p, fresh)
	}
	return s.applyDeposit(ctx, res, p, fresh)
}

func (s *BookingService) applyDeposit(ctx context.Context, res *model.Reservation, p *model.Payment, fresh bool) (*model.Reservation, error) {
	switch res.Status {
	case model.StatusTentative:
		ok, err := s.reservations.ConfirmDeposit(ctx, res.ID)
		if errors.Is(err, repository.ErrSlotTaken) {
			return s.loseSlot(ctx, res, p)
		}
		if err != nil {
			return nil, err
		}
		cur, err := s.reservations.Get(ctx, res.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			// a concurrent reconciliation moved it first
			return cur, nil
		}
		s.transitioned(cur)
		s.publish(ctx, eventFor(queue.EventReservationConfirmed, cur, p, s.pricing.Format(p.Amount), ""))
		msg := fmt.Sprintf("Deposit received. Your booking for %s is confirmed.", calendar.Label(cur.SlotDate))
		if s.briefURL != "" {
			msg += "\nPlease fill in the project brief: " + s.briefURL
		}
		s.tell(ctx, cur.ClientID, msg)
		return cur, nil

	case model.StatusCancelled:
		// the slot was already lost or released; nothing to hold
		if fresh {
			s.refundEligible(ctx, res, p, reasonOrphaned)
		}
		return res, nil

	default:
		if fresh && s.hasOtherSucceeded(ctx, res.ID, p) {
			s.refundEligible(ctx, res, p, reasonDuplicate)
		}
		return res, nil
	}
}

// loseSlot cancels a reservation whose deposit arrived after the date was
// taken, marks it refund eligible and reports a conflict.
func (s *BookingService) loseSlot(ctx context.Context, res *model.Reservation, p *model.Payment) (*model.Reservation, error) {
	ok, err := s.reservations.LoseSlot(ctx, res.ID, reasonSlotLost)
	if err != nil {
		return nil, err
	}
	cur, err := s.reservations.Get(ctx, res.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		metrics.SlotConflicts.Inc()
		s.transitioned(cur)
		s.refundEligible(ctx, cur, p, reasonSlotLost)
		s.tell(ctx, cur.ClientID, fmt.Sprintf(
			"Sorry, %s was booked by someone else a moment before your payment arrived. "+
				"Your deposit will be refunded. Please choose another date.", calendar.Label(cur.SlotDate)))
	}
	return cur, fmt.Errorf("%w: slot no longer available", model.ErrConflict)
}

func (s *BookingService) applyFinal(ctx context.Context, res *model.Reservation, p *model.Payment, fresh bool) (*model.Reservation, error) {
	switch res.Status {
	case model.StatusConfirmed, model.StatusBriefFiled:
		ok, err := s.reservations.MarkFinalPaid(ctx, res.ID)
		if err != nil {
			return nil, err
		}
		cur, err := s.reservations.Get(ctx, res.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return cur, nil
		}
		s.transitioned(cur)
		s.publish(ctx, eventFor(queue.EventFinalPaymentConfirmed, cur, p, s.pricing.Format(p.Amount), ""))
		s.tell(ctx, cur.ClientID, "Final payment received. Your materials will be delivered shortly.")
		return cur, nil

	case model.StatusFinalConfirmed, model.StatusCompleted:
		if fresh && s.hasOtherSucceeded(ctx, res.ID, p) {
			s.refundEligible(ctx, res, p, reasonDuplicate)
		}
		return res, nil

	default:
		if fresh {
			s.refundEligible(ctx, res, p, reasonOrphaned)
		}
		return res, nil
	}
}

// hasOtherSucceeded reports whether another payment of the same kind has
// already succeeded for the reservation.
func (s *BookingService) hasOtherSucceeded(ctx context.Context, reservationID uint64, p *model.Payment) bool {
	list, err := s.payments.ListByReservation(ctx, reservationID)
	if err != nil {
		s.log.WithError(err).WithField("reservation_id", reservationID).Warn("cannot check duplicate payments")
		return false
	}
	for _, other := range list {
		if other.ID != p.ID && other.Kind == p.Kind && other.Status == model.PaymentSucceeded {
			return true
		}
	}
	return false
}

// CheckPayment is the client's "I paid" button: it asks the provider for
// the payment status and reconciles it.
func (s *BookingService) CheckPayment(ctx context.Context, clientID int64, paymentID string) (*ReconcileResult, error) {
	p, err := s.payments.Get(ctx, paymentID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && p.ClientID != clientID) {
		return nil, fmt.Errorf("%w: payment %s", model.ErrNotFound, paymentID)
	}
	if err != nil {
		return nil, err
	}
	return s.reconcileFromProvider(ctx, paymentID)
}

// HandleNotification processes a provider webhook.  The notification body
// is not trusted: payments unknown to the ledger are rejected and the
// status is read back from the provider.
func (s *BookingService) HandleNotification(ctx context.Context, paymentID string) (*ReconcileResult, error) {
	if _, err := s.payments.Get(ctx, paymentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: payment %s", model.ErrNotFound, paymentID)
		}
		return nil, err
	}
	return s.reconcileFromProvider(ctx, paymentID)
}

func (s *BookingService) reconcileFromProvider(ctx context.Context, paymentID string) (*ReconcileResult, error) {
	st, err := s.gateway.Status(ctx, paymentID)
	if err != nil {
		metrics.GatewayErrors.Inc()
		return nil, err
	}
	return s.Reconcile(ctx, paymentID, st.Status)
}

// Cancel withdraws a client's reservation.  A tentative reservation is
// deleted; a confirmed one is cancelled, its slot released and its deposit
// marked for refund.  Fully paid reservations and later states cannot be
// cancelled by the client.
func (s *BookingService) Cancel(ctx context.Context, clientID int64, reservationID uint64) (*model.Reservation, error) {
	res, err := s.clientReservation(ctx, clientID, reservationID)
	if err != nil {
		return nil, err
	}
	switch res.Status {
	case model.StatusTentative:
		if err := s.reservations.DeleteTentative(ctx, res.ID); err != nil {
			if errors.Is(err, repository.ErrStaleState) {
				return nil, fmt.Errorf("%w: reservation changed, reload and retry", model.ErrValidation)
			}
			return nil, err
		}
		res.Status = model.StatusCancelled
		res.CancelReason = reasonClientCancelled
		s.transitioned(res)
		s.publish(ctx, eventFor(queue.EventReservationCancelled, res, nil, "", reasonClientCancelled))
		return res, nil

	case model.StatusConfirmed:
		if res.FinalPaid {
			return nil, fmt.Errorf("%w: the booking is paid in full and can no longer be cancelled", model.ErrValidation)
		}
		ok, err := s.reservations.CancelConfirmed(ctx, res.ID, reasonClientCancelled)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: reservation changed, reload and retry", model.ErrValidation)
		}
		cur, err := s.reservations.Get(ctx, res.ID)
		if err != nil {
			return nil, err
		}
		s.transitioned(cur)
		s.publish(ctx, eventFor(queue.EventReservationCancelled, cur, nil, "", reasonClientCancelled))
		s.refundEligible(ctx, cur, s.succeededPayment(ctx, cur.ID, model.KindDeposit), reasonClientCancelled)
		return cur, nil
	}
	return nil, fmt.Errorf("%w: a %s reservation cannot be cancelled", model.ErrValidation, res.Status)
}

// FileBrief records that the client completed the project brief.  Repeated
// signals are no-ops.
func (s *BookingService) FileBrief(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
	res, err := s.reservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	switch res.Status {
	case model.StatusBriefFiled, model.StatusFinalConfirmed, model.StatusCompleted:
		return res, nil
	case model.StatusConfirmed:
	default:
		return nil, fmt.Errorf("%w: a %s reservation cannot take a brief", model.ErrValidation, res.Status)
	}

	ok, err := s.reservations.FileBrief(ctx, res.ID)
	if err != nil {
		return nil, err
	}
	cur, err := s.reservations.Get(ctx, res.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		s.transitioned(cur)
		s.tell(ctx, cur.ClientID, "Thank you, your brief has been received.")
	}
	return cur, nil
}

// Refund returns money for a succeeded payment.  amount defaults to the
// full payment.  The payment is claimed (succeeded -> refunding) before the
// provider is called, so concurrent refunds of one payment pay out once; the
// claim is given back when the provider fails.  Reservation state is not
// touched.
func (s *BookingService) Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (*model.Payment, error) {
	p, err := s.payments.Get(ctx, paymentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: payment %s", model.ErrNotFound, paymentID)
	}
	if err != nil {
		return nil, err
	}
	if p.Status != model.PaymentSucceeded {
		return nil, notRefundable(p.Status)
	}
	amt := p.Amount
	if amount != nil {
		if !amount.IsPositive() || amount.GreaterThan(p.Amount) {
			return nil, fmt.Errorf("%w: refund amount must be between 0 and %s", model.ErrValidation, p.Amount.String())
		}
		amt = *amount
	}

	claimed, err := s.payments.SetStatus(ctx, p.ID, model.PaymentSucceeded, model.PaymentRefunding)
	if err != nil {
		return nil, err
	}
	if !claimed {
		cur, err := s.payments.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return nil, notRefundable(cur.Status)
	}
	log := s.log.WithFields(logrus.Fields{"payment_id": p.ID, "amount": amt.String()})

	if err := s.gateway.Refund(ctx, p.ID, amt, p.Currency); err != nil {
		metrics.GatewayErrors.Inc()
		if _, rerr := s.payments.SetStatus(context.WithoutCancel(ctx), p.ID, model.PaymentRefunding, model.PaymentSucceeded); rerr != nil {
			log.WithError(rerr).Error("refund failed and payment left in refunding")
		}
		return nil, err
	}
	ok, err := s.payments.MarkRefunded(context.WithoutCancel(ctx), p.ID, amt)
	if err != nil {
		log.WithError(err).Error("refund issued but not recorded")
		return nil, err
	}
	if !ok {
		log.Error("refund issued but payment was no longer refunding")
		return nil, fmt.Errorf("%w: payment %s changed during refund", model.ErrConflict, p.ID)
	}
	log.Info("payment refunded")
	p.Status = model.PaymentRefunded
	p.RefundedAmount = amt

	ev := queue.Event{Type: queue.EventPaymentRefunded, ClientID: p.ClientID, SlotDate: calendar.Key(p.SlotDate),
		PaymentID: p.ID, Amount: s.pricing.Format(amt), OccurredAt: s.now().UTC()}
	if p.ReservationID != nil {
		ev.ReservationID = *p.ReservationID
	}
	s.publish(ctx, ev)
	s.tell(ctx, p.ClientID, fmt.Sprintf("A refund of %s has been issued.", s.pricing.Format(amt)))
	return p, nil
}

func notRefundable(st model.PaymentStatus) error {
	if st == model.PaymentRefunding {
		return fmt.Errorf("%w: a refund of this payment is already in progress", model.ErrValidation)
	}
	return fmt.Errorf("%w: payment is %s, only succeeded payments can be refunded", model.ErrValidation, st)
}

// Reservation returns a reservation by id.
func (s *BookingService) Reservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.reservation(ctx, id)
}

// ClientReservations lists a client's reservations.
func (s *BookingService) ClientReservations(ctx context.Context, clientID int64) ([]model.Reservation, error) {
	return s.reservations.ListByClient(ctx, clientID)
}

// ReservationsOn lists the non-cancelled reservations of a day.
func (s *BookingService) ReservationsOn(ctx context.Context, day time.Time) ([]model.Reservation, error) {
	return s.reservations.ListByDate(ctx, calendar.Day(day))
}

// Today returns the current civil date in the service location.
func (s *BookingService) Today() time.Time { return s.cal.Today(s.now()) }

// Upcoming lists confirmed reservations in the next days days whose brief
// is still missing.
func (s *BookingService) Upcoming(ctx context.Context, days int) ([]model.Reservation, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive", model.ErrValidation)
	}
	today := s.Today()
	return s.reservations.Upcoming(ctx, today, today.AddDate(0, 0, days))
}

// Stats counts reservations per status.
func (s *BookingService) Stats(ctx context.Context) (map[model.ReservationStatus]int, error) {
	return s.reservations.CountByStatus(ctx)
}

func (s *BookingService) reservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := s.reservations.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: reservation %d", model.ErrNotFound, id)
	}
	return res, err
}

func (s *BookingService) clientReservation(ctx context.Context, clientID int64, id uint64) (*model.Reservation, error) {
	res, err := s.reservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.ClientID != clientID {
		return nil, fmt.Errorf("%w: reservation %d", model.ErrNotFound, id)
	}
	return res, nil
}

func (s *BookingService) succeededPayment(ctx context.Context, reservationID uint64, kind model.PaymentKind) *model.Payment {
	list, err := s.payments.ListByReservation(ctx, reservationID)
	if err != nil {
		return nil
	}
	for i := range list {
		if list[i].Kind == kind && list[i].Status == model.PaymentSucceeded {
			return &list[i]
		}
	}
	return nil
}

// transitioned records a committed state change in metrics and the mirror.
func (s *BookingService) transitioned(res *model.Reservation) {
	metrics.ReservationTransitions.WithLabelValues(string(res.Status)).Inc()
	s.mirror.PushStatus(res.ClientID, res.SlotDate, res.Status)
	s.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"client_id":      res.ClientID,
		"status":         res.Status,
	}).Info("reservation state changed")
}

func (s *BookingService) refundEligible(ctx context.Context, res *model.Reservation, p *model.Payment, reason string) {
	ev := queue.Event{Type: queue.EventRefundEligible, Reason: reason, OccurredAt: s.now().UTC()}
	if res != nil {
		ev = eventFor(queue.EventRefundEligible, res, p, "", reason)
		ev.OccurredAt = s.now().UTC()
	}
	if p != nil {
		ev.PaymentID = p.ID
		ev.Amount = s.pricing.Format(p.Amount)
		if res == nil {
			ev.ClientID = p.ClientID
			ev.SlotDate = calendar.Key(p.SlotDate)
		}
	}
	s.log.WithFields(logrus.Fields{"payment_id": ev.PaymentID, "reason": reason}).Warn("payment is refund eligible")
	s.publish(ctx, ev)
}

func eventFor(t queue.EventType, res *model.Reservation, p *model.Payment, amount, reason string) queue.Event {
	ev := queue.Event{
		Type:          t,
		ReservationID: res.ID,
		ClientID:      res.ClientID,
		Username:      res.Username,
		DisplayName:   res.DisplayName,
		SlotDate:      calendar.Key(res.SlotDate),
		Amount:        amount,
		Reason:        reason,
	}
	if p != nil {
		ev.PaymentID = p.ID
	}
	return ev
}

func (s *BookingService) publish(ctx context.Context, ev queue.Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now().UTC()
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithField("event", ev.Type).Warn("event publish failed")
	}
}

func (s *BookingService) tell(ctx context.Context, chatID int64, text string) {
	if err := s.notifier.Deliver(ctx, chatID, notify.Text(text)); err != nil {
		s.log.WithError(err).WithField("chat_id", chatID).Warn("client notification failed")
	}
}

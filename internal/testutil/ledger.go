// Package testutil holds in-memory doubles of the booking service's
// collaborators.  The ledger double enforces the same compare-and-set
// rules as the MySQL repositories so engine tests exercise the real races.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/model"
	"github.com/iliyamo/workday-booking/internal/repository"
)

// Ledger keeps reservations and payments under one mutex.
type Ledger struct {
	mu           sync.Mutex
	nextID       uint64
	reservations map[uint64]*model.Reservation
	payments     map[string]*model.Payment
	order        []string
	now          func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{
		reservations: map[uint64]*model.Reservation{},
		payments:     map[string]*model.Payment{},
		now:          time.Now,
	}
}

// Reservations returns the reservation store view.
func (l *Ledger) Reservations() *ReservationStore { return &ReservationStore{l} }

// Payments returns the payment store view.
func (l *Ledger) Payments() *PaymentStore { return &PaymentStore{l} }

// Put stores a reservation as is, assigning an id when it has none.
func (l *Ledger) Put(res model.Reservation) *model.Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()
	if res.ID == 0 {
		l.nextID++
		res.ID = l.nextID
	} else if res.ID > l.nextID {
		l.nextID = res.ID
	}
	res.SlotDate = calendar.Day(res.SlotDate)
	l.reservations[res.ID] = &res
	return l.copyRes(&res)
}

// PutPayment stores a payment as is.
func (l *Ledger) PutPayment(p model.Payment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.payments[p.ID]; !ok {
		l.order = append(l.order, p.ID)
	}
	l.payments[p.ID] = &p
}

// Held returns the reservations currently holding the date.
func (l *Ledger) Held(day time.Time) []model.Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.Reservation
	for _, id := range l.sortedIDs() {
		r := l.reservations[id]
		if r.Status.HoldsSlot() && r.SlotDate.Equal(calendar.Day(day)) {
			out = append(out, *l.copyRes(r))
		}
	}
	return out
}

func (l *Ledger) sortedIDs() []uint64 {
	ids := make([]uint64, 0, len(l.reservations))
	for id := range l.reservations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (l *Ledger) copyRes(r *model.Reservation) *model.Reservation {
	c := *r
	c.PaymentIDs = []string{}
	for _, id := range l.order {
		p := l.payments[id]
		if p.ReservationID != nil && *p.ReservationID == r.ID {
			c.PaymentIDs = append(c.PaymentIDs, id)
		}
	}
	return &c
}

func (l *Ledger) holder(day time.Time, except uint64) bool {
	for id, r := range l.reservations {
		if id != except && r.Status.HoldsSlot() && r.SlotDate.Equal(day) {
			return true
		}
	}
	return false
}

// transition applies f to the reservation when its status is one of from.
func (l *Ledger) transition(id uint64, f func(r *model.Reservation), from ...model.ReservationStatus) bool {
	r, ok := l.reservations[id]
	if !ok {
		return false
	}
	for _, s := range from {
		if r.Status == s {
			f(r)
			r.UpdatedAt = l.now()
			return true
		}
	}
	return false
}

func (l *Ledger) list(keep func(r *model.Reservation) bool) []model.Reservation {
	out := []model.Reservation{}
	for _, id := range l.sortedIDs() {
		if r := l.reservations[id]; keep(r) {
			out = append(out, *l.copyRes(r))
		}
	}
	return out
}

// ReservationStore is the reservation view of a Ledger.
type ReservationStore struct{ l *Ledger }

func (s *ReservationStore) CreateTentative(_ context.Context, res *model.Reservation) error {
	l := s.l
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	res.ID = l.nextID
	res.Status = model.StatusTentative
	res.SlotDate = calendar.Day(res.SlotDate)
	res.CreatedAt = l.now()
	res.UpdatedAt = res.CreatedAt
	res.PaymentIDs = []string{}
	stored := *res
	l.reservations[res.ID] = &stored
	return nil
}

func (s *ReservationStore) Get(_ context.Context, id uint64) (*model.Reservation, error) {
	l := s.l
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return l.copyRes(r), nil
}

func (s *ReservationStore) FindTentative(_ context.Context, clientID int64, day time.Time) (*model.Reservation, error) {
	l := s.l
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := l.sortedIDs()
	for i := len(ids) - 1; i >= 0; i-- {
		r := l.reservations[ids[i]]
		if r.ClientID == clientID && r.Status == model.StatusTentative && r.SlotDate.Equal(calendar.Day(day)) {
			return l.copyRes(r), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *ReservationStore) ListByClient(_ context.Context, clientID int64) ([]model.Reservation, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	out := s.l.list(func(r *model.Reservation) bool { return r.ClientID == clientID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].SlotDate.After(out[j].SlotDate) })
	return out, nil
}

func (s *ReservationStore) ListByDate(_ context.Context, day time.Time) ([]model.Reservation, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	day = calendar.Day(day)
	return s.l.list(func(r *model.Reservation) bool {
		return r.SlotDate.Equal(day) && r.Status != model.StatusCancelled
	}), nil
}

func (s *ReservationStore) DueForFinalPayment(_ context.Context, day time.Time) ([]model.Reservation, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	day = calendar.Day(day)
	return s.l.list(func(r *model.Reservation) bool {
		return r.SlotDate.Equal(day) && !r.FinalPaid &&
			(r.Status == model.StatusConfirmed || r.Status == model.StatusBriefFiled)
	}), nil
}

func (s *ReservationStore) Upcoming(_ context.Context, from, to time.Time) ([]model.Reservation, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	from, to = calendar.Day(from), calendar.Day(to)
	out := s.l.list(func(r *model.Reservation) bool {
		return r.Status == model.StatusConfirmed && !r.BriefCompleted &&
			!r.SlotDate.Before(from) && !r.SlotDate.After(to)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].SlotDate.Before(out[j].SlotDate) })
	return out, nil
}

func (s *ReservationStore) HeldDates(_ context.Context, from, to time.Time) ([]time.Time, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	from, to = calendar.Day(from), calendar.Day(to)
	var out []time.Time
	for _, r := range s.l.reservations {
		if r.Status.HoldsSlot() && !r.SlotDate.Before(from) && !r.SlotDate.After(to) {
			out = append(out, r.SlotDate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *ReservationStore) CountByStatus(context.Context) (map[model.ReservationStatus]int, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	out := map[model.ReservationStatus]int{}
	for _, r := range s.l.reservations {
		out[r.Status]++
	}
	return out, nil
}

func (s *ReservationStore) DeleteTentative(_ context.Context, id uint64) error {
	l := s.l
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.reservations[id]
	if !ok || r.Status != model.StatusTentative {
		return repository.ErrStaleState
	}
	delete(l.reservations, id)
	for _, p := range l.payments {
		if p.ReservationID != nil && *p.ReservationID == id {
			p.ReservationID = nil
		}
	}
	return nil
}

func (s *ReservationStore) ConfirmDeposit(_ context.Context, id uint64) (bool, error) {
	l := s.l
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.reservations[id]
	if !ok || r.Status != model.StatusTentative {
		return false, nil
	}
	if l.holder(r.SlotDate, id) {
		return false, repository.ErrSlotTaken
	}
	return l.transition(id, func(r *model.Reservation) {
		r.Status = model.StatusConfirmed
		r.DepositPaid = true
	}, model.StatusTentative), nil
}

func (s *ReservationStore) LoseSlot(_ context.Context, id uint64, reason string) (bool, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	return s.l.transition(id, func(r *model.Reservation) {
		r.Status = model.StatusCancelled
		r.DepositPaid = true
		r.RefundEligible = true
		r.CancelReason = reason
	}, model.StatusTentative), nil
}

func (s *ReservationStore) CancelConfirmed(_ context.Context, id uint64, reason string) (bool, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	if r, ok := s.l.reservations[id]; ok && r.FinalPaid {
		return false, nil
	}
	return s.l.transition(id, func(r *model.Reservation) {
		r.Status = model.StatusCancelled
		r.RefundEligible = true
		r.CancelReason = reason
	}, model.StatusConfirmed), nil
}

func (s *ReservationStore) FileBrief(_ context.Context, id uint64) (bool, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	return s.l.transition(id, func(r *model.Reservation) {
		r.BriefCompleted = true
		if r.FinalPaid {
			r.Status = model.StatusFinalConfirmed
		} else {
			r.Status = model.StatusBriefFiled
		}
	}, model.StatusConfirmed), nil
}

func (s *ReservationStore) MarkFinalPaid(_ context.Context, id uint64) (bool, error) {
	l := s.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.reservations[id]; !ok || r.FinalPaid {
		return false, nil
	}
	return l.transition(id, func(r *model.Reservation) {
		r.FinalPaid = true
		if r.Status == model.StatusBriefFiled {
			r.Status = model.StatusFinalConfirmed
		}
	}, model.StatusConfirmed, model.StatusBriefFiled), nil
}

func (s *ReservationStore) Complete(_ context.Context, id uint64) (bool, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	return s.l.transition(id, func(r *model.Reservation) {
		r.Status = model.StatusCompleted
	}, model.StatusFinalConfirmed), nil
}

// PaymentStore is the payment view of a Ledger.
type PaymentStore struct{ l *Ledger }

func (s *PaymentStore) Create(_ context.Context, p *model.Payment) error {
	l := s.l
	l.mu.Lock()
	defer l.mu.Unlock()
	p.CreatedAt = l.now()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	if _, ok := l.payments[p.ID]; !ok {
		l.order = append(l.order, p.ID)
	}
	l.payments[p.ID] = &stored
	return nil
}

func (s *PaymentStore) Get(_ context.Context, id string) (*model.Payment, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	p, ok := s.l.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *PaymentStore) ListByReservation(_ context.Context, reservationID uint64) ([]model.Payment, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	var out []model.Payment
	for _, id := range s.l.order {
		p := s.l.payments[id]
		if p.ReservationID != nil && *p.ReservationID == reservationID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *PaymentStore) SetStatus(_ context.Context, id string, from, to model.PaymentStatus) (bool, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	p, ok := s.l.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = s.l.now()
	return true, nil
}

func (s *PaymentStore) MarkRefunded(_ context.Context, id string, amount decimal.Decimal) (bool, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	p, ok := s.l.payments[id]
	if !ok || p.Status != model.PaymentRefunding {
		return false, nil
	}
	p.Status = model.PaymentRefunded
	p.RefundedAmount = amount
	p.UpdatedAt = s.l.now()
	return true, nil
}

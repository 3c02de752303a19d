package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/model"
	"github.com/iliyamo/workday-booking/internal/notify"
	"github.com/iliyamo/workday-booking/internal/payment"
	"github.com/iliyamo/workday-booking/internal/queue"
)

// Logger returns a logrus entry that discards output.
func Logger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// Gateway is a scripted payment gateway.  Created payments are numbered
// pay-1, pay-2, ... and start pending; tests flip them with SetStatus.
type Gateway struct {
	mu        sync.Mutex
	n         int
	statuses  map[string]model.PaymentStatus
	Requests  []payment.CreateRequest
	Refunds   []decimal.Decimal
	CreateErr error
	StatusErr error
	RefundErr error
	// BeforeRefund, when set, runs at the start of every Refund call.
	BeforeRefund func()
}

func NewGateway() *Gateway { return &Gateway{statuses: map[string]model.PaymentStatus{}} }

func (g *Gateway) Create(_ context.Context, req payment.CreateRequest) (*payment.Created, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.n++
	id := fmt.Sprintf("pay-%d", g.n)
	g.statuses[id] = model.PaymentPending
	g.Requests = append(g.Requests, req)
	return &payment.Created{
		ProviderPayment: &payment.ProviderPayment{
			ID:              id,
			Status:          model.PaymentPending,
			Amount:          req.Amount,
			ConfirmationURL: "https://pay.test/" + id,
		},
		IdempotencyKey: fmt.Sprintf("key-%d", g.n),
	}, nil
}

func (g *Gateway) Status(_ context.Context, id string) (*payment.ProviderPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.StatusErr != nil {
		return nil, g.StatusErr
	}
	st, ok := g.statuses[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown payment %s", payment.ErrRejected, id)
	}
	return &payment.ProviderPayment{ID: id, Status: st}, nil
}

func (g *Gateway) Refund(_ context.Context, id string, amount decimal.Decimal, _ string) error {
	if g.BeforeRefund != nil {
		g.BeforeRefund()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.RefundErr != nil {
		return g.RefundErr
	}
	g.Refunds = append(g.Refunds, amount)
	return nil
}

// SetStatus changes what the provider reports for a payment.
func (g *Gateway) SetStatus(id string, st model.PaymentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[id] = st
}

// Message is one message captured by Notifier.
type Message struct {
	ChatID  int64
	Content notify.Content
}

// Notifier records delivered messages.
type Notifier struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (n *Notifier) Deliver(_ context.Context, chatID int64, c notify.Content) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.messages = append(n.messages, Message{ChatID: chatID, Content: c})
	return nil
}

// Messages returns the messages sent to chatID.
func (n *Notifier) Messages(chatID int64) []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Message
	for _, m := range n.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// All returns every message.
func (n *Notifier) All() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.messages...)
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	events []queue.Event
	Err    error
}

func (p *Publisher) Publish(_ context.Context, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, ev)
	return nil
}

// Events returns the published events of the given types, or all of them
// when no type is given.
func (p *Publisher) Events(types ...queue.EventType) []queue.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []queue.Event
	for _, ev := range p.events {
		if len(types) == 0 {
			out = append(out, ev)
			continue
		}
		for _, t := range types {
			if ev.Type == t {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}

// ErrMirrorDown is what Mirror.BookedDates returns when Down is set.
var ErrMirrorDown = errors.New("mirror unavailable")

// Mirror records pushes synchronously.
type Mirror struct {
	mu       sync.Mutex
	Statuses map[string]model.ReservationStatus
	Rows     int
	Booked   calendar.DateSet
	Down     bool
}

func NewMirror() *Mirror {
	return &Mirror{Statuses: map[string]model.ReservationStatus{}, Booked: calendar.DateSet{}}
}

func mirrorKey(clientID int64, day time.Time) string {
	return fmt.Sprintf("%d:%s", clientID, calendar.Key(day))
}

func (m *Mirror) PushReservation(res model.Reservation, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rows++
	m.Statuses[mirrorKey(res.ClientID, res.SlotDate)] = res.Status
}

func (m *Mirror) PushStatus(clientID int64, day time.Time, status model.ReservationStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses[mirrorKey(clientID, day)] = status
}

func (m *Mirror) BookedDates(context.Context) (calendar.DateSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Down {
		return nil, ErrMirrorDown
	}
	out := calendar.DateSet{}
	out.Union(m.Booked)
	return out, nil
}

// Status returns the last status pushed for the client and date.
func (m *Mirror) Status(clientID int64, day time.Time) model.ReservationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Statuses[mirrorKey(clientID, day)]
}

// Operator records operator notifications.
type Operator struct {
	mu    sync.Mutex
	texts []string
}

func (o *Operator) Notify(_ context.Context, text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.texts = append(o.texts, text)
}

// Texts returns the notifications sent so far.
func (o *Operator) Texts() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.texts...)
}

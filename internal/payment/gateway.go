package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/workday-booking/internal/model"
)

// Created is the result of a successful Create: the provider payment and
// the idempotency key that produced it.
type Created struct {
	*ProviderPayment
	IdempotencyKey string
}

// Gateway applies retry and idempotency policy on top of a Provider.
type Gateway struct {
	provider    Provider
	maxAttempts int
	backoff     time.Duration
	newKey      func() string
	log         *logrus.Entry
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithMaxAttempts bounds how many attempts Create and Refund make when the
// provider is unreachable.
func WithMaxAttempts(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay between attempts; attempt n waits n*d.
func WithBackoff(d time.Duration) Option { return func(g *Gateway) { g.backoff = d } }

// WithKeyFunc replaces the idempotency key generator.
func WithKeyFunc(f func() string) Option { return func(g *Gateway) { g.newKey = f } }

func NewGateway(p Provider, log *logrus.Entry, opts ...Option) *Gateway {
	g := &Gateway{
		provider:    p,
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
		newKey:      func() string { return uuid.NewString() },
		log:         log,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Create opens a payment with a fresh idempotency key.
//
// A failure that provably had no side effect is retried with a new key.
// Any other failure is resolved by repeating the request with the same
// key, which the provider answers with the original payment if it exists.
// When that also fails the outcome is unknown and ErrGateway is returned.
func (g *Gateway) Create(ctx context.Context, req CreateRequest) (*Created, error) {
	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := g.wait(ctx, attempt); err != nil {
				return nil, err
			}
		}
		req.IdempotencyKey = g.newKey()
		p, err := g.provider.Create(ctx, req)
		if err == nil {
			return &Created{ProviderPayment: p, IdempotencyKey: req.IdempotencyKey}, nil
		}
		lastErr = err
		switch {
		case errors.Is(err, ErrNoSideEffect):
			g.log.WithError(err).WithField("attempt", attempt).Warn("payment provider unreachable, retrying with a new key")
			continue
		case errors.Is(err, ErrRejected):
			return nil, fmt.Errorf("%w: %v", model.ErrGateway, err)
		}

		g.log.WithError(err).WithField("idempotency_key", req.IdempotencyKey).
			Warn("ambiguous payment creation, resolving with the same key")
		p, err = g.provider.Create(ctx, req)
		if err == nil {
			return &Created{ProviderPayment: p, IdempotencyKey: req.IdempotencyKey}, nil
		}
		g.log.WithError(err).WithField("idempotency_key", req.IdempotencyKey).Error("payment creation outcome unknown")
		return nil, fmt.Errorf("%w: payment pending, retry status check", model.ErrGateway)
	}
	return nil, fmt.Errorf("%w: provider unreachable: %v", model.ErrGateway, lastErr)
}

// Status returns the provider status of a payment.  Lookups are read-only
// and retried on any failure.
func (g *Gateway) Status(ctx context.Context, id string) (*ProviderPayment, error) {
	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := g.wait(ctx, attempt); err != nil {
				return nil, err
			}
		}
		p, err := g.provider.Lookup(ctx, id)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, ErrRejected) {
			return nil, fmt.Errorf("%w: %w", model.ErrGateway, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: status check failed: %v", model.ErrGateway, lastErr)
}

// Refund refunds amount of a succeeded payment.  Unreachable providers are
// retried like Create, but always with RefundKey.
func (g *Gateway) Refund(ctx context.Context, paymentID string, amount decimal.Decimal, currency string) error {
	req := RefundRequest{PaymentID: paymentID, Amount: amount, Currency: currency, IdempotencyKey: RefundKey(paymentID)}
	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := g.wait(ctx, attempt); err != nil {
				return err
			}
		}
		err := g.provider.Refund(ctx, req)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrNoSideEffect) {
			continue
		}
		if errors.Is(err, ErrRejected) {
			return fmt.Errorf("%w: %w", model.ErrGateway, err)
		}
		if err := g.provider.Refund(ctx, req); err == nil {
			return nil
		}
		return fmt.Errorf("%w: refund pending, retry status check", model.ErrGateway)
	}
	return fmt.Errorf("%w: provider unreachable: %v", model.ErrGateway, lastErr)
}

// RefundKey is the idempotency key of the refund of a payment.  A payment
// is refunded at most once, so every attempt and every retry of it reuses
// this key and the provider pays out only once.
func RefundKey(paymentID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("refund:"+paymentID)).String()
}

func (g *Gateway) wait(ctx context.Context, attempt int) error {
	if g.backoff <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(attempt-1) * g.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

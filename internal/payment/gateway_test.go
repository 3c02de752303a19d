package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/workday-booking/internal/model"
)

// scriptedProvider returns queued errors before succeeding and records the
// keys it was called with.
type scriptedProvider struct {
	createErrs []error
	lookupErrs []error
	refundErrs []error
	keys       []string
	byKey      map[string]*ProviderPayment
	n          int
}

func (s *scriptedProvider) Create(_ context.Context, req CreateRequest) (*ProviderPayment, error) {
	s.keys = append(s.keys, req.IdempotencyKey)
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if s.byKey == nil {
		s.byKey = map[string]*ProviderPayment{}
	}
	if p, ok := s.byKey[req.IdempotencyKey]; ok {
		return p, nil
	}
	s.n++
	p := &ProviderPayment{ID: fmt.Sprintf("pay-%d", s.n), Status: model.PaymentPending, Amount: req.Amount}
	s.byKey[req.IdempotencyKey] = p
	return p, nil
}

func (s *scriptedProvider) Lookup(_ context.Context, id string) (*ProviderPayment, error) {
	if len(s.lookupErrs) > 0 {
		err := s.lookupErrs[0]
		s.lookupErrs = s.lookupErrs[1:]
		return nil, err
	}
	return &ProviderPayment{ID: id, Status: model.PaymentSucceeded}, nil
}

func (s *scriptedProvider) Refund(_ context.Context, req RefundRequest) error {
	s.keys = append(s.keys, req.IdempotencyKey)
	if len(s.refundErrs) > 0 {
		err := s.refundErrs[0]
		s.refundErrs = s.refundErrs[1:]
		return err
	}
	return nil
}

func testGateway(p Provider) *Gateway {
	log := logrus.New()
	log.SetOutput(io.Discard)
	n := 0
	return NewGateway(p, logrus.NewEntry(log),
		WithBackoff(0),
		WithKeyFunc(func() string { n++; return fmt.Sprintf("key-%d", n) }),
	)
}

var deposit = CreateRequest{Amount: decimal.NewFromInt(4000), Currency: "RUB"}

func TestCreateUsesFreshKey(t *testing.T) {
	p := &scriptedProvider{}
	g := testGateway(p)

	a, err := g.Create(context.Background(), deposit)
	require.NoError(t, err)
	b, err := g.Create(context.Background(), deposit)
	require.NoError(t, err)

	assert.NotEqual(t, a.IdempotencyKey, b.IdempotencyKey)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestCreateRetriesNoSideEffectWithNewKey(t *testing.T) {
	p := &scriptedProvider{createErrs: []error{ErrNoSideEffect, nil}}
	g := testGateway(p)

	c, err := g.Create(context.Background(), deposit)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-1", "key-2"}, p.keys)
	assert.Equal(t, "key-2", c.IdempotencyKey)
}

func TestCreateResolvesAmbiguousWithSameKey(t *testing.T) {
	p := &scriptedProvider{createErrs: []error{errors.New("read timeout"), nil}}
	g := testGateway(p)

	c, err := g.Create(context.Background(), deposit)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-1", "key-1"}, p.keys)
	assert.Equal(t, "pay-1", c.ID)
}

func TestCreateAmbiguousTwiceIsGatewayError(t *testing.T) {
	p := &scriptedProvider{createErrs: []error{errors.New("timeout"), errors.New("timeout")}}
	g := testGateway(p)

	_, err := g.Create(context.Background(), deposit)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrGateway)
	assert.Contains(t, err.Error(), "payment pending, retry status check")
	// never a blind retry with a fresh key
	assert.Equal(t, []string{"key-1", "key-1"}, p.keys)
}

func TestCreateRejectedIsNotRetried(t *testing.T) {
	p := &scriptedProvider{createErrs: []error{fmt.Errorf("%w: status 400", ErrRejected)}}
	g := testGateway(p)

	_, err := g.Create(context.Background(), deposit)
	assert.ErrorIs(t, err, model.ErrGateway)
	assert.Len(t, p.keys, 1)
}

func TestCreateUnreachable(t *testing.T) {
	p := &scriptedProvider{createErrs: []error{ErrNoSideEffect, ErrNoSideEffect, ErrNoSideEffect}}
	g := testGateway(p)

	_, err := g.Create(context.Background(), deposit)
	assert.ErrorIs(t, err, model.ErrGateway)
	assert.Len(t, p.keys, 3)
}

func TestStatusRetries(t *testing.T) {
	p := &scriptedProvider{lookupErrs: []error{errors.New("timeout")}}
	g := testGateway(p)

	st, err := g.Status(context.Background(), "pay-7")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSucceeded, st.Status)
}

func TestRefundAmbiguousUsesSameKey(t *testing.T) {
	p := &scriptedProvider{refundErrs: []error{errors.New("timeout"), nil}}
	g := testGateway(p)

	require.NoError(t, g.Refund(context.Background(), "pay-1", decimal.NewFromInt(4000), "RUB"))
	key := RefundKey("pay-1")
	assert.Equal(t, []string{key, key}, p.keys)
}

func TestRefundKeyIsStablePerPayment(t *testing.T) {
	p := &scriptedProvider{refundErrs: []error{fmt.Errorf("%w: dial tcp", ErrNoSideEffect), nil}}
	g := testGateway(p)
	ctx := context.Background()

	require.NoError(t, g.Refund(ctx, "pay-1", decimal.NewFromInt(4000), "RUB"))
	require.NoError(t, g.Refund(ctx, "pay-1", decimal.NewFromInt(4000), "RUB"))
	require.NoError(t, g.Refund(ctx, "pay-2", decimal.NewFromInt(4000), "RUB"))

	key := RefundKey("pay-1")
	assert.Equal(t, []string{key, key, key, RefundKey("pay-2")}, p.keys)
	assert.NotEqual(t, RefundKey("pay-1"), RefundKey("pay-2"))
}

func TestRefundRejectedKeepsCause(t *testing.T) {
	p := &scriptedProvider{refundErrs: []error{fmt.Errorf("%w: payment not refundable", ErrRejected)}}
	g := testGateway(p)

	err := g.Refund(context.Background(), "pay-1", decimal.NewFromInt(4000), "RUB")
	assert.ErrorIs(t, err, model.ErrGateway)
	assert.ErrorIs(t, err, ErrRejected)
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/workday-booking/internal/model"
)

var paymentCols = []string{"id", "reservation_id", "client_id", "amount", "currency", "kind", "status",
	"slot_date", "idempotency_key", "confirmation_url", "refunded_amount", "created_at", "updated_at"}

func TestPaymentCreateAndGet(t *testing.T) {
	_, repo, mock := newMock(t)
	resID := uint64(3)
	day := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	p := &model.Payment{
		ID: "2d6f-1", ReservationID: &resID, ClientID: 42, Amount: decimal.NewFromInt(4000),
		Currency: "RUB", Kind: model.KindDeposit, Status: model.PaymentPending, SlotDate: day,
		IdempotencyKey: "k-1", ConfirmationURL: "https://pay/1",
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs("2d6f-1", uint64(3), int64(42), "4000", "RUB", "deposit", "pending", "2024-03-06", "k-1", "https://pay/1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(context.Background(), p))

	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE id = ?")).WithArgs("2d6f-1").
		WillReturnRows(sqlmock.NewRows(paymentCols).AddRow(
			"2d6f-1", 3, 42, "4000.00", "RUB", "deposit", "succeeded", day, "k-1", "https://pay/1", "0.00", day, day))

	got, err := repo.Get(context.Background(), "2d6f-1")
	require.NoError(t, err)
	require.NotNil(t, got.ReservationID)
	assert.Equal(t, uint64(3), *got.ReservationID)
	assert.Equal(t, model.PaymentSucceeded, got.Status)
	assert.True(t, decimal.NewFromInt(4000).Equal(got.Amount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentOrphanedReservation(t *testing.T) {
	_, repo, mock := newMock(t)
	day := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM payments WHERE id").WithArgs("p-9").
		WillReturnRows(sqlmock.NewRows(paymentCols).AddRow(
			"p-9", nil, 42, "4000.00", "RUB", "deposit", "pending", day, "k-9", "", "0", day, day))

	got, err := repo.Get(context.Background(), "p-9")
	require.NoError(t, err)
	assert.Nil(t, got.ReservationID)
}

func TestPaymentSetStatusOnlyFromExpected(t *testing.T) {
	_, repo, mock := newMock(t)
	q := regexp.QuoteMeta("UPDATE payments SET status = ? WHERE id = ? AND status = ?")
	mock.ExpectExec(q).WithArgs("succeeded", "p-1", "pending").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("succeeded", "p-1", "pending").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.SetStatus(context.Background(), "p-1", model.PaymentPending, model.PaymentSucceeded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetStatus(context.Background(), "p-1", model.PaymentPending, model.PaymentSucceeded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPaymentGetNotFound(t *testing.T) {
	_, repo, mock := newMock(t)
	mock.ExpectQuery("FROM payments WHERE id").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(paymentCols))

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentMarkRefundedNeedsClaim(t *testing.T) {
	_, repo, mock := newMock(t)
	q := regexp.QuoteMeta("SET status = 'refunded', refunded_amount = ? WHERE id = ? AND status = 'refunding'")
	mock.ExpectExec(q).WithArgs("1500", "p-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("1500", "p-1").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkRefunded(context.Background(), "p-1", decimal.NewFromInt(1500))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkRefunded(context.Background(), "p-1", decimal.NewFromInt(1500))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

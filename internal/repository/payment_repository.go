package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/model"
)

// PaymentRepo stores provider payments.
type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, reservation_id, client_id, amount, currency, kind, status, slot_date,
	idempotency_key, confirmation_url, refunded_amount, created_at, updated_at`

func scanPayment(s rowScanner) (*model.Payment, error) {
	var p model.Payment
	var resID sql.NullInt64
	var kind, status string
	err := s.Scan(
		&p.ID, &resID, &p.ClientID, &p.Amount, &p.Currency, &kind, &status, &p.SlotDate,
		&p.IdempotencyKey, &p.ConfirmationURL, &p.RefundedAmount, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if resID.Valid {
		id := uint64(resID.Int64)
		p.ReservationID = &id
	}
	p.Kind = model.PaymentKind(kind)
	p.Status = model.PaymentStatus(status)
	p.SlotDate = calendar.Day(p.SlotDate)
	return &p, nil
}

// Create inserts a payment.  The provider id is the primary key.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (id, reservation_id, client_id, amount, currency, kind, status,
				   slot_date, idempotency_key, confirmation_url)
			   VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var resID any
	if p.ReservationID != nil {
		resID = *p.ReservationID
	}
	_, err := r.db.ExecContext(ctx, q, p.ID, resID, p.ClientID, p.Amount, p.Currency, string(p.Kind),
		string(p.Status), calendar.Key(p.SlotDate), p.IdempotencyKey, p.ConfirmationURL)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// Get returns a payment by provider id.
func (r *PaymentRepo) Get(ctx context.Context, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListByReservation returns the reservation's payments, oldest first.
func (r *PaymentRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE reservation_id = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// SetStatus moves a payment from one status to another.  changed is false
// when the payment was not in the from status.
func (r *PaymentRepo) SetStatus(ctx context.Context, id string, from, to model.PaymentStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE payments SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return false, err
	}
	return changed(res)
}

// MarkRefunded records a refund the provider accepted.  The payment must
// have been claimed with SetStatus(succeeded, refunding) first.
func (r *PaymentRepo) MarkRefunded(ctx context.Context, id string, amount decimal.Decimal) (bool, error) {
	const q = `UPDATE payments SET status = 'refunded', refunded_amount = ? WHERE id = ? AND status = 'refunding'`
	res, err := r.db.ExecContext(ctx, q, amount, id)
	if err != nil {
		return false, err
	}
	return changed(res)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/model"
)

// ReservationRepo stores reservations.  Every state transition is a single
// conditional UPDATE guarded by the expected current status, so concurrent
// callers cannot both win the same transition.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle for health checks.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, client_id, username, display_name, slot_date, status,
	deposit_paid, final_paid, brief_completed, refund_eligible, cancel_reason,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (*model.Reservation, error) {
	var res model.Reservation
	var status string
	err := s.Scan(
		&res.ID, &res.ClientID, &res.Username, &res.DisplayName, &res.SlotDate, &status,
		&res.DepositPaid, &res.FinalPaid, &res.BriefCompleted, &res.RefundEligible, &res.CancelReason,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.Status = model.ReservationStatus(status)
	res.SlotDate = calendar.Day(res.SlotDate)
	res.PaymentIDs = []string{}
	return &res, nil
}

// CreateTentative inserts a tentative reservation and fills in the
// generated id and timestamps.
func (r *ReservationRepo) CreateTentative(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (client_id, username, display_name, slot_date, status)
			   VALUES (?, ?, ?, ?, 'tentative')`
	result, err := r.db.ExecContext(ctx, q, res.ClientID, res.Username, res.DisplayName, calendar.Key(res.SlotDate))
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.Get(ctx, uint64(id))
	if err != nil {
		return err
	}
	*res = *stored
	return nil
}

// Get returns a reservation with its payment ids.
func (r *ReservationRepo) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachPayments(ctx, []*model.Reservation{res}); err != nil {
		return nil, err
	}
	return res, nil
}

// FindTentative returns the client's most recent tentative reservation for
// the date, or ErrNotFound.
func (r *ReservationRepo) FindTentative(ctx context.Context, clientID int64, day time.Time) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
		  WHERE client_id = ? AND slot_date = ? AND status = 'tentative'
		  ORDER BY id DESC LIMIT 1`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, clientID, calendar.Key(day)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachPayments(ctx, []*model.Reservation{res}); err != nil {
		return nil, err
	}
	return res, nil
}

// ListByClient returns all reservations of a client, latest slot first.
func (r *ReservationRepo) ListByClient(ctx context.Context, clientID int64) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE client_id = ? ORDER BY slot_date DESC, id DESC`
	return r.list(ctx, q, clientID)
}

// ListByDate returns every reservation for a date that has not been cancelled.
func (r *ReservationRepo) ListByDate(ctx context.Context, day time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
		  WHERE slot_date = ? AND status <> 'cancelled' ORDER BY id`
	return r.list(ctx, q, calendar.Key(day))
}

// DueForFinalPayment returns reservations on the given day whose final
// balance has not been paid yet.
func (r *ReservationRepo) DueForFinalPayment(ctx context.Context, day time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
		  WHERE slot_date = ? AND status IN ('confirmed','brief_filed') AND final_paid = FALSE
		  ORDER BY id`
	return r.list(ctx, q, calendar.Key(day))
}

// Upcoming returns confirmed reservations between from and to (inclusive)
// whose brief has not been filed.
func (r *ReservationRepo) Upcoming(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
		  WHERE slot_date BETWEEN ? AND ? AND status = 'confirmed' AND brief_completed = FALSE
		  ORDER BY slot_date, id`
	return r.list(ctx, q, calendar.Key(from), calendar.Key(to))
}

// HeldDates returns the dates between from and to (inclusive) occupied by
// a reservation.
func (r *ReservationRepo) HeldDates(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	const q = `SELECT held_slot FROM reservations WHERE held_slot BETWEEN ? AND ? ORDER BY held_slot`
	rows, err := r.db.QueryContext(ctx, q, calendar.Key(from), calendar.Key(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, calendar.Day(d))
	}
	return out, rows.Err()
}

// CountByStatus returns the number of reservations per status.
func (r *ReservationRepo) CountByStatus(ctx context.Context) (map[model.ReservationStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM reservations GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[model.ReservationStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[model.ReservationStatus(status)] = n
	}
	return out, rows.Err()
}

// DeleteTentative removes a reservation that is still tentative.  Payments
// keep their row with reservation_id set to NULL.
func (r *ReservationRepo) DeleteTentative(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ? AND status = 'tentative'`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ConfirmDeposit moves a tentative reservation to confirmed.  It is the
// slot compare-and-set: ErrSlotTaken means another reservation already
// holds the date.  changed is false when the reservation was not tentative.
func (r *ReservationRepo) ConfirmDeposit(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE reservations SET status = 'confirmed', deposit_paid = TRUE
			   WHERE id = ? AND status = 'tentative'`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		if isDuplicateKey(err) {
			return false, ErrSlotTaken
		}
		return false, err
	}
	return changed(res)
}

// LoseSlot cancels a tentative reservation whose deposit was paid after
// the date went to someone else.
func (r *ReservationRepo) LoseSlot(ctx context.Context, id uint64, reason string) (bool, error) {
	const q = `UPDATE reservations
			   SET status = 'cancelled', deposit_paid = TRUE, refund_eligible = TRUE, cancel_reason = ?
			   WHERE id = ? AND status = 'tentative'`
	res, err := r.db.ExecContext(ctx, q, reason, id)
	if err != nil {
		return false, err
	}
	return changed(res)
}

// CancelConfirmed releases the slot of a confirmed reservation whose final
// payment has not arrived.  The deposit was paid, so the reservation
// becomes refund eligible.
func (r *ReservationRepo) CancelConfirmed(ctx context.Context, id uint64, reason string) (bool, error) {
	const q = `UPDATE reservations
			   SET status = 'cancelled', refund_eligible = TRUE, cancel_reason = ?
			   WHERE id = ? AND status = 'confirmed' AND final_paid = FALSE`
	res, err := r.db.ExecContext(ctx, q, reason, id)
	if err != nil {
		return false, err
	}
	return changed(res)
}

// FileBrief records the brief.  When the final payment already arrived the
// reservation goes straight to final_confirmed.
func (r *ReservationRepo) FileBrief(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE reservations
			   SET brief_completed = TRUE,
				   status = CASE WHEN final_paid THEN 'final_confirmed' ELSE 'brief_filed' END
			   WHERE id = ? AND status = 'confirmed'`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	return changed(res)
}

// MarkFinalPaid records the final payment.  A reservation whose brief is
// filed moves to final_confirmed; a confirmed one keeps its status.
func (r *ReservationRepo) MarkFinalPaid(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE reservations
			   SET final_paid = TRUE,
				   status = CASE WHEN status = 'brief_filed' THEN 'final_confirmed' ELSE status END
			   WHERE id = ? AND status IN ('confirmed','brief_filed') AND final_paid = FALSE`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	return changed(res)
}

// Complete marks a fully delivered reservation.
func (r *ReservationRepo) Complete(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE reservations SET status = 'completed' WHERE id = ? AND status = 'final_confirmed'`, id)
	if err != nil {
		return false, err
	}
	return changed(res)
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var ptrs []*model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ptrs = append(ptrs, res)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if err := r.attachPayments(ctx, ptrs); err != nil {
		return nil, err
	}
	out := make([]model.Reservation, 0, len(ptrs))
	for _, p := range ptrs {
		out = append(out, *p)
	}
	return out, nil
}

// attachPayments loads payment ids for the given reservations with a
// single IN query.
func (r *ReservationRepo) attachPayments(ctx context.Context, list []*model.Reservation) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[uint64]*model.Reservation, len(list))
	args := make([]any, 0, len(list))
	for _, res := range list {
		byID[res.ID] = res
		args = append(args, res.ID)
	}
	q := `SELECT reservation_id, id FROM payments WHERE reservation_id IN (` +
		strings.TrimSuffix(strings.Repeat("?,", len(args)), ",") + `) ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("load payment ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var resID uint64
		var payID string
		if err := rows.Scan(&resID, &payID); err != nil {
			return err
		}
		if res, ok := byID[resID]; ok {
			res.PaymentIDs = append(res.PaymentIDs, payID)
		}
	}
	return rows.Err()
}

func changed(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func expectOne(res sql.Result) error {
	ok, err := changed(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStaleState
	}
	return nil
}

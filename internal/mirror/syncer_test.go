package mirror

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/workday-booking/internal/model"
)

type memSheet struct {
	mu   sync.Mutex
	rows map[string]Row
	fail error
}

func (m *memSheet) UpsertRow(_ context.Context, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if m.rows == nil {
		m.rows = map[string]Row{}
	}
	m.rows[field(row.ClientID, row.DateLabel)] = row
	return nil
}

func (m *memSheet) UpdateStatusLabel(_ context.Context, clientID int64, dateLabel, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	row, ok := m.rows[field(clientID, dateLabel)]
	if !ok {
		return ErrRowMissing
	}
	row.Status = status
	m.rows[field(clientID, dateLabel)] = row
	return nil
}

func (m *memSheet) ListBookedDateLabels(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	var out []string
	for _, r := range m.rows {
		if bookedLabel(r.Status) {
			out = append(out, r.DateLabel)
		}
	}
	return out, nil
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestSyncerPushes(t *testing.T) {
	sheet := &memSheet{}
	s := NewSyncer(sheet, time.Second, quietLog())
	day := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	res := model.Reservation{ID: 1, ClientID: 42, DisplayName: "Anna", SlotDate: day, Status: model.StatusTentative}

	s.PushReservation(res, "pay-1")
	s.Wait()
	s.PushStatus(42, day, model.StatusConfirmed)
	s.Wait()

	row := sheet.rows["42:06.03.2024"]
	assert.Equal(t, LabelDepositReceived, row.Status)
	assert.Equal(t, "pay-1", row.PaymentRef)

	booked, err := s.BookedDates(context.Background())
	require.NoError(t, err)
	assert.True(t, booked.Has(day))
}

func TestSyncerFailuresAreSwallowed(t *testing.T) {
	sheet := &memSheet{fail: errors.New("quota exceeded")}
	s := NewSyncer(sheet, time.Second, quietLog())

	s.PushStatus(1, time.Now(), model.StatusCancelled)
	s.Wait()

	err := s.PushStatusNow(context.Background(), 1, time.Now(), model.StatusCancelled)
	assert.ErrorIs(t, err, model.ErrMirror)
	_, err = s.BookedDates(context.Background())
	assert.ErrorIs(t, err, model.ErrMirror)
}

func TestLabelFor(t *testing.T) {
	assert.Equal(t, LabelAwaitingDeposit, LabelFor(model.StatusTentative))
	assert.Equal(t, LabelPaidInFull, LabelFor(model.StatusFinalConfirmed))
	assert.Equal(t, LabelCompleted, LabelFor(model.StatusCompleted))
}

func TestSyncerWithNopSheet(t *testing.T) {
	s := NewSyncer(NopSheet{}, time.Second, quietLog())
	s.PushStatus(1, time.Now(), model.StatusConfirmed)
	s.Wait()

	require.NoError(t, s.PushStatusNow(context.Background(), 1, time.Now(), model.StatusConfirmed))
	booked, err := s.BookedDates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, booked)
}

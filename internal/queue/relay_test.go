package queue

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ texts []string }

func (r *recorder) Notify(_ context.Context, text string) { r.texts = append(r.texts, text) }

func TestOperatorRelay(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	rec := &recorder{}
	h := OperatorRelay(rec, logrus.NewEntry(log))

	require.NoError(t, h(context.Background(), Event{
		Type: EventRefundEligible, ReservationID: 7, DisplayName: "Bob", Username: "bob",
		SlotDate: "2024-03-06", PaymentID: "pay-b", Reason: "slot lost to concurrent booking",
	}))
	require.NoError(t, h(context.Background(), Event{Type: EventReservationCompleted, ReservationID: 7}))

	require.Len(t, rec.texts, 1)
	assert.Contains(t, rec.texts[0], "Refund needed for booking #7")
	assert.Contains(t, rec.texts[0], "Bob (@bob)")
	assert.Contains(t, rec.texts[0], "pay-b")
}

func TestOperatorTextForConfirmed(t *testing.T) {
	text := OperatorText(Event{Type: EventReservationConfirmed, ReservationID: 3, DisplayName: "Anna",
		SlotDate: "2024-03-06", Amount: "4000 RUB", PaymentID: "pay-a"})
	assert.Contains(t, text, "New booking #3")
	assert.Contains(t, text, "4000 RUB")
}

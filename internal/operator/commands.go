// Package operator implements the operator's text commands.  Every command
// returns the reply text; failures are reported in the reply, never as a
// Go error, so any chat or CLI front end can print the result as is.
package operator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/model"
)

// Booking is the part of the booking service the commands read and act on.
type Booking interface {
	ClientReservations(ctx context.Context, clientID int64) ([]model.Reservation, error)
	ReservationsOn(ctx context.Context, day time.Time) ([]model.Reservation, error)
	Upcoming(ctx context.Context, days int) ([]model.Reservation, error)
	Refund(ctx context.Context, paymentID string, amount *decimal.Decimal) (*model.Payment, error)
	Stats(ctx context.Context) (map[model.ReservationStatus]int, error)
	Today() time.Time
}

// Reminders runs the reminder sweep on demand.
type Reminders interface {
	Sweep(ctx context.Context, today time.Time) ([]model.Reservation, error)
}

// DefaultUpcomingDays is the window of /upcoming without an argument.
const DefaultUpcomingDays = 7

const helpText = `Operator commands:
/status client_id - latest booking of a client
/today - bookings for today
/upcoming [days] - confirmed bookings without a brief
/remind - send final payment reminders now
/refund payment_id [amount] - refund a payment
/stats - bookings per status
/help - this message`

// Commands dispatches operator commands.
type Commands struct {
	booking   Booking
	reminders Reminders
}

func New(booking Booking, reminders Reminders) *Commands {
	return &Commands{booking: booking, reminders: reminders}
}

// Execute runs one command line such as "/refund 2c1f 1500".
func (c *Commands) Execute(ctx context.Context, line string) string {
	args := strings.Fields(line)
	if len(args) == 0 {
		return helpText
	}
	name := strings.ToLower(strings.TrimPrefix(args[0], "/"))
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	args = args[1:]

	switch name {
	case "status", "project_status":
		return c.status(ctx, args)
	case "today":
		return c.today(ctx)
	case "upcoming":
		return c.upcoming(ctx, args)
	case "remind":
		return c.remind(ctx)
	case "refund":
		return c.refund(ctx, args)
	case "stats":
		return c.stats(ctx)
	case "help", "start", "admin":
		return helpText
	}
	return fmt.Sprintf("Unknown command /%s\n\n%s", name, helpText)
}

func (c *Commands) status(ctx context.Context, args []string) string {
	const usage = "Usage: /status client_id"
	if len(args) != 1 {
		return usage
	}
	clientID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || clientID <= 0 {
		return usage
	}
	list, err := c.booking.ClientReservations(ctx, clientID)
	if err != nil {
		return failure(err)
	}
	if len(list) == 0 {
		return fmt.Sprintf("Client %d: not found", clientID)
	}
	latest := list[0]
	for _, r := range list[1:] {
		if r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	return fmt.Sprintf("📊 Client %d\n\nBooking #%d\nDate: %s\nStatus: %s\nDeposit: %s\nFinal payment: %s\nBrief: %s",
		clientID, latest.ID, calendar.Label(latest.SlotDate), latest.Status,
		yesNo(latest.DepositPaid, "paid", "not paid"),
		yesNo(latest.FinalPaid, "paid", "not paid"),
		yesNo(latest.BriefCompleted, "filed", "not filed"))
}

func (c *Commands) today(ctx context.Context) string {
	today := c.booking.Today()
	list, err := c.booking.ReservationsOn(ctx, today)
	if err != nil {
		return failure(err)
	}
	if len(list) == 0 {
		return "No bookings for " + calendar.Label(today)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Bookings for %s:", calendar.Label(today))
	for _, r := range list {
		fmt.Fprintf(&b, "\n#%d %s (%d) %s", r.ID, r.DisplayName, r.ClientID, r.Status)
	}
	return b.String()
}

func (c *Commands) upcoming(ctx context.Context, args []string) string {
	const usage = "Usage: /upcoming [days]"
	days := DefaultUpcomingDays
	switch len(args) {
	case 0:
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return usage
		}
		days = n
	default:
		return usage
	}
	list, err := c.booking.Upcoming(ctx, days)
	if err != nil {
		return failure(err)
	}
	if len(list) == 0 {
		return fmt.Sprintf("No bookings without a brief in the next %d days", days)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Waiting for a brief (next %d days):", days)
	for _, r := range list {
		fmt.Fprintf(&b, "\n%s #%d %s (%d)", calendar.Label(r.SlotDate), r.ID, r.DisplayName, r.ClientID)
	}
	return b.String()
}

func (c *Commands) remind(ctx context.Context) string {
	sent, err := c.reminders.Sweep(ctx, c.booking.Today())
	if err != nil {
		return failure(err)
	}
	return fmt.Sprintf("✅ Reminders sent: %d", len(sent))
}

func (c *Commands) refund(ctx context.Context, args []string) string {
	const usage = "Usage: /refund payment_id [amount]"
	if len(args) < 1 || len(args) > 2 {
		return usage
	}
	var amount *decimal.Decimal
	if len(args) == 2 {
		d, err := decimal.NewFromString(args[1])
		if err != nil {
			return usage
		}
		amount = &d
	}
	p, err := c.booking.Refund(ctx, args[0], amount)
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Sprintf("Payment %s: not found", args[0])
	}
	if err != nil {
		return failure(err)
	}
	return fmt.Sprintf("✅ Refunded %s %s for payment %s", p.RefundedAmount.String(), p.Currency, p.ID)
}

func (c *Commands) stats(ctx context.Context) string {
	counts, err := c.booking.Stats(ctx)
	if err != nil {
		return failure(err)
	}
	if len(counts) == 0 {
		return "No bookings yet"
	}
	keys := make([]string, 0, len(counts))
	total := 0
	for st, n := range counts {
		keys = append(keys, string(st))
		total += n
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "Bookings: %d", total)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %d", k, counts[model.ReservationStatus(k)])
	}
	return b.String()
}

func failure(err error) string { return "❌ Error: " + err.Error() }

func yesNo(v bool, yes, no string) string {
	if v {
		return "✅ " + yes
	}
	return "❌ " + no
}

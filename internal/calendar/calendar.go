// Package calendar computes which workday slots can be booked.  Everything
// here is pure: the clock is always passed in and no state is kept between
// calls.
package calendar

import (
	"fmt"
	"iter"
	"time"
)

const (
	keyLayout   = "2006-01-02"
	monthLayout = "2006-01"
	labelLayout = "02.01.2006"
)

// DefaultHorizonMonths is the number of calendar months, counting the
// current one, that are open for booking.
const DefaultHorizonMonths = 6

// Calendar answers slot questions for a booking horizon evaluated in a
// given location.  The zero value uses the default horizon and UTC.
type Calendar struct {
	HorizonMonths int
	Location      *time.Location
}

// New returns a Calendar.  A non-positive horizon falls back to the default.
func New(horizonMonths int, loc *time.Location) Calendar {
	if horizonMonths <= 0 {
		horizonMonths = DefaultHorizonMonths
	}
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{HorizonMonths: horizonMonths, Location: loc}
}

// Day normalizes t to midnight UTC of its own calendar date.  Slot dates
// are civil dates; the UTC midnight form keeps them comparable.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the civil date of now in the calendar's location.
func (c Calendar) Today(now time.Time) time.Time {
	return Day(now.In(c.location()))
}

// IsWorkday reports whether the date falls on Monday, Wednesday or Friday.
func IsWorkday(d time.Time) bool {
	switch d.Weekday() {
	case time.Monday, time.Wednesday, time.Friday:
		return true
	}
	return false
}

// InHorizon reports whether the date's month lies inside the booking
// horizon that starts with the current month.
func (c Calendar) InHorizon(d, now time.Time) bool {
	diff := monthIndex(d) - monthIndex(c.Today(now))
	return diff >= 0 && diff < c.horizon()
}

// Permitted reports whether the date may be offered at all: a workday,
// not in the past and inside the horizon.
func (c Calendar) Permitted(d, now time.Time) bool {
	d = Day(d)
	return IsWorkday(d) && !d.Before(c.Today(now)) && c.InHorizon(d, now)
}

// Available reports whether the date is permitted and not held by anyone.
func (c Calendar) Available(d, now time.Time, held DateSet) bool {
	return c.Permitted(d, now) && !held.Has(d)
}

// MonthDates yields the permitted dates of the given month in ascending
// order.  Months outside the horizon yield nothing.  The sequence can be
// ranged over any number of times.
func (c Calendar) MonthDates(year int, month time.Month, now time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		if !c.InHorizon(first, now) {
			return
		}
		for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
			if c.Permitted(d, now) && !yield(d) {
				return
			}
		}
	}
}

// Months returns the first day of every month in the horizon.
func (c Calendar) Months(now time.Time) []time.Time {
	today := c.Today(now)
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, 0, c.horizon())
	for i := 0; i < c.horizon(); i++ {
		out = append(out, first.AddDate(0, i, 0))
	}
	return out
}

// Dates yields every permitted date of the horizon.
func (c Calendar) Dates(now time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for _, m := range c.Months(now) {
			for d := range c.MonthDates(m.Year(), m.Month(), now) {
				if !yield(d) {
					return
				}
			}
		}
	}
}

func (c Calendar) horizon() int {
	if c.HorizonMonths <= 0 {
		return DefaultHorizonMonths
	}
	return c.HorizonMonths
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func monthIndex(t time.Time) int { return t.Year()*12 + int(t.Month()) - 1 }

// Key formats a date as YYYY-MM-DD.
func Key(d time.Time) string { return d.Format(keyLayout) }

// Label formats a date the way the mirror sheet shows it, DD.MM.YYYY.
func Label(d time.Time) string { return d.Format(labelLayout) }

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(keyLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseLabel parses a DD.MM.YYYY mirror label.
func ParseLabel(s string) (time.Time, error) {
	d, err := time.Parse(labelLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date label %q", s)
	}
	return d, nil
}

// ParseMonth parses a YYYY-MM month into its first day.
func ParseMonth(s string) (time.Time, error) {
	m, err := time.Parse(monthLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	return m, nil
}

// DateSet is a set of civil dates.
type DateSet map[string]struct{}

// NewDateSet builds a set from the given dates.
func NewDateSet(dates ...time.Time) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		s.Add(d)
	}
	return s
}

func (s DateSet) Add(d time.Time) { s[Key(d)] = struct{}{} }

func (s DateSet) Has(d time.Time) bool {
	_, ok := s[Key(d)]
	return ok
}

// Union adds every date of o to s.
func (s DateSet) Union(o DateSet) {
	for k := range o {
		s[k] = struct{}{}
	}
}

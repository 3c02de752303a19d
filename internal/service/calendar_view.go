package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/model"
)

// MonthView is one month of the booking horizon.
type MonthView struct {
	Month     string `json:"month"` // YYYY-MM
	Available int    `json:"available"`
}

// DayView is one permitted date of a month.
type DayView struct {
	Date   string `json:"date"`
	Label  string `json:"label"`
	Booked bool   `json:"booked"`
}

// CalendarMonths lists the horizon's months with their count of free dates.
func (s *BookingService) CalendarMonths(ctx context.Context) ([]MonthView, error) {
	now := s.now()
	months := s.cal.Months(now)
	if len(months) == 0 {
		return nil, nil
	}
	last := months[len(months)-1].AddDate(0, 1, -1)
	held, err := s.heldSet(ctx, s.cal.Today(now), last)
	if err != nil {
		return nil, err
	}
	out := make([]MonthView, 0, len(months))
	for _, m := range months {
		free := 0
		for d := range s.cal.MonthDates(m.Year(), m.Month(), now) {
			if !held.Has(d) {
				free++
			}
		}
		out = append(out, MonthView{Month: m.Format("2006-01"), Available: free})
	}
	return out, nil
}

// CalendarMonth lists the permitted dates of a month with booked markers.
// Months outside the horizon are a validation error.
func (s *BookingService) CalendarMonth(ctx context.Context, month time.Time) ([]DayView, error) {
	now := s.now()
	if !s.cal.InHorizon(month, now) {
		return nil, fmt.Errorf("%w: %s is outside the booking horizon", model.ErrValidation, month.Format("2006-01"))
	}
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	held, err := s.heldSet(ctx, first, first.AddDate(0, 1, -1))
	if err != nil {
		return nil, err
	}
	out := []DayView{}
	for d := range s.cal.MonthDates(month.Year(), month.Month(), now) {
		out = append(out, DayView{Date: calendar.Key(d), Label: calendar.Label(d), Booked: held.Has(d)})
	}
	return out, nil
}

// heldSet merges ledger-held dates with the mirror's booked hint.  Mirror
// failures only cost the hint.
func (s *BookingService) heldSet(ctx context.Context, from, to time.Time) (calendar.DateSet, error) {
	dates, err := s.reservations.HeldDates(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("held dates: %w", err)
	}
	held := calendar.NewDateSet(dates...)
	hint, err := s.mirror.BookedDates(ctx)
	if err != nil {
		s.log.WithError(err).Warn("mirror booked dates unavailable")
		return held, nil
	}
	held.Union(hint)
	return held, nil
}

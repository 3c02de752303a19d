package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/model"
)

// Sweeper runs the daily reminder sweep.
type Sweeper interface {
	Sweep(ctx context.Context, today time.Time) ([]model.Reservation, error)
}

// ReminderWorker wakes up every tick and runs the sweep once per calendar
// day, at or after the configured time of day.
type ReminderWorker struct {
	sweeper   Sweeper
	watermark Watermark
	tick      time.Duration
	hour      int
	minute    int
	loc       *time.Location
	now       func() time.Time
	log       *logrus.Entry
}

// ReminderSchedule is when and how often the worker checks.
type ReminderSchedule struct {
	Hour     int
	Minute   int
	Tick     time.Duration
	Location *time.Location
}

func NewReminderWorker(sweeper Sweeper, watermark Watermark, sched ReminderSchedule, log *logrus.Entry) *ReminderWorker {
	if sched.Tick <= 0 {
		sched.Tick = time.Minute
	}
	if sched.Location == nil {
		sched.Location = time.UTC
	}
	return &ReminderWorker{
		sweeper:   sweeper,
		watermark: watermark,
		tick:      sched.Tick,
		hour:      sched.Hour,
		minute:    sched.Minute,
		loc:       sched.Location,
		now:       time.Now,
		log:       log,
	}
}

// Start blocks until ctx is cancelled.
func (w *ReminderWorker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	w.log.WithField("at", time.Date(0, 1, 1, w.hour, w.minute, 0, 0, w.loc).Format("15:04 MST")).Info("reminder worker started")
	w.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("reminder worker stopped")
			return nil
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs the sweep if it is due and has not run today.  It reports
// whether the sweep ran.  A sweep that fails before sending anything
// releases the day's claim.
func (w *ReminderWorker) Tick(ctx context.Context) bool {
	now := w.now().In(w.loc)
	if now.Hour() < w.hour || (now.Hour() == w.hour && now.Minute() < w.minute) {
		return false
	}
	today := calendar.Day(now)
	claimed, err := w.watermark.Claim(ctx, today)
	if err != nil {
		w.log.WithError(err).Error("reminder watermark unavailable")
		return false
	}
	if !claimed {
		return false
	}
	sent, err := w.sweeper.Sweep(ctx, today)
	if err != nil {
		// Nothing was sent; give the day back so the next tick retries.
		log := w.log.WithError(err).WithField("day", calendar.Key(today))
		if rerr := w.watermark.Release(ctx, today); rerr != nil {
			log.WithField("release_error", rerr.Error()).Error("reminder sweep failed, run /remind manually")
			return false
		}
		log.Warn("reminder sweep failed, retrying on next tick")
		return false
	}
	w.log.WithFields(logrus.Fields{"day": calendar.Key(today), "reminded": len(sent)}).Info("reminders sent")
	return true
}

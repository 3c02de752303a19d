package config

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BookingConfig carries the business parameters of the booking engine.
type BookingConfig struct {
	DepositAmount  decimal.Decimal
	FinalAmount    decimal.Decimal
	Currency       string
	HorizonMonths  int
	Location       *time.Location
	BriefFormURL   string
	ReminderHour   int
	ReminderMinute int
	ReminderTick   time.Duration
	MirrorTimeout  time.Duration
	DeliveryTTL    time.Duration
}

func LoadBookingConfig() BookingConfig {
	tz := envStr("TIMEZONE", "Europe/Moscow")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		logrus.Fatalf("invalid TIMEZONE %q: %v", tz, err)
	}
	cfg := BookingConfig{
		DepositAmount:  envDecimal("DEPOSIT_AMOUNT", decimal.NewFromInt(4000)),
		FinalAmount:    envDecimal("FINAL_AMOUNT", decimal.NewFromInt(11000)),
		Currency:       envStr("CURRENCY", "RUB"),
		HorizonMonths:  envInt("BOOKING_HORIZON_MONTHS", 6),
		Location:       loc,
		BriefFormURL:   envStr("BRIEF_FORM_URL", ""),
		ReminderHour:   envInt("REMINDER_HOUR", 10),
		ReminderMinute: envInt("REMINDER_MINUTE", 20),
		ReminderTick:   envDur("REMINDER_TICK", time.Minute),
		MirrorTimeout:  envDur("MIRROR_TIMEOUT", 5*time.Second),
		DeliveryTTL:    envDur("DELIVERY_JOB_TTL", 24*time.Hour),
	}
	if cfg.ReminderHour < 0 || cfg.ReminderHour > 23 || cfg.ReminderMinute < 0 || cfg.ReminderMinute > 59 {
		logrus.Fatalf("invalid reminder time %02d:%02d", cfg.ReminderHour, cfg.ReminderMinute)
	}
	if cfg.ReminderTick <= 0 {
		cfg.ReminderTick = time.Minute
	}
	return cfg
}

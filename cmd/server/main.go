package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"                              // .env loader
	"github.com/labstack/echo/v4"                           // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"         // recover and request logging
	"github.com/redis/go-redis/v9"                          // optional shared state
	"github.com/sirupsen/logrus"                            // structured logging
	"golang.org/x/sync/errgroup"                            // server and workers share one lifecycle

	"github.com/iliyamo/workday-booking/internal/calendar"
	"github.com/iliyamo/workday-booking/internal/config"
	"github.com/iliyamo/workday-booking/internal/database"
	"github.com/iliyamo/workday-booking/internal/handler"
	"github.com/iliyamo/workday-booking/internal/middleware"
	"github.com/iliyamo/workday-booking/internal/mirror"
	"github.com/iliyamo/workday-booking/internal/notify"
	"github.com/iliyamo/workday-booking/internal/operator"
	"github.com/iliyamo/workday-booking/internal/payment"
	"github.com/iliyamo/workday-booking/internal/queue"
	"github.com/iliyamo/workday-booking/internal/repository"
	"github.com/iliyamo/workday-booking/internal/router"
	"github.com/iliyamo/workday-booking/internal/service"
	"github.com/iliyamo/workday-booking/internal/worker"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine; the environment wins

	logrus.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(lvl)
	}
	log := logrus.WithField("service", "workday-booking")

	cfg := config.Load() // Load environment config
	bcfg := config.LoadBookingConfig()
	tcfg := config.LoadTelegramConfig()
	ycfg := config.LoadYooKassaConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable: in-process job store and watermark, no mirror, no rate limit or cache")
	} else {
		defer rdb.Close()
	}

	// chat transport
	var notifier notify.Notifier = notify.LogNotifier{Log: log.WithField("component", "notify")}
	if tcfg.BotToken != "" {
		notifier = notify.NewTelegram(tcfg)
	}
	op := notify.Operator{N: notifier, ChatID: tcfg.AdminChatID, Log: log.WithField("component", "operator")}

	gateway := payment.NewGateway(payment.NewYooKassa(ycfg), log.WithField("component", "payment"),
		payment.WithMaxAttempts(ycfg.MaxAttempts))

	var sheet mirror.Sheet = mirror.NopSheet{}
	if rdb != nil {
		sheet = mirror.NewRedisSheet(rdb, "mirror")
	}
	syncer := mirror.NewSyncer(sheet, bcfg.MirrorTimeout, log.WithField("component", "mirror"))

	publisher := queue.NewPublisher(cfg.RabbitURL, log.WithField("component", "events"))
	defer publisher.Close()

	pricing := service.Pricing{Deposit: bcfg.DepositAmount, Final: bcfg.FinalAmount, Currency: bcfg.Currency}
	reservations := repository.NewReservationRepo(db)
	booking := service.NewBookingService(service.BookingDeps{
		Reservations: reservations,
		Payments:     repository.NewPaymentRepo(db),
		Gateway:      gateway,
		Mirror:       syncer,
		Events:       publisher,
		Notifier:     notifier,
		Calendar:     calendar.New(bcfg.HorizonMonths, bcfg.Location),
		Pricing:      pricing,
		BriefFormURL: bcfg.BriefFormURL,
		Log:          log.WithField("component", "booking"),
	})

	var jobs service.JobStore = service.NewMemoryJobStore(bcfg.DeliveryTTL)
	var watermark worker.Watermark = &worker.MemoryWatermark{}
	if rdb != nil {
		jobs = service.NewRedisJobStore(rdb, "booking", bcfg.DeliveryTTL)
		watermark = worker.NewRedisWatermark(rdb, "")
	}
	delivery := service.NewDeliveryService(reservations, jobs, syncer, publisher, notifier, op,
		log.WithField("component", "delivery"))
	support := service.NewSupportService(notifier, op)
	reminders := service.NewReminderService(reservations, notifier, pricing, log.WithField("component", "reminder"))

	e := newServer(cfg, rdb, db, booking, delivery, support, operator.New(booking, reminders), log)

	reminderWorker := worker.NewReminderWorker(reminders, watermark, worker.ReminderSchedule{
		Hour:     bcfg.ReminderHour,
		Minute:   bcfg.ReminderMinute,
		Tick:     bcfg.ReminderTick,
		Location: bcfg.Location,
	}, log.WithField("component", "reminder-worker"))
	consumer := queue.NewConsumer(cfg.RabbitURL, queue.OperatorRelay(op, log.WithField("component", "relay")),
		log.WithField("component", "events"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port // Address string with port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return reminderWorker.Start(gctx) })
	g.Go(func() error {
		if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("stopped with error")
	}
	syncer.Wait()
	log.Info("shutdown complete")
}

func newServer(cfg config.Config, rdb *redis.Client, db handler.Pinger, booking *service.BookingService,
	delivery *service.DeliveryService, support *service.SupportService, cmds *operator.Commands,
	log *logrus.Entry) *echo.Echo {
	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.WithField("component", "ratelimit"))
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log.WithField("component", "cache"))

	router.RegisterRoutes(e, db) // Register application routes
	router.RegisterAuth(e, handler.NewAuthHandler(cfg), cfg.FrontendKey)
	router.RegisterPublic(e, handler.NewCalendarHandler(booking),
		handler.NewPaymentHandler(booking, log.WithField("component", "webhook")), cache)
	router.RegisterClient(e, handler.NewClientHandler(booking, support), cfg.JWTSecret, limiter)
	router.RegisterAdmin(e, handler.NewAdminHandler(cmds, booking, delivery, support), cfg.JWTSecret)
	return e
}

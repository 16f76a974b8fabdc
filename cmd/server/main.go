package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/gym-class-booking/internal/config"
	"github.com/iliyamo/gym-class-booking/internal/database"
	"github.com/iliyamo/gym-class-booking/internal/handler"
	"github.com/iliyamo/gym-class-booking/internal/identity"
	"github.com/iliyamo/gym-class-booking/internal/logger"
	"github.com/iliyamo/gym-class-booking/internal/metrics"
	"github.com/iliyamo/gym-class-booking/internal/middleware"
	"github.com/iliyamo/gym-class-booking/internal/queue"
	"github.com/iliyamo/gym-class-booking/internal/repository"
	"github.com/iliyamo/gym-class-booking/internal/router"
	"github.com/iliyamo/gym-class-booking/internal/service"
	"github.com/iliyamo/gym-class-booking/internal/tracing"
)

const serviceName = "gym-class-booking"

func main() {
	cfg := config.Load() // Load environment config
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if shutdown := tracing.Init(serviceName); shutdown != nil {
		defer shutdown()
		log.Info("tracing enabled")
	}

	db, err := database.Open(ctx, database.Options{
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	})
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	// Events are optional; a nil publisher disables them.
	var events service.EventPublisher
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.AMQPURL, log)
		defer func() { _ = pub.Close() }()
		events = pub
	}
	if cfg.EventsConsumerEnabled {
		consumer := queue.NewActivityConsumer(cfg.AMQPURL, cfg.ActivityLogPath, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("activity consumer stopped", zap.Error(err))
			}
		}()
	}

	// Redis backs the rate limiter only; without it booking is unthrottled.
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil && cfg.RateLimit.Enabled {
		log.Warn("redis unavailable, rate limiting disabled", zap.String("addr", cfg.Redis.Addr))
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	store := repository.NewStore(db)
	manager := service.NewReservationManager(store, events, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(metrics.Middleware)
	e.Use(tracing.Middleware())

	router.RegisterRoutes(e, router.Deps{
		Classes:      handler.NewClassHandler(manager, log, cfg.StoreTimeout),
		Reservations: handler.NewReservationHandler(manager, log, cfg.StoreTimeout),
		Verifier:     identity.NewJWTVerifier(cfg.JWTSecret),
		RateLimit:    middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
		DB:           db,
		Logger:       log,
	})

	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr()), zap.String("env", cfg.Env))
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

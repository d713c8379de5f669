package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/event-ticketing/internal/clock"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/router"
	"github.com/iliyamo/event-ticketing/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.Env)
	slog.SetDefault(logger)

	var (
		events  service.EventStore
		tickets service.TicketStore
		ready   echo.HandlerFunc
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		events, tickets = mem, mem
		ready = handler.Ready(nil)
	default:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			logger.Error("connect to db", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = database.Migrate(migrateCtx, db)
		cancel()
		if err != nil {
			logger.Error("apply migrations", "err", err)
			os.Exit(1)
		}
		events, tickets = repository.NewEventRepo(db), repository.NewTicketRepo(db)
		ready = handler.Ready(db)
	}

	clk := clock.NewSystem()
	ledgerOpts := []service.LedgerOption{
		service.WithInitialStatus(model.TicketStatus(cfg.InitialStatus)),
		service.WithMaxPerBooking(cfg.MaxTicketsPerBooking),
		service.WithScanBaseURL(cfg.ScanBaseURL),
		service.WithLogger(logger),
	}

	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var publisher *queue.Publisher
	consumerDone := make(chan struct{})
	if cfg.RabbitURL != "" {
		publisher = queue.NewPublisher(cfg.RabbitURL, logger)
		ledgerOpts = append(ledgerOpts, service.WithNotifier(publisher))
		consumer := queue.NewAuditConsumer(cfg.RabbitURL, cfg.AuditLogDir, logger)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(appCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit consumer stopped", "err", err)
			}
		}()
	} else {
		logger.Warn("RABBITMQ_URL not set; ticket events are not published")
		close(consumerDone)
	}

	catalog := service.NewCatalog(events, clk)
	ledger := service.NewLedger(tickets, catalog, clk, ledgerOpts...)
	validator := service.NewValidator(ledger, catalog, service.WithBulkLimit(cfg.BulkValidateLimit))
	stats := service.NewStats(events, tickets, catalog)

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.ContextTimeout(cfg.RequestTimeout))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			)
			return nil
		},
	}))

	router.RegisterRoutes(e, router.Deps{
		JWTSecret:  cfg.JWTSecret,
		Event:      handler.NewEventHandler(catalog, ledger),
		Ticket:     handler.NewTicketHandler(ledger),
		Validation: handler.NewValidationHandler(validator),
		Stats:      handler.NewStatsHandler(stats),
		Ready:      ready,
		RateLimit:  middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:      middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	})

	addr := ":" + cfg.Port
	logger.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreBackend)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- e.Start(addr)
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
		}
	case <-appCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", "err", err)
	}
	if publisher != nil {
		publisher.Close()
	}
	<-consumerDone
	logger.Info("server stopped")
}

func newLogger(env string) *slog.Logger {
	if env == "prod" || env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

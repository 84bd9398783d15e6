package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/cropcare/reminder-api/internal/config"
	"github.com/cropcare/reminder-api/internal/email"
	healthHandler "github.com/cropcare/reminder-api/internal/handler/health"
	reminderHandler "github.com/cropcare/reminder-api/internal/handler/reminder"
	"github.com/cropcare/reminder-api/internal/middleware"
	"github.com/cropcare/reminder-api/internal/notifier"
	"github.com/cropcare/reminder-api/internal/repository"
	"github.com/cropcare/reminder-api/internal/repository/memstore"
	"github.com/cropcare/reminder-api/internal/repository/redisstore"
	"github.com/cropcare/reminder-api/internal/router"
	reminderService "github.com/cropcare/reminder-api/internal/service/reminder"
	"github.com/cropcare/reminder-api/pkg/logger"
	"github.com/cropcare/reminder-api/pkg/messaging"
	"github.com/cropcare/reminder-api/pkg/messaging/memory"
	redisBroker "github.com/cropcare/reminder-api/pkg/messaging/redis"
	"github.com/cropcare/reminder-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(nil)
	m := metrics.New("cropcare")

	// Storage and broker share the Redis deployment; the memory backend
	// keeps everything in-process for single-node and development runs.
	var (
		store   repository.ReminderStore
		broker  messaging.Broker
		pingers = map[string]healthHandler.Pinger{}
	)
	switch cfg.Storage.Backend {
	case "memory":
		store = memstore.NewStore(cfg.Storage.Key)
		broker = memory.NewBroker()
	default:
		client, err := redisstore.NewClient(redisstore.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		rs := redisstore.NewStore(client, cfg.Storage.Key, appLogger, m)
		store = rs
		pingers["redis"] = rs

		b, err := redisBroker.NewBroker(redisBroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &appLogger.ZL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect Redis broker")
		}
		broker = b
		pingers["broker"] = b
	}
	defer broker.Close()

	// Notification channel is best-effort: without a configured recipient
	// the dispatcher runs with notifications silently disabled.
	var notif notifier.Notifier = notifier.NoopNotifier{}
	if cfg.Alerting.Enabled && cfg.Alerting.Recipient != "" {
		emailCfg, err := email.LoadConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load SMTP configuration")
		}
		notif = notifier.NewEmailNotifier(email.NewService(emailCfg), cfg.Alerting.Recipient)
	}

	svc, err := reminderService.NewService(
		context.Background(),
		store,
		broker,
		notif,
		notifier.NoopChime{},
		clock.New(),
		appLogger,
		m,
		reminderService.Config{
			DefaultSnoozeMinutes: cfg.Reminder.DefaultSnoozeMinutes,
			FallbackInterval:     cfg.Reminder.FallbackInterval,
			FiredChannel:         cfg.Alerting.Channel,
		},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start reminder service")
	}
	defer svc.Close()

	r := router.New(router.Config{
		RateLimit:  rate.Limit(cfg.Server.RateLimit),
		RateBurst:  cfg.Server.RateBurst,
		CORSConfig: middleware.DefaultCORSConfig(),
	})
	reminderHandler.NewHandler(svc).RegisterRoutes(r.API())
	healthHandler.NewHandler(pingers).RegisterRoutes(r.Root())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		appLogger.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("server exited properly")
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/cropcare/reminder-api/internal/config"
	"github.com/cropcare/reminder-api/internal/email"
	"github.com/cropcare/reminder-api/internal/model"
	"github.com/cropcare/reminder-api/internal/notifier"
	"github.com/cropcare/reminder-api/pkg/logger"
	redisBroker "github.com/cropcare/reminder-api/pkg/messaging/redis"
)

var (
	alertsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerter_alerts_delivered_total",
		Help: "The total number of reminder alerts delivered",
	})
	alertsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerter_alerts_failed_total",
		Help: "The total number of reminder alerts that failed delivery",
	})
	deliveryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alerter_delivery_latency_seconds",
		Help:    "Time between a reminder firing and its alert delivery",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	})
)

const (
	maxRetries = 3
	retryDelay = 5 * time.Second
)

// Alerter consumes fired-reminder events off the broker and relays them to
// the configured notification channel. It stands apart from the API process
// so alert delivery keeps working across API restarts.
type Alerter struct {
	notif  notifier.Notifier
	chime  notifier.Chime
	logger *logger.Logger
}

func (a *Alerter) handle(ctx context.Context, payload []byte) {
	var event model.ReminderFiredEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		a.logger.Warn(err, "dropping malformed reminder event")
		return
	}
	if event.Reminder == nil {
		a.logger.Warn(nil, "dropping reminder event without record")
		return
	}

	if err := a.chime.Play(ctx); err != nil {
		a.logger.Debug("audio cue skipped", "reason", err.Error())
	}

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * retryDelay)
		}
		if err = a.notif.Notify(ctx, event.Reminder); err == nil {
			break
		}
		a.logger.Warn(err, "retrying alert delivery",
			"reminder_id", event.Reminder.ID.String(),
			"attempt", attempt+1,
		)
	}
	if err != nil {
		alertsFailed.Inc()
		a.logger.Error(err, "alert delivery failed",
			"reminder_id", event.Reminder.ID.String(),
			"treatment", event.Reminder.TreatmentName,
		)
		return
	}

	alertsDelivered.Inc()
	if !event.FiredAt.IsZero() {
		deliveryLatency.Observe(time.Since(event.FiredAt).Seconds())
	}
	a.logger.Info("alert delivered",
		"reminder_id", event.Reminder.ID.String(),
		"treatment", event.Reminder.TreatmentName,
		"disease", event.Reminder.DiseaseName,
	)
}

func setupHealthCheck(port int, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			appLogger.Fatal(err, "health check server failed")
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(nil)

	emailCfg, err := email.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load SMTP configuration")
	}
	if cfg.Alerting.Recipient == "" {
		log.Fatal().Msg("alerting recipient is required")
	}

	broker, err := redisBroker.NewBroker(redisBroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &appLogger.ZL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect Redis broker")
	}
	defer broker.Close()

	alerter := &Alerter{
		notif:  notifier.NewEmailNotifier(email.NewService(emailCfg), cfg.Alerting.Recipient),
		chime:  notifier.TerminalChime{},
		logger: appLogger,
	}

	setupHealthCheck(cfg.Alerting.HealthPort, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("shutting down alerter...")
		cancel()
	}()

	events, err := broker.Subscribe(ctx, cfg.Alerting.Channel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to reminder events")
	}

	appLogger.Info("alerter started", "channel", cfg.Alerting.Channel)
	for payload := range events {
		alerter.handle(ctx, payload)
	}
	appLogger.Info("alerter stopped")
}

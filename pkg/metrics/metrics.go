package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Reminder lifecycle metrics
	RemindersCreated prometheus.Counter
	RemindersFired   prometheus.Counter
	RemindersSnoozed prometheus.Counter
	RemindersDeleted prometheus.Counter
	ActiveReminders  prometheus.Gauge

	// Dispatch metrics
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	EventsPublished     prometheus.Counter
	EventsFailed        prometheus.Counter

	// Store metrics
	StoreOperations *prometheus.CounterVec
	StoreLatency    *prometheus.HistogramVec
}

// New creates and registers all application metrics
func New(namespace string) *Metrics {
	return &Metrics{
		RemindersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_created_total",
			Help:      "Total number of reminders created",
		}),
		RemindersFired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_fired_total",
			Help:      "Total number of reminder firings",
		}),
		RemindersSnoozed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_snoozed_total",
			Help:      "Total number of snooze requests",
		}),
		RemindersDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_deleted_total",
			Help:      "Total number of reminders deleted",
		}),
		ActiveReminders: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reminders_active",
			Help:      "Current number of active reminders",
		}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of notifications delivered",
		}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Total number of notification delivery failures",
		}),
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of reminder events published to the broker",
		}),
		EventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of failed event publishes",
		}),
		StoreOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of reminder store operations",
		}, []string{"operation", "status"}),
		StoreLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Time spent on reminder store operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}
}

// Package metrics exposes Prometheus instrumentation for the reminder
// pipeline. Registration happens at init via promauto; serving is the
// app's decision (see internal/app).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsSent counts notifications accepted by at least one channel.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindd_notifications_sent_total",
			Help: "Total number of notifications sent",
		},
		[]string{"type", "channel"},
	)

	// NotificationsFailed counts notifications no channel could deliver.
	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindd_notifications_failed_total",
			Help: "Total number of notifications that failed all channels",
		},
		[]string{"type", "reason"},
	)

	// NotificationsSuppressed counts deliberate prioritizer suppressions,
	// kept separate from failures.
	NotificationsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindd_notifications_suppressed_total",
			Help: "Total number of notifications suppressed by learned patterns",
		},
		[]string{"type", "reason"},
	)

	// RemindersFired counts reminder notifications produced by the loop.
	RemindersFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remindd_reminders_fired_total",
			Help: "Total number of deadline reminders fired",
		},
	)

	// OverdueDetected counts transitions into the overdue state.
	OverdueDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remindd_overdue_detected_total",
			Help: "Total number of items that became overdue",
		},
	)

	// MonitoredItems tracks the current tracker size.
	MonitoredItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "remindd_monitored_items",
			Help: "Current number of monitored deadline items",
		},
	)

	// DeliveryDuration tracks per-channel delivery latency.
	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remindd_delivery_duration_seconds",
			Help:    "Channel delivery duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// TickErrors counts scheduler iterations that logged an error.
	TickErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remindd_tick_errors_total",
			Help: "Total number of scheduler tick errors",
		},
	)

	// SnapshotErrors counts failed state persistence attempts.
	SnapshotErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remindd_snapshot_errors_total",
			Help: "Total number of failed state snapshot writes",
		},
	)
)

// Package metrics holds the Prometheus collectors exported on /metrics
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pds"

var (
	CredentialFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credential_failures_total",
		Help:      "Device credential checks that did not yield a device, by reason.",
	}, []string{"reason"})

	DoseEventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dose_events_recorded_total",
		Help:      "Dose events persisted, by status.",
	}, []string{"status"})

	WeightReadingsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "weight_readings_inserted_total",
		Help:      "Weight readings persisted.",
	})

	WeightBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "weight_batches_total",
		Help:      "Weight batches received, by outcome.",
	}, []string{"outcome"})

	AlarmDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alarm_dispatches_total",
		Help:      "Alarm dispatch attempts, by outcome.",
	}, []string{"outcome"})

	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_sent_total",
		Help:      "Notifications the push collaborator reported as sent.",
	})

	PushLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "push_dispatch_seconds",
		Help:      "Latency of push collaborator calls.",
		Buckets:   prometheus.DefBuckets,
	})

	CommandsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_enqueued_total",
		Help:      "Commands written to the queue, by type.",
	}, []string{"type"})

	CommandsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_consumed_total",
		Help:      "Commands acknowledged by devices.",
	})

	MQTTMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mqtt_messages_total",
		Help:      "MQTT telemetry messages handled, by kind and outcome.",
	}, []string{"kind", "outcome"})

	ArchiveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_failures_total",
		Help:      "Telemetry archive writes that failed.",
	})
)

// Package metrics exposes Prometheus instrumentation for the signal pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "signalbot"

var (
	// TicksTotal counts orchestrator passes.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Total number of scan ticks run",
	})

	// TickDuration measures one full pass over all symbols.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Duration of a scan tick",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	// SymbolOutcomes counts per-symbol tick results.
	SymbolOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "symbol_outcomes_total",
		Help:      "Per-symbol tick outcomes",
	}, []string{"symbol", "status"})

	// StageFailures counts failures by pipeline stage.
	StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_failures_total",
		Help:      "Failures by pipeline stage",
	}, []string{"stage"})

	// SnapshotsRecorded counts persisted feature snapshots.
	SnapshotsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshots_recorded_total",
		Help:      "Feature snapshots written to the store",
	}, []string{"symbol"})

	// SignalsGenerated counts persisted signals.
	SignalsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signals_generated_total",
		Help:      "Signals fired and persisted",
	}, []string{"symbol", "direction"})

	// NotificationsSent counts outbound notification attempts.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Outbound signal notifications by result",
	}, []string{"status"})

	// FetchLatency measures bar fetch time by provider.
	FetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_latency_seconds",
		Help:      "Market data fetch latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})

	// IndicatorLatency measures indicator computation time by backend.
	IndicatorLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "indicator_latency_seconds",
		Help:      "Indicator computation latency",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{"backend"})

	// PersistLatency measures store writes.
	PersistLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "persist_latency_seconds",
		Help:      "Feature store write latency",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	// LastTickTimestamp is the unix time of the last completed tick.
	LastTickTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_tick_timestamp_seconds",
		Help:      "Unix timestamp of the last completed tick",
	})

	// HeartbeatTimestamp is the unix time of the last heartbeat.
	HeartbeatTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "heartbeat_timestamp_seconds",
		Help:      "Unix timestamp of the last heartbeat",
	})

	// RecipientsRegistered tracks the notification registry size.
	RecipientsRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "recipients_registered",
		Help:      "Number of chats subscribed to signals",
	})

	// CommandsTotal counts chat commands handled.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Chat commands handled",
	}, []string{"command"})

	// UptimeSeconds reports process uptime.
	UptimeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Process uptime in seconds",
	})

	// ErrorsTotal counts errors by type.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Errors by type",
	}, []string{"type"})

	// BuildInfo carries version labels with a constant value of 1.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information",
	}, []string{"version", "commit", "date"})
)

// SetBuildInfo publishes the build labels.
func SetBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
}

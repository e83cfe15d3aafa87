package metrics

import (
	"time"
)

// Recorder provides methods for recording pipeline metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordTick records a completed tick.
func (r *Recorder) RecordTick(duration time.Duration) {
	TicksTotal.Inc()
	TickDuration.Observe(duration.Seconds())
	LastTickTimestamp.Set(float64(time.Now().Unix()))
}

// RecordSymbolOutcome records how one symbol's tick ended.
// Failed outcomes are also counted against their stage.
func (r *Recorder) RecordSymbolOutcome(symbol, status, stage string) {
	SymbolOutcomes.WithLabelValues(symbol, status).Inc()
	if stage != "" {
		StageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordSnapshot records a persisted feature snapshot.
func (r *Recorder) RecordSnapshot(symbol string) {
	SnapshotsRecorded.WithLabelValues(symbol).Inc()
}

// RecordSignal records a persisted signal.
func (r *Recorder) RecordSignal(symbol, direction string) {
	SignalsGenerated.WithLabelValues(symbol, direction).Inc()
}

// RecordNotification records a notification attempt.
func (r *Recorder) RecordNotification(delivered bool) {
	status := "failed"
	if delivered {
		status = "delivered"
	}
	NotificationsSent.WithLabelValues(status).Inc()
}

// RecordFetchLatency records market data fetch latency.
func (r *Recorder) RecordFetchLatency(provider string, duration time.Duration) {
	FetchLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordIndicatorLatency records indicator computation latency.
func (r *Recorder) RecordIndicatorLatency(backend string, duration time.Duration) {
	IndicatorLatency.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordPersistLatency records a store write.
func (r *Recorder) RecordPersistLatency(duration time.Duration) {
	PersistLatency.Observe(duration.Seconds())
}

// RecordRecipients records the registry size.
func (r *Recorder) RecordRecipients(n int) {
	RecipientsRegistered.Set(float64(n))
}

// RecordCommand records a handled chat command.
func (r *Recorder) RecordCommand(command string) {
	CommandsTotal.WithLabelValues(command).Inc()
}

// RecordHeartbeat records a heartbeat.
func (r *Recorder) RecordHeartbeat() {
	HeartbeatTimestamp.Set(float64(time.Now().Unix()))
}

// RecordError records an error.
func (r *Recorder) RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

// Timer is a helper for measuring latency.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed duration.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ObserveFetch observes the elapsed time as fetch latency.
func (t *Timer) ObserveFetch(provider string) {
	FetchLatency.WithLabelValues(provider).Observe(t.Elapsed().Seconds())
}

// ObserveIndicator observes the elapsed time as indicator latency.
func (t *Timer) ObserveIndicator(backend string) {
	IndicatorLatency.WithLabelValues(backend).Observe(t.Elapsed().Seconds())
}

// Package alerting delivers signal notifications and operational alerts.
package alerting

import (
	"context"
	"fmt"
	"strings"
)

// Severity represents the alert severity level.
type Severity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is for warning messages.
	SeverityWarning
	// SeverityHigh is for high priority alerts.
	SeverityHigh
	// SeverityCritical is for critical alerts requiring immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Emoji returns an emoji for the severity level.
func (s Severity) Emoji() string {
	switch s {
	case SeverityInfo:
		return "ℹ️"
	case SeverityWarning:
		return "⚠️"
	case SeverityHigh:
		return "🔴"
	case SeverityCritical:
		return "🚨"
	default:
		return "❓"
	}
}

// Alerter defines the interface for sending alerts.
type Alerter interface {
	// Alert sends an alert with the given severity and message.
	Alert(ctx context.Context, severity Severity, message string, fields ...any) error
	// Name returns the name of the alerter.
	Name() string
}

// FormatFields renders key/value pairs as bullet lines.
// A trailing key without a value is dropped.
func FormatFields(fields ...any) string {
	var b strings.Builder
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "• %s: %v", key, fields[i+1])
	}
	return b.String()
}

// AlertEvent represents a pre-defined alert event type.
type AlertEvent string

const (
	// EventSignalFired is sent for every persisted CALL or PUT signal.
	EventSignalFired AlertEvent = "signal_fired"
	// EventSymbolFailed is sent when a symbol's tick ends in an error.
	EventSymbolFailed AlertEvent = "symbol_failed"
	// EventPersistenceFailed is sent when the feature store rejects a write.
	EventPersistenceFailed AlertEvent = "persistence_failed"
	// EventTickFailed is sent when every symbol in a tick failed.
	EventTickFailed AlertEvent = "tick_failed"
	// EventBotStarted is sent when bot starts.
	EventBotStarted AlertEvent = "bot_started"
	// EventBotStopped is sent when bot stops.
	EventBotStopped AlertEvent = "bot_stopped"
)

// EventSeverity returns the default severity for an event.
func EventSeverity(event AlertEvent) Severity {
	switch event {
	case EventTickFailed:
		return SeverityCritical
	case EventPersistenceFailed:
		return SeverityHigh
	case EventSymbolFailed:
		return SeverityWarning
	case EventSignalFired, EventBotStarted, EventBotStopped:
		return SeverityInfo
	default:
		return SeverityInfo
	}
}

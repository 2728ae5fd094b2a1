package metrics

import (
	"time"
)

// MetricsCollector defines the interface for collecting dashboard metrics.
// Implementations can export metrics to various backends (Prometheus, in-memory, etc.).
type MetricsCollector interface {
	// Backend calls, labelled by endpoint path and error classification ("none" on success)
	RecordBackendCall(endpoint string, outcome string, duration time.Duration)

	// Circuit breaker
	RecordCircuitState(endpoint string, state CircuitState)

	// Store
	RecordRefresh(outcome string, records int, duration time.Duration)
	RecordStaleResponse()

	// Link flow events: token_created, token_failed, success, exit, exchange_failed
	RecordLinkEvent(event string)

	// Export
	RecordExport(rows int)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the backend has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is a no-op implementation of MetricsCollector.
// It's used as the default collector when metrics are not needed.
type NoOpCollector struct{}

// RecordBackendCall does nothing.
func (NoOpCollector) RecordBackendCall(endpoint string, outcome string, duration time.Duration) {}

// RecordCircuitState does nothing.
func (NoOpCollector) RecordCircuitState(endpoint string, state CircuitState) {}

// RecordRefresh does nothing.
func (NoOpCollector) RecordRefresh(outcome string, records int, duration time.Duration) {}

// RecordStaleResponse does nothing.
func (NoOpCollector) RecordStaleResponse() {}

// RecordLinkEvent does nothing.
func (NoOpCollector) RecordLinkEvent(event string) {}

// RecordExport does nothing.
func (NoOpCollector) RecordExport(rows int) {}

package prometheus

import (
	"time"

	"bank-dashboard/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements MetricsCollector for Prometheus.
type PrometheusCollector struct {
	namespace string

	backendCalls   *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec

	circuitOpens *prometheus.CounterVec
	circuitState *prometheus.GaugeVec

	refreshes      *prometheus.CounterVec
	refreshLatency prometheus.Histogram
	records        prometheus.Gauge
	staleResponses prometheus.Counter

	linkEvents *prometheus.CounterVec

	exports    prometheus.Counter
	exportRows prometheus.Histogram
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		namespace: namespace,
		backendCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_calls_total",
				Help:      "Total number of backend calls per endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		backendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_call_duration_seconds",
				Help:      "Backend call latency",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"endpoint"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens per endpoint",
			},
			[]string{"endpoint"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state per endpoint (0=closed, 1=open, 2=half-open)",
			},
			[]string{"endpoint"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refreshes_total",
				Help:      "Total number of applied transaction refreshes per outcome",
			},
			[]string{"outcome"},
		),
		refreshLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_duration_seconds",
				Help:      "Transaction refresh latency",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		),
		records: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transactions",
				Help:      "Number of transactions currently held by the store",
			},
		),
		staleResponses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_responses_total",
				Help:      "Refresh responses discarded because a newer request was issued",
			},
		),
		linkEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "link_events_total",
				Help:      "Bank-link flow events",
			},
			[]string{"event"},
		),
		exports: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exports_total",
				Help:      "Total number of CSV exports",
			},
		),
		exportRows: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "export_rows",
				Help:      "Data rows per CSV export",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
	}
}

// Collectors returns every metric owned by the collector.
func (pc *PrometheusCollector) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		pc.backendCalls,
		pc.backendLatency,
		pc.circuitOpens,
		pc.circuitState,
		pc.refreshes,
		pc.refreshLatency,
		pc.records,
		pc.staleResponses,
		pc.linkEvents,
		pc.exports,
		pc.exportRows,
	}
}

// Register registers all metrics with the given Prometheus registerer.
func (pc *PrometheusCollector) Register(registerer prometheus.Registerer) error {
	for _, collector := range pc.Collectors() {
		if err := registerer.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// RecordBackendCall records a single backend request.
func (pc *PrometheusCollector) RecordBackendCall(endpoint string, outcome string, duration time.Duration) {
	pc.backendCalls.WithLabelValues(endpoint, outcome).Inc()
	pc.backendLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordCircuitState records the current circuit breaker state.
func (pc *PrometheusCollector) RecordCircuitState(endpoint string, state metrics.CircuitState) {
	pc.circuitState.WithLabelValues(endpoint).Set(float64(state))
	if state == metrics.CircuitOpen {
		pc.circuitOpens.WithLabelValues(endpoint).Inc()
	}
}

// RecordRefresh records an applied store refresh.
func (pc *PrometheusCollector) RecordRefresh(outcome string, records int, duration time.Duration) {
	pc.refreshes.WithLabelValues(outcome).Inc()
	pc.refreshLatency.Observe(duration.Seconds())
	pc.records.Set(float64(records))
}

// RecordStaleResponse records a discarded out-of-order refresh response.
func (pc *PrometheusCollector) RecordStaleResponse() {
	pc.staleResponses.Inc()
}

// RecordLinkEvent records a bank-link flow event.
func (pc *PrometheusCollector) RecordLinkEvent(event string) {
	pc.linkEvents.WithLabelValues(event).Inc()
}

// RecordExport records a CSV export.
func (pc *PrometheusCollector) RecordExport(rows int) {
	pc.exports.Inc()
	pc.exportRows.Observe(float64(rows))
}

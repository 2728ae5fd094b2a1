package memory

import (
	"sync"
	"time"

	"bank-dashboard/pkg/metrics"
)

// MemoryCollector implements MetricsCollector in memory, mainly for tests
// and the /status endpoint.
type MemoryCollector struct {
	mu sync.RWMutex

	endpoints map[string]*EndpointMetrics

	refreshes       map[string]int64
	refreshLatency  []time.Duration
	lastRecordCount int
	staleResponses  int64

	linkEvents map[string]int64

	exports    int64
	exportRows int64
}

// EndpointMetrics holds metrics for a single backend endpoint.
type EndpointMetrics struct {
	Calls     int64
	Outcomes  map[string]int64
	Latencies []time.Duration

	CircuitState metrics.CircuitState
	CircuitOpens int64
}

// NewMemoryCollector creates a new in-memory metrics collector.
func NewMemoryCollector() *MemoryCollector {
	mc := &MemoryCollector{}
	mc.reset()
	return mc
}

// endpoint returns the metrics for the given endpoint, creating them if needed.
// Callers must hold mc.mu.
func (mc *MemoryCollector) endpoint(name string) *EndpointMetrics {
	em, ok := mc.endpoints[name]
	if !ok {
		em = &EndpointMetrics{Outcomes: make(map[string]int64)}
		mc.endpoints[name] = em
	}
	return em
}

// RecordBackendCall records a single backend request.
func (mc *MemoryCollector) RecordBackendCall(endpoint string, outcome string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	em := mc.endpoint(endpoint)
	em.Calls++
	em.Outcomes[outcome]++
	em.Latencies = append(em.Latencies, duration)
}

// RecordCircuitState records the current circuit breaker state.
func (mc *MemoryCollector) RecordCircuitState(endpoint string, state metrics.CircuitState) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	em := mc.endpoint(endpoint)
	if em.CircuitState != metrics.CircuitOpen && state == metrics.CircuitOpen {
		em.CircuitOpens++
	}
	em.CircuitState = state
}

// RecordRefresh records an applied store refresh.
func (mc *MemoryCollector) RecordRefresh(outcome string, records int, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.refreshes[outcome]++
	mc.refreshLatency = append(mc.refreshLatency, duration)
	mc.lastRecordCount = records
}

// RecordStaleResponse records a discarded out-of-order refresh response.
func (mc *MemoryCollector) RecordStaleResponse() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.staleResponses++
}

// RecordLinkEvent records a bank-link flow event.
func (mc *MemoryCollector) RecordLinkEvent(event string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.linkEvents[event]++
}

// RecordExport records a CSV export.
func (mc *MemoryCollector) RecordExport(rows int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.exports++
	mc.exportRows += int64(rows)
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	Endpoints       map[string]EndpointMetrics `json:"endpoints"`
	Refreshes       map[string]int64           `json:"refreshes"`
	LastRecordCount int                        `json:"last_record_count"`
	StaleResponses  int64                      `json:"stale_responses"`
	LinkEvents      map[string]int64           `json:"link_events"`
	Exports         int64                      `json:"exports"`
	ExportRows      int64                      `json:"export_rows"`
}

// Snapshot returns a copy of the current metrics state.
func (mc *MemoryCollector) Snapshot() Snapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	snapshot := Snapshot{
		Endpoints:       make(map[string]EndpointMetrics, len(mc.endpoints)),
		Refreshes:       make(map[string]int64, len(mc.refreshes)),
		LastRecordCount: mc.lastRecordCount,
		StaleResponses:  mc.staleResponses,
		LinkEvents:      make(map[string]int64, len(mc.linkEvents)),
		Exports:         mc.exports,
		ExportRows:      mc.exportRows,
	}

	for name, em := range mc.endpoints {
		cp := *em
		cp.Outcomes = make(map[string]int64, len(em.Outcomes))
		for k, v := range em.Outcomes {
			cp.Outcomes[k] = v
		}
		cp.Latencies = append([]time.Duration(nil), em.Latencies...)
		snapshot.Endpoints[name] = cp
	}
	for k, v := range mc.refreshes {
		snapshot.Refreshes[k] = v
	}
	for k, v := range mc.linkEvents {
		snapshot.LinkEvents[k] = v
	}

	return snapshot
}

// Reset clears all collected metrics.
func (mc *MemoryCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.reset()
}

func (mc *MemoryCollector) reset() {
	mc.endpoints = make(map[string]*EndpointMetrics)
	mc.refreshes = make(map[string]int64)
	mc.refreshLatency = nil
	mc.lastRecordCount = 0
	mc.staleResponses = 0
	mc.linkEvents = make(map[string]int64)
	mc.exports = 0
	mc.exportRows = 0
}

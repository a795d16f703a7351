package types

import "time"

type MetricsManager interface {
	LifecycleManager
	Counter(name string, labels map[string]string) Counter
	Gauge(name string, labels map[string]string) Gauge
	Histogram(name string, buckets []float64, labels map[string]string) Histogram
	GetMetrics() ([]byte, error)
}

type Counter interface {
	Inc()
	Add(value float64)
	Get() float64
}

type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Get() float64
}

type Histogram interface {
	Observe(value float64)
	ObserveDuration(start time.Time)
}

// PerformanceSnapshot is the read-only view of the process-wide resolution
// counters. AvgResponseTimeMs is an exponential moving average.
type PerformanceSnapshot struct {
	CacheHits         uint64  `json:"cache_hits"`
	CacheMisses       uint64  `json:"cache_misses"`
	NetworkRequests   uint64  `json:"network_requests"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

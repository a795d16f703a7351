package metrics

import (
	"time"

	"github.com/tavolo/posdata/types"
)

func NewManager(logger types.Logger, config *types.MetricsConfig) (types.MetricsManager, error) {
	if !config.Enabled {
		return NewNoopMetrics(), nil
	}

	return NewPrometheusMetrics(logger, config)
}

// NoopMetrics satisfies the manager interface when metrics are disabled so
// callers never branch on enablement.
type NoopMetrics struct{}

func NewNoopMetrics() types.MetricsManager {
	return &NoopMetrics{}
}

func (n *NoopMetrics) Start() error    { return nil }
func (n *NoopMetrics) Stop() error     { return nil }
func (n *NoopMetrics) IsRunning() bool { return true }

func (n *NoopMetrics) Counter(name string, labels map[string]string) types.Counter {
	return noopCounter{}
}

func (n *NoopMetrics) Gauge(name string, labels map[string]string) types.Gauge {
	return noopGauge{}
}

func (n *NoopMetrics) Histogram(name string, buckets []float64, labels map[string]string) types.Histogram {
	return noopHistogram{}
}

func (n *NoopMetrics) GetMetrics() ([]byte, error) {
	return nil, nil
}

type noopCounter struct{}

func (noopCounter) Inc()              {}
func (noopCounter) Add(float64)       {}
func (noopCounter) Get() float64      { return 0 }

type noopGauge struct{}

func (noopGauge) Set(float64)    {}
func (noopGauge) Inc()           {}
func (noopGauge) Dec()           {}
func (noopGauge) Get() float64   { return 0 }

type noopHistogram struct{}

func (noopHistogram) Observe(float64)           {}
func (noopHistogram) ObserveDuration(time.Time) {}

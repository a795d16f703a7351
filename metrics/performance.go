package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tavolo/posdata/types"
)

// emaSmoothing weights each new response-time sample at 10%, matching the
// resolution counters the POS UI reads.
const emaSmoothing = 0.1

// Performance tracks the process-wide cache/network resolution counters.
// Counters are also mirrored into the metrics manager so operators see them
// on the same scrape as everything else.
type Performance struct {
	cacheHits       atomic.Uint64
	cacheMisses     atomic.Uint64
	networkRequests atomic.Uint64

	mu     sync.Mutex
	avgMs  float64
	seeded bool

	hitCounter  types.Counter
	missCounter types.Counter
	netCounter  types.Counter
	avgGauge    types.Gauge
}

func NewPerformance(manager types.MetricsManager) *Performance {
	if manager == nil {
		manager = NewNoopMetrics()
	}

	return &Performance{
		hitCounter:  manager.Counter("cache_hits_total", nil),
		missCounter: manager.Counter("cache_misses_total", nil),
		netCounter:  manager.Counter("network_requests_total", nil),
		avgGauge:    manager.Gauge("avg_response_time_ms", nil),
	}
}

func (p *Performance) RecordHit() {
	p.cacheHits.Add(1)
	p.hitCounter.Inc()
}

func (p *Performance) RecordMiss() {
	p.cacheMisses.Add(1)
	p.missCounter.Inc()
}

// RecordNetworkRequest folds one observed round-trip into the moving
// average. The first sample seeds the average directly.
func (p *Performance) RecordNetworkRequest(elapsed time.Duration) {
	p.networkRequests.Add(1)
	p.netCounter.Inc()

	sample := float64(elapsed.Milliseconds())

	p.mu.Lock()
	if !p.seeded {
		p.avgMs = sample
		p.seeded = true
	} else {
		p.avgMs = p.avgMs*(1-emaSmoothing) + sample*emaSmoothing
	}
	avg := p.avgMs
	p.mu.Unlock()

	p.avgGauge.Set(avg)
}

func (p *Performance) Snapshot() types.PerformanceSnapshot {
	p.mu.Lock()
	avg := p.avgMs
	p.mu.Unlock()

	return types.PerformanceSnapshot{
		CacheHits:         p.cacheHits.Load(),
		CacheMisses:       p.cacheMisses.Load(),
		NetworkRequests:   p.networkRequests.Load(),
		AvgResponseTimeMs: avg,
	}
}

// Reset zeroes the counters. Only an explicit administrative request calls
// this; nothing resets on its own.
func (p *Performance) Reset() {
	p.cacheHits.Store(0)
	p.cacheMisses.Store(0)
	p.networkRequests.Store(0)

	p.mu.Lock()
	p.avgMs = 0
	p.seeded = false
	p.mu.Unlock()

	p.avgGauge.Set(0)
}

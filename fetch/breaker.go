package fetch

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tavolo/posdata/types"
	"github.com/tavolo/posdata/utils"
)

type BreakerState int32

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// CircuitBreaker fast-fails the network leg after repeated failures so
// cache fallback latency stays bounded while the backend is down.
type CircuitBreaker struct {
	config    *types.BreakerConfig
	logger    types.Logger
	recovery  time.Duration
	state     atomic.Value
	failures  atomic.Int32
	successes atomic.Int32
	lastFail  atomic.Int64
	mu        sync.Mutex
}

func NewCircuitBreaker(config *types.BreakerConfig, logger types.Logger) *CircuitBreaker {
	cb := &CircuitBreaker{
		config:   config,
		logger:   logger,
		recovery: utils.ParseDurationOr(config.RecoveryTimeout, 30*time.Second),
	}

	cb.state.Store(BreakerClosed)
	return cb
}

func (cb *CircuitBreaker) CanExecute() bool {
	if cb == nil || !cb.config.Enabled {
		return true
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state.Load().(BreakerState) {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if time.Since(time.Unix(0, cb.lastFail.Load())) > cb.recovery {
			cb.state.Store(BreakerHalfOpen)
			cb.successes.Store(0)
			cb.logger.Debug("Circuit breaker half-open, probing backend")
			return true
		}
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil || !cb.config.Enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state.Load().(BreakerState) {
	case BreakerClosed:
		cb.failures.Store(0)
	case BreakerHalfOpen:
		required := int32(cb.config.HalfOpenRequests)
		if required <= 0 {
			required = 1
		}
		if cb.successes.Add(1) >= required {
			cb.state.Store(BreakerClosed)
			cb.failures.Store(0)
			cb.logger.Info("Circuit breaker closed, backend recovered")
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil || !cb.config.Enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFail.Store(time.Now().UnixNano())

	switch cb.state.Load().(BreakerState) {
	case BreakerClosed:
		threshold := int32(cb.config.FailureThreshold)
		if threshold <= 0 {
			threshold = 5
		}
		if cb.failures.Add(1) >= threshold {
			cb.state.Store(BreakerOpen)
			cb.logger.Warn("Circuit breaker opened",
				zap.Int32("failures", cb.failures.Load()))
		}
	case BreakerHalfOpen:
		cb.state.Store(BreakerOpen)
		cb.logger.Warn("Circuit breaker reopened, backend still failing")
	}
}

func (cb *CircuitBreaker) State() BreakerState {
	return cb.state.Load().(BreakerState)
}

package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/tavolo/posdata/cache"
	"github.com/tavolo/posdata/connectivity"
	"github.com/tavolo/posdata/metrics"
	"github.com/tavolo/posdata/policy"
	"github.com/tavolo/posdata/types"
	"github.com/tavolo/posdata/utils"
)

// NetworkDoer is the transport the orchestrator drives; split out so tests
// run the full state machine without sockets.
type NetworkDoer interface {
	Get(ctx context.Context, path string) ([]byte, int, error)
	Do(ctx context.Context, method, path string, body []byte) ([]byte, int, error)
	Timeout() time.Duration
}

// Result is what a read or mutation resolves to. Exactly one of the
// degraded markers is meaningful to consumers: Degraded for stale/fallback
// cache data, Offline for the structured offline error, Queued for a
// mutation parked on the sync queue.
type Result struct {
	Payload   []byte            `json:"payload"`
	Status    int               `json:"status"`
	FromCache bool              `json:"from_cache"`
	Degraded  bool              `json:"degraded"`
	Offline   bool              `json:"offline"`
	Queued    bool              `json:"queued"`
	Source    types.EntrySource `json:"source,omitempty"`
}

type offlineError struct {
	Error   string `json:"error"`
	Offline bool   `json:"offline"`
}

// Orchestrator executes reads under the resolved cache policy, coordinating
// the memory tier, the durable tier and the network. Network errors never
// propagate raw; they degrade to cache or to a typed offline payload.
type Orchestrator struct {
	logger   types.Logger
	selector *policy.Selector
	memory   types.MemoryCache
	durable  types.ResponseCache
	network  NetworkDoer
	tracker  *connectivity.Tracker
	notifier types.Notifier
	perf     *metrics.Performance
	queue    types.SyncQueue

	revalidating sync.Map
	now          func() time.Time
}

func NewOrchestrator(
	logger types.Logger,
	selector *policy.Selector,
	memory types.MemoryCache,
	durable types.ResponseCache,
	network NetworkDoer,
	tracker *connectivity.Tracker,
	notifier types.Notifier,
	perf *metrics.Performance,
) *Orchestrator {
	return &Orchestrator{
		logger:   logger,
		selector: selector,
		memory:   memory,
		durable:  durable,
		network:  network,
		tracker:  tracker,
		notifier: notifier,
		perf:     perf,
		now:      time.Now,
	}
}

// AttachQueue wires the sync queue once it exists; the queue's executor in
// turn uses this orchestrator's network client.
func (o *Orchestrator) AttachQueue(queue types.SyncQueue) {
	o.queue = queue
}

// Fetch resolves a read. Paths without a policy bypass caching entirely.
func (o *Orchestrator) Fetch(ctx context.Context, rawPath string) (*Result, error) {
	pol := o.selector.Resolve(rawPath)
	if pol == nil {
		return o.passThrough(ctx, rawPath)
	}

	key := cache.NormalizeKey(rawPath)

	if pol.Strategy == types.StrategyNetworkFirst {
		return o.networkFirst(ctx, rawPath, key, pol), nil
	}

	return o.cacheFirst(ctx, rawPath, key, pol), nil
}

// Mutate passes a non-GET straight through to the network. A failed write
// for a sync-eligible category is parked on the queue instead of being lost.
func (o *Orchestrator) Mutate(ctx context.Context, method, rawPath string, payload []byte) (*Result, error) {
	body, status, err := o.network.Do(ctx, method, rawPath, payload)
	if err == nil {
		return &Result{Payload: body, Status: status}, nil
	}

	pol := o.selector.Resolve(rawPath)
	if pol != nil && pol.BackgroundSync && o.queue != nil {
		item := &types.SyncQueueItem{
			Operation: method,
			Path:      rawPath,
			TargetKey: cache.NormalizeKey(rawPath),
			Payload:   payload,
		}

		if qErr := o.queue.Enqueue(item); qErr == nil {
			o.logger.Info("Mutation queued for background sync",
				zap.String("method", method),
				zap.String("path", rawPath))
			return &Result{
				Payload: o.offlinePayload("mutation queued for sync"),
				Status:  fasthttp.StatusAccepted,
				Offline: true,
				Queued:  true,
			}, nil
		} else {
			o.logger.Error("Failed to queue mutation", zap.Error(qErr))
		}
	}

	return o.offlineResult("service unavailable"), nil
}

// Preload warms both tiers from a config-listed endpoint at startup.
func (o *Orchestrator) Preload(ctx context.Context, rawPath string) error {
	body, _, err := o.network.Get(ctx, rawPath)
	if err != nil {
		return err
	}

	o.populate(cache.NormalizeKey(rawPath), body, types.SourcePreload)
	return nil
}

func (o *Orchestrator) cacheFirst(ctx context.Context, rawPath, key string, pol *types.CachePolicy) *Result {
	now := o.now()

	if entry, ok := o.memory.Get(key); ok && !entry.IsStale(now, pol.MaxAge) {
		o.perf.RecordHit()
		return &Result{Payload: entry.Payload, Status: fasthttp.StatusOK, FromCache: true, Source: entry.Source}
	}

	if entry, ok := o.durable.Get(key); ok {
		o.perf.RecordHit()

		// Promote to the memory tier for the next read.
		if err := o.memory.Set(entry); err != nil && err != types.ErrCacheEntryStale {
			o.logger.Debug("Memory promotion failed", zap.String("key", key), zap.Error(err))
		}

		if entry.IsStale(now, pol.MaxAge) {
			o.backgroundRevalidate(rawPath, key)
		}

		return &Result{Payload: entry.Payload, Status: fasthttp.StatusOK, FromCache: true, Source: entry.Source}
	}

	o.perf.RecordMiss()

	result, err := o.networkFetch(ctx, rawPath, key)
	if err != nil {
		return o.fallbackToCache(key, "service unavailable")
	}

	return result
}

func (o *Orchestrator) networkFirst(ctx context.Context, rawPath, key string, pol *types.CachePolicy) *Result {
	if o.tracker.IsOnline() {
		result, err := o.networkFetch(ctx, rawPath, key)
		if err == nil {
			return result
		}
	}

	return o.fallbackToCache(key, "service unavailable")
}

// networkFetch performs the GET and populates both tiers on success.
func (o *Orchestrator) networkFetch(ctx context.Context, rawPath, key string) (*Result, error) {
	start := time.Now()

	body, status, err := o.network.Get(ctx, rawPath)
	if err != nil {
		return nil, err
	}

	o.perf.RecordNetworkRequest(time.Since(start))
	o.populate(key, body, types.SourceNetwork)

	return &Result{Payload: body, Status: status}, nil
}

// fallbackToCache serves the most recent tier hit with the degraded marker;
// memory is always consulted first because it is never older than disk.
func (o *Orchestrator) fallbackToCache(key, message string) *Result {
	if entry, ok := o.memory.Get(key); ok {
		o.perf.RecordHit()
		return &Result{Payload: entry.Payload, Status: fasthttp.StatusOK, FromCache: true, Degraded: true, Source: entry.Source}
	}

	if entry, ok := o.durable.Get(key); ok {
		o.perf.RecordHit()
		return &Result{Payload: entry.Payload, Status: fasthttp.StatusOK, FromCache: true, Degraded: true, Source: entry.Source}
	}

	o.perf.RecordMiss()
	return o.offlineResult(message)
}

func (o *Orchestrator) passThrough(ctx context.Context, rawPath string) (*Result, error) {
	body, status, err := o.network.Get(ctx, rawPath)
	if err != nil {
		return o.offlineResult("service unavailable"), nil
	}

	return &Result{Payload: body, Status: status}, nil
}

// backgroundRevalidate refreshes a stale key without blocking the caller.
// It has its own error boundary: a failed refresh is dropped silently and
// the stale entry stands until the next attempt.
func (o *Orchestrator) backgroundRevalidate(rawPath, key string) {
	if _, inFlight := o.revalidating.LoadOrStore(key, struct{}{}); inFlight {
		return
	}

	go func() {
		defer o.revalidating.Delete(key)
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("Background revalidation panicked", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), o.network.Timeout())
		defer cancel()

		start := time.Now()
		body, _, err := o.network.Get(ctx, rawPath)
		if err != nil {
			o.logger.Debug("Background revalidation failed",
				zap.String("key", key), zap.Error(err))
			return
		}

		o.perf.RecordNetworkRequest(time.Since(start))
		o.populate(key, body, types.SourceNetwork)
	}()
}

// populate writes one payload into both tiers and notifies consumers. The
// tiers' write guards decide whether the write actually lands.
func (o *Orchestrator) populate(key string, payload []byte, source types.EntrySource) {
	entry := &types.CacheEntry{
		Key:      key,
		Payload:  payload,
		StoredAt: o.now(),
		Source:   source,
	}

	if err := o.memory.Set(entry); err != nil && err != types.ErrCacheEntryStale {
		o.logger.Debug("Memory cache write failed", zap.String("key", key), zap.Error(err))
	}

	if err := o.durable.Put(entry); err != nil && err != types.ErrCacheEntryStale {
		o.logger.Debug("Durable cache write failed", zap.String("key", key), zap.Error(err))
	}

	if o.notifier != nil {
		o.notifier.Notify(types.EventDataUpdated, map[string]interface{}{
			"key":    key,
			"source": source,
		})
	}
}

func (o *Orchestrator) offlineResult(message string) *Result {
	return &Result{
		Payload: o.offlinePayload(message),
		Status:  fasthttp.StatusServiceUnavailable,
		Offline: true,
	}
}

func (o *Orchestrator) offlinePayload(message string) []byte {
	payload, err := utils.Marshal(&offlineError{Error: message, Offline: true})
	if err != nil {
		return []byte(`{"error":"service unavailable","offline":true}`)
	}
	return payload
}

package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/tavolo/posdata/cache"
	"github.com/tavolo/posdata/connectivity"
	"github.com/tavolo/posdata/logger"
	"github.com/tavolo/posdata/metrics"
	"github.com/tavolo/posdata/policy"
	"github.com/tavolo/posdata/storage"
	"github.com/tavolo/posdata/types"
	"github.com/tavolo/posdata/utils"
)

type stubNetwork struct {
	mu       sync.Mutex
	response []byte
	status   int
	err      error
	getCalls int
	doCalls  int
	gotPaths []string
}

func (s *stubNetwork) Get(_ context.Context, path string) ([]byte, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getCalls++
	s.gotPaths = append(s.gotPaths, path)

	if s.err != nil {
		return nil, 0, s.err
	}
	return s.response, s.status, nil
}

func (s *stubNetwork) Do(_ context.Context, _, path string, _ []byte) ([]byte, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doCalls++
	s.gotPaths = append(s.gotPaths, path)

	if s.err != nil {
		return nil, 0, s.err
	}
	return s.response, s.status, nil
}

func (s *stubNetwork) Timeout() time.Duration { return time.Second }

func (s *stubNetwork) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls, s.doCalls
}

func (s *stubNetwork) setFailure(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

type testHarness struct {
	orchestrator *Orchestrator
	network      *stubNetwork
	memory       *cache.Memory
	durable      types.ResponseCache
	tracker      *connectivity.Tracker
	perf         *metrics.Performance
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	log := logger.NewZapWrapper(zap.NewNop())
	network := &stubNetwork{response: []byte(`{"items":[]}`), status: fasthttp.StatusOK}
	memory := cache.NewMemory(log, 10)
	durable := cache.NewDurable(log, metrics.NewNoopMetrics(), storage.NewMemoryStore(), &types.DurableConfig{})
	tracker := connectivity.NewTracker(log, nil)
	perf := metrics.NewPerformance(nil)

	orchestrator := NewOrchestrator(
		log,
		policy.NewSelector(&types.PolicyConfig{}),
		memory,
		durable,
		network,
		tracker,
		nil,
		perf,
	)

	return &testHarness{
		orchestrator: orchestrator,
		network:      network,
		memory:       memory,
		durable:      durable,
		tracker:      tracker,
		perf:         perf,
	}
}

func offlineFields(t *testing.T, payload []byte) (string, bool) {
	t.Helper()

	var parsed struct {
		Error   string `json:"error"`
		Offline bool   `json:"offline"`
	}
	require.NoError(t, utils.Unmarshal(payload, &parsed))
	return parsed.Error, parsed.Offline
}

func TestCacheFirstMissFetchesAndPopulatesBothTiers(t *testing.T) {
	h := newHarness(t)

	result, err := h.orchestrator.Fetch(context.Background(), "/api/menu")
	require.NoError(t, err)

	assert.Equal(t, fasthttp.StatusOK, result.Status)
	assert.False(t, result.FromCache)
	assert.JSONEq(t, `{"items":[]}`, string(result.Payload))

	_, ok := h.memory.Get("/api/menu")
	assert.True(t, ok)
	_, ok = h.durable.Get("/api/menu")
	assert.True(t, ok)

	snap := h.perf.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.Equal(t, uint64(1), snap.NetworkRequests)
}

func TestCacheFirstFreshHitSkipsNetwork(t *testing.T) {
	h := newHarness(t)

	_, err := h.orchestrator.Fetch(context.Background(), "/api/menu")
	require.NoError(t, err)

	result, err := h.orchestrator.Fetch(context.Background(), "/api/menu")
	require.NoError(t, err)

	assert.True(t, result.FromCache)
	assert.False(t, result.Degraded)

	gets, _ := h.network.calls()
	assert.Equal(t, 1, gets, "fresh cache hit must not touch the network")
	assert.Equal(t, uint64(1), h.perf.Snapshot().CacheHits)
}

func TestCacheFirstServesExpiredEntryWhileNetworkDown(t *testing.T) {
	h := newHarness(t)

	// Seed only the durable tier with an expired entry; the network is down.
	require.NoError(t, h.durable.Put(&types.CacheEntry{
		Key:      "/api/menu",
		Payload:  []byte(`{"items":["old"]}`),
		StoredAt: time.Now().Add(-time.Hour),
		Source:   types.SourceNetwork,
	}))
	h.network.setFailure(errors.New("connection refused"))

	result, err := h.orchestrator.Fetch(context.Background(), "/api/menu")
	require.NoError(t, err)

	// Stale beats nothing: the entry is served and the failed background
	// refresh leaves it in place.
	assert.True(t, result.FromCache)
	assert.JSONEq(t, `{"items":["old"]}`, string(result.Payload))

	assert.Eventually(t, func() bool {
		gets, _ := h.network.calls()
		return gets == 1
	}, time.Second, 5*time.Millisecond)

	entry, ok := h.memory.Get("/api/menu")
	require.True(t, ok)
	assert.JSONEq(t, `{"items":["old"]}`, string(entry.Payload))
}

func TestCacheFirstTotalFailureReturnsOfflinePayload(t *testing.T) {
	h := newHarness(t)
	h.network.setFailure(errors.New("connection refused"))

	result, err := h.orchestrator.Fetch(context.Background(), "/api/menu")
	require.NoError(t, err)

	assert.Equal(t, fasthttp.StatusServiceUnavailable, result.Status)
	assert.True(t, result.Offline)

	message, offline := offlineFields(t, result.Payload)
	assert.NotEmpty(t, message)
	assert.True(t, offline)
}

func TestCacheFirstStaleDurableHitServedThenRevalidated(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.durable.Put(&types.CacheEntry{
		Key:      "/api/menu",
		Payload:  []byte(`{"items":["stale"]}`),
		StoredAt: time.Now().Add(-time.Hour),
		Source:   types.SourceNetwork,
	}))

	result, err := h.orchestrator.Fetch(context.Background(), "/api/menu")
	require.NoError(t, err)

	// The stale entry is served immediately.
	assert.True(t, result.FromCache)
	assert.JSONEq(t, `{"items":["stale"]}`, string(result.Payload))

	// And refreshed in the background.
	assert.Eventually(t, func() bool {
		gets, _ := h.network.calls()
		return gets == 1
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		entry, ok := h.memory.Get("/api/menu")
		return ok && string(entry.Payload) == `{"items":[]}`
	}, time.Second, 5*time.Millisecond)
}

func TestNetworkFirstPrefersNetworkWhenOnline(t *testing.T) {
	h := newHarness(t)

	// Seed a cached value that must be ignored while online.
	require.NoError(t, h.memory.Set(&types.CacheEntry{
		Key:      "/api/orders",
		Payload:  []byte(`{"orders":["cached"]}`),
		StoredAt: time.Now(),
		Source:   types.SourceNetwork,
	}))

	result, err := h.orchestrator.Fetch(context.Background(), "/api/orders")
	require.NoError(t, err)

	assert.False(t, result.FromCache)
	assert.JSONEq(t, `{"items":[]}`, string(result.Payload))
}

func TestNetworkFirstFallsBackToCacheWhenOffline(t *testing.T) {
	h := newHarness(t)
	h.tracker.SetOnline(false)

	require.NoError(t, h.memory.Set(&types.CacheEntry{
		Key:      "/api/orders",
		Payload:  []byte(`{"orders":["cached"]}`),
		StoredAt: time.Now(),
		Source:   types.SourceNetwork,
	}))

	result, err := h.orchestrator.Fetch(context.Background(), "/api/orders")
	require.NoError(t, err)

	assert.True(t, result.FromCache)
	assert.True(t, result.Degraded)

	gets, _ := h.network.calls()
	assert.Equal(t, 0, gets, "offline must not attempt the network")
}

func TestNetworkFirstMemoryBeatsDurable(t *testing.T) {
	h := newHarness(t)
	h.tracker.SetOnline(false)
	now := time.Now()

	require.NoError(t, h.durable.Put(&types.CacheEntry{
		Key:      "/api/orders",
		Payload:  []byte(`{"tier":"durable"}`),
		StoredAt: now.Add(-time.Minute),
		Source:   types.SourceNetwork,
	}))
	require.NoError(t, h.memory.Set(&types.CacheEntry{
		Key:      "/api/orders",
		Payload:  []byte(`{"tier":"memory"}`),
		StoredAt: now,
		Source:   types.SourceNetwork,
	}))

	result, err := h.orchestrator.Fetch(context.Background(), "/api/orders")
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier":"memory"}`, string(result.Payload))
}

func TestFetchUnmatchedPathPassesThrough(t *testing.T) {
	h := newHarness(t)

	result, err := h.orchestrator.Fetch(context.Background(), "/api/reports/daily")
	require.NoError(t, err)

	assert.False(t, result.FromCache)

	// Nothing is cached for pass-through paths.
	_, ok := h.memory.Get("/api/reports/daily")
	assert.False(t, ok)
}

func TestFetchNormalizesQueryKeys(t *testing.T) {
	h := newHarness(t)

	_, err := h.orchestrator.Fetch(context.Background(), "/api/menu?b=2&a=1")
	require.NoError(t, err)

	_, err = h.orchestrator.Fetch(context.Background(), "/api/menu?a=1&b=2")
	require.NoError(t, err)

	gets, _ := h.network.calls()
	assert.Equal(t, 1, gets, "param order must not split the cache key")
}

func TestMutateSuccessPassesThrough(t *testing.T) {
	h := newHarness(t)
	h.network.response = []byte(`{"id":"o-1"}`)
	h.network.status = fasthttp.StatusCreated

	result, err := h.orchestrator.Mutate(context.Background(), "POST", "/api/orders", []byte(`{"qty":1}`))
	require.NoError(t, err)

	assert.Equal(t, fasthttp.StatusCreated, result.Status)
	assert.False(t, result.Queued)
}

type stubQueue struct {
	items []*types.SyncQueueItem
	err   error
}

func (s *stubQueue) Start() error                                { return nil }
func (s *stubQueue) Stop() error                                 { return nil }
func (s *stubQueue) IsRunning() bool                             { return true }
func (s *stubQueue) Drain(context.Context) error                 { return nil }
func (s *stubQueue) Len() int                                    { return len(s.items) }
func (s *stubQueue) DeadLetters() []*types.SyncQueueItem         { return nil }
func (s *stubQueue) Requeue(string) error                        { return nil }
func (s *stubQueue) Enqueue(item *types.SyncQueueItem) error {
	if s.err != nil {
		return s.err
	}
	s.items = append(s.items, item)
	return nil
}

func TestMutateFailureQueuesSyncEligibleCategory(t *testing.T) {
	h := newHarness(t)
	queue := &stubQueue{}
	h.orchestrator.AttachQueue(queue)
	h.network.setFailure(errors.New("connection refused"))

	result, err := h.orchestrator.Mutate(context.Background(), "POST", "/api/orders", []byte(`{"qty":1}`))
	require.NoError(t, err)

	assert.Equal(t, fasthttp.StatusAccepted, result.Status)
	assert.True(t, result.Queued)

	require.Len(t, queue.items, 1)
	assert.Equal(t, "POST", queue.items[0].Operation)
	assert.Equal(t, "/api/orders", queue.items[0].Path)
}

func TestMutateFailureOnNonSyncCategoryReturnsOffline(t *testing.T) {
	h := newHarness(t)
	queue := &stubQueue{}
	h.orchestrator.AttachQueue(queue)
	h.network.setFailure(errors.New("connection refused"))

	// Menu is cacheFirst without background sync; its writes are not queued.
	result, err := h.orchestrator.Mutate(context.Background(), "POST", "/api/menu", []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, fasthttp.StatusServiceUnavailable, result.Status)
	assert.False(t, result.Queued)
	assert.Empty(t, queue.items)
}

func TestPreloadPopulatesWithPreloadSource(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.orchestrator.Preload(context.Background(), "/api/menu"))

	entry, ok := h.memory.Get("/api/menu")
	require.True(t, ok)
	assert.Equal(t, types.SourcePreload, entry.Source)
}

func TestPreloadFailurePropagates(t *testing.T) {
	h := newHarness(t)
	h.network.setFailure(errors.New("connection refused"))

	assert.Error(t, h.orchestrator.Preload(context.Background(), "/api/menu"))
}

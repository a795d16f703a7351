package runtime

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tavolo/posdata/cache"
	"github.com/tavolo/posdata/connectivity"
	"github.com/tavolo/posdata/fetch"
	"github.com/tavolo/posdata/health"
	"github.com/tavolo/posdata/logger"
	"github.com/tavolo/posdata/metrics"
	"github.com/tavolo/posdata/notify"
	"github.com/tavolo/posdata/policy"
	"github.com/tavolo/posdata/realtime"
	"github.com/tavolo/posdata/storage"
	"github.com/tavolo/posdata/syncqueue"
	"github.com/tavolo/posdata/types"
)

const drainTimeout = 2 * time.Minute

// Runtime is the explicit context object that owns the whole data layer:
// one instance per process, constructed at startup, injected everywhere.
// There is no global state; a host embeds the Runtime and exposes whatever
// surface it needs.
type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc

	config  *types.Config
	logger  types.Logger
	metrics types.MetricsManager
	perf    *metrics.Performance
	health  *health.Manager

	store   types.KVStore
	backend string

	memory   *cache.Memory
	durable  types.ResponseCache
	selector *policy.Selector
	notifier *notify.Notifier
	tracker  *connectivity.Tracker
	network  *fetch.Client

	orchestrator *fetch.Orchestrator
	queue        *syncqueue.Queue
	channel      *realtime.Channel
	scheduler    *cron.Cron

	running int32
}

func New(ctx context.Context, config *types.Config) (*Runtime, error) {
	log, err := logger.NewLogger(&config.Logger)
	if err != nil {
		return nil, types.WrapError(err, "failed to create logger")
	}

	metricsManager, err := metrics.NewManager(log, &config.Metrics)
	if err != nil {
		return nil, types.WrapError(err, "failed to create metrics manager")
	}

	runtimeCtx, cancel := context.WithCancel(ctx)

	healthManager := health.NewManager(log)
	notifier := notify.NewNotifier(log, metricsManager)
	tracker := connectivity.NewTracker(log, notifier)
	perf := metrics.NewPerformance(metricsManager)

	store, backend, err := storage.NewProber(log, healthManager).Open(&config.Storage)
	if err != nil {
		cancel()
		return nil, types.WrapError(err, "failed to open storage backend")
	}

	memory := cache.NewMemory(log, config.Cache.MemoryMaxEntries)

	durable, err := cache.NewResponseCache(runtimeCtx, log, metricsManager, store, &config.Cache.Durable)
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, types.WrapError(err, "failed to create durable cache")
	}

	selector := policy.NewSelector(&config.Policies)
	network := fetch.NewClient(log, &config.Network)

	orchestrator := fetch.NewOrchestrator(
		log, selector, memory, durable, network, tracker, notifier, perf)

	executor := func(ctx context.Context, item *types.SyncQueueItem) error {
		_, _, err := network.Do(ctx, item.Operation, item.Path, item.Payload)
		return err
	}

	queue := syncqueue.NewQueue(log, metricsManager, store, notifier, executor, &config.Sync)
	orchestrator.AttachQueue(queue)

	r := &Runtime{
		ctx:          runtimeCtx,
		cancel:       cancel,
		config:       config,
		logger:       log,
		metrics:      metricsManager,
		perf:         perf,
		health:       healthManager,
		store:        store,
		backend:      backend,
		memory:       memory,
		durable:      durable,
		selector:     selector,
		notifier:     notifier,
		tracker:      tracker,
		network:      network,
		orchestrator: orchestrator,
		queue:        queue,
	}

	if config.Realtime.URL != "" {
		applier := realtime.NewApplier(log, memory, durable, notifier)
		channel, err := realtime.NewChannel(runtimeCtx, log, healthManager, applier, &config.Realtime)
		if err != nil {
			cancel()
			_ = store.Close()
			return nil, types.WrapError(err, "failed to create realtime channel")
		}
		r.channel = channel
	} else {
		log.Warn("No realtime url configured, push updates disabled")
	}

	// Coming back online drains the queue and restarts the channel.
	tracker.OnTransition(func(online bool) {
		if !online {
			return
		}

		if r.channel != nil {
			r.channel.TriggerReconnect()
		}

		drainCtx, done := context.WithTimeout(r.ctx, drainTimeout)
		defer done()

		if err := queue.Drain(drainCtx); err != nil && err != types.ErrSyncDrainInFlight {
			log.Error("Online drain failed", zap.Error(err))
		}
	})

	if config.Sync.DrainSchedule != "" {
		r.scheduler = cron.New()
		_, err := r.scheduler.AddFunc(config.Sync.DrainSchedule, r.scheduledDrain)
		if err != nil {
			cancel()
			_ = store.Close()
			return nil, types.WrapError(err, "invalid drain schedule")
		}
	}

	log.Info("Data layer runtime constructed",
		zap.String("storage_backend", backend),
		zap.Bool("realtime", r.channel != nil))

	return r, nil
}

func (r *Runtime) Start() error {
	if !atomic.CompareAndSwapInt32(&r.running, 0, 1) {
		return types.ErrAlreadyRunning
	}

	if err := r.metrics.Start(); err != nil && err != types.ErrAlreadyRunning {
		return err
	}

	if err := r.durable.Start(); err != nil {
		return types.WrapError(err, "failed to start durable cache")
	}

	if err := r.queue.Start(); err != nil {
		return types.WrapError(err, "failed to start sync queue")
	}

	if r.channel != nil {
		if err := r.channel.Start(); err != nil {
			return types.WrapError(err, "failed to start realtime channel")
		}
	}

	if r.scheduler != nil {
		r.scheduler.Start()
	}

	r.preload()

	r.logger.Info("Data layer runtime started")
	return nil
}

func (r *Runtime) Stop() error {
	if !atomic.CompareAndSwapInt32(&r.running, 1, 0) {
		return types.ErrNotRunning
	}

	if r.scheduler != nil {
		stopCtx := r.scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(10 * time.Second):
			r.logger.Warn("Scheduler stop timeout")
		}
	}

	if r.channel != nil {
		if err := r.channel.Stop(); err != nil && err != types.ErrNotRunning {
			r.logger.Error("Failed to stop realtime channel", zap.Error(err))
		}
	}

	if err := r.queue.Stop(); err != nil && err != types.ErrNotRunning {
		r.logger.Error("Failed to stop sync queue", zap.Error(err))
	}

	if err := r.durable.Stop(); err != nil && err != types.ErrNotRunning {
		r.logger.Error("Failed to stop durable cache", zap.Error(err))
	}

	if err := r.metrics.Stop(); err != nil && err != types.ErrNotRunning {
		r.logger.Error("Failed to stop metrics", zap.Error(err))
	}

	r.cancel()

	if err := r.store.Close(); err != nil {
		r.logger.Error("Failed to close storage", zap.Error(err))
	}

	if syncer, ok := r.logger.(interface{ Sync() error }); ok {
		_ = syncer.Sync()
	}

	return nil
}

func (r *Runtime) IsRunning() bool {
	return atomic.LoadInt32(&r.running) == 1
}

// Fetch resolves a read through the cache tiers under the endpoint's policy.
func (r *Runtime) Fetch(ctx context.Context, path string) (*fetch.Result, error) {
	return r.orchestrator.Fetch(ctx, path)
}

// Mutate sends a write; failures for sync-eligible categories are queued.
func (r *Runtime) Mutate(ctx context.Context, method, path string, payload []byte) (*fetch.Result, error) {
	return r.orchestrator.Mutate(ctx, method, path, payload)
}

// SetOnline feeds platform connectivity events into the data layer.
func (r *Runtime) SetOnline(online bool) {
	r.tracker.SetOnline(online)
}

func (r *Runtime) IsOnline() bool {
	return r.tracker.IsOnline()
}

// Subscribe registers a consumer context for cache-state events.
func (r *Runtime) Subscribe(id string) <-chan *types.ClientEvent {
	return r.notifier.Subscribe(id)
}

func (r *Runtime) Unsubscribe(id string) {
	r.notifier.Unsubscribe(id)
}

// DrainNow triggers a manual queue drain.
func (r *Runtime) DrainNow(ctx context.Context) error {
	return r.queue.Drain(ctx)
}

func (r *Runtime) QueueDepth() int {
	return r.queue.Len()
}

func (r *Runtime) DeadLetters() []*types.SyncQueueItem {
	return r.queue.DeadLetters()
}

func (r *Runtime) RequeueDeadLetter(id string) error {
	return r.queue.Requeue(id)
}

func (r *Runtime) Performance() types.PerformanceSnapshot {
	return r.perf.Snapshot()
}

func (r *Runtime) ResetMetrics() {
	r.perf.Reset()
}

func (r *Runtime) Health() map[string]types.ComponentHealth {
	return r.health.Snapshot()
}

func (r *Runtime) StorageBackend() string {
	return r.backend
}

// ClearCaches empties both tiers. Administrative action only; the sync
// queue is untouched.
func (r *Runtime) ClearCaches() error {
	r.memory.Clear()
	return r.durable.DeleteAll()
}

func (r *Runtime) scheduledDrain() {
	if !r.tracker.IsOnline() {
		return
	}

	drainCtx, done := context.WithTimeout(r.ctx, drainTimeout)
	defer done()

	if err := r.queue.Drain(drainCtx); err != nil && err != types.ErrSyncDrainInFlight {
		r.logger.Error("Scheduled drain failed", zap.Error(err))
	}
}

// preload warms both tiers from the config-listed endpoints without holding
// up startup. Failures are logged and skipped; a cold cache is not an error.
func (r *Runtime) preload() {
	if len(r.config.Preload) == 0 {
		return
	}

	group, groupCtx := errgroup.WithContext(r.ctx)
	group.SetLimit(4)

	for _, path := range r.config.Preload {
		path := path
		group.Go(func() error {
			preloadCtx, done := context.WithTimeout(groupCtx, r.network.Timeout())
			defer done()

			if err := r.orchestrator.Preload(preloadCtx, path); err != nil {
				r.logger.Warn("Preload failed", zap.String("path", path), zap.Error(err))
				return nil
			}

			r.logger.Debug("Preloaded endpoint", zap.String("path", path))
			return nil
		})
	}

	go func() { _ = group.Wait() }()
}

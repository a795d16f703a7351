package syncqueue

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tavolo/posdata/types"
	"github.com/tavolo/posdata/utils"
)

const DefaultMaxAttempts = 3

// Queue is the durable background sync queue: mutations that failed while
// offline, replayed in FIFO order when connectivity returns. Items live in
// the key-value store so they survive restarts; an item that exhausts its
// retry budget moves to the dead-letter set and is surfaced, never dropped.
type Queue struct {
	logger      types.Logger
	store       types.KVStore
	notifier    types.Notifier
	executor    types.SyncExecutor
	prefix      string
	maxAttempts int

	mu      sync.Mutex
	pending []*types.SyncQueueItem
	dead    []*types.SyncQueueItem

	draining int32
	running  int32

	depthGauge types.Gauge
	deadGauge  types.Gauge
}

func NewQueue(
	logger types.Logger,
	metrics types.MetricsManager,
	store types.KVStore,
	notifier types.Notifier,
	executor types.SyncExecutor,
	config *types.SyncConfig,
) *Queue {
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "sync:"
	}

	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Queue{
		logger:      logger,
		store:       store,
		notifier:    notifier,
		executor:    executor,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		depthGauge:  metrics.Gauge("sync_queue_depth", nil),
		deadGauge:   metrics.Gauge("sync_queue_dead_letters", nil),
	}
}

// Start loads persisted items, restoring FIFO order by enqueue time.
func (q *Queue) Start() error {
	if !atomic.CompareAndSwapInt32(&q.running, 0, 1) {
		return types.ErrAlreadyRunning
	}

	keys, err := q.store.Keys(q.prefix)
	if err != nil {
		atomic.StoreInt32(&q.running, 0)
		return types.WrapError(err, "failed to load sync queue")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, key := range keys {
		raw, exists, err := q.store.Get(key)
		if err != nil || !exists {
			continue
		}

		var item types.SyncQueueItem
		if err := utils.Unmarshal(raw, &item); err != nil || item.ID == "" {
			q.logger.Warn("Dropping corrupted sync queue record", zap.String("key", key))
			_ = q.store.Remove(key)
			continue
		}

		if item.State == types.SyncStateDead {
			q.dead = append(q.dead, &item)
		} else {
			q.pending = append(q.pending, &item)
		}
	}

	sort.SliceStable(q.pending, func(i, j int) bool {
		return q.pending[i].EnqueuedAt.Before(q.pending[j].EnqueuedAt)
	})

	q.updateGaugesUnsafe()

	q.logger.Info("Sync queue loaded",
		zap.Int("pending", len(q.pending)),
		zap.Int("dead", len(q.dead)))

	return nil
}

func (q *Queue) Stop() error {
	if !atomic.CompareAndSwapInt32(&q.running, 1, 0) {
		return types.ErrNotRunning
	}
	return nil
}

func (q *Queue) IsRunning() bool {
	return atomic.LoadInt32(&q.running) == 1
}

func (q *Queue) Enqueue(item *types.SyncQueueItem) error {
	if item == nil || item.Path == "" || item.Operation == "" {
		return types.ErrSyncItemInvalid
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.MaxAttempts <= 0 {
		item.MaxAttempts = q.maxAttempts
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}
	item.State = types.SyncStatePending

	if err := q.persist(item); err != nil {
		return err
	}

	q.mu.Lock()
	q.pending = append(q.pending, item)
	q.updateGaugesUnsafe()
	q.mu.Unlock()

	q.logger.Debug("Sync item enqueued",
		zap.String("id", item.ID),
		zap.String("operation", item.Operation),
		zap.String("path", item.Path))

	return nil
}

// Drain replays a snapshot of the queue in FIFO order. Items enqueued while
// a drain runs wait for the next cycle, which bounds a single drain.
func (q *Queue) Drain(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&q.draining, 0, 1) {
		return types.ErrSyncDrainInFlight
	}
	defer atomic.StoreInt32(&q.draining, 0)

	q.mu.Lock()
	snapshot := make([]*types.SyncQueueItem, len(q.pending))
	copy(snapshot, q.pending)
	q.mu.Unlock()

	if len(snapshot) == 0 {
		return nil
	}

	q.logger.Info("Sync queue drain started", zap.Int("items", len(snapshot)))

	for _, item := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := q.executor(ctx, item); err != nil {
			q.recordFailure(item, err)
			continue
		}

		q.remove(item.ID)
		q.logger.Debug("Sync item replayed", zap.String("id", item.ID))
	}

	return nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) DeadLetters() []*types.SyncQueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*types.SyncQueueItem, len(q.dead))
	copy(out, q.dead)
	return out
}

// Requeue moves a dead-letter item back to the active queue with a fresh
// retry budget. This is the only path out of the dead state.
func (q *Queue) Requeue(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.dead {
		if item.ID != id {
			continue
		}

		q.dead = append(q.dead[:i], q.dead[i+1:]...)

		item.State = types.SyncStatePending
		item.Attempts = 0
		item.LastError = ""
		item.EnqueuedAt = time.Now()

		if err := q.persist(item); err != nil {
			return err
		}

		q.pending = append(q.pending, item)
		q.updateGaugesUnsafe()
		return nil
	}

	return types.ErrSyncItemNotFound
}

func (q *Queue) recordFailure(item *types.SyncQueueItem, cause error) {
	item.Attempts++
	item.LastError = cause.Error()

	if item.Attempts >= item.MaxAttempts {
		q.deadLetter(item)
		return
	}

	if err := q.persist(item); err != nil {
		q.logger.Error("Failed to persist sync item attempt", zap.Error(err))
	}

	q.logger.Warn("Sync item failed, will retry",
		zap.String("id", item.ID),
		zap.Int("attempts", item.Attempts),
		zap.Int("max_attempts", item.MaxAttempts),
		zap.Error(cause))
}

func (q *Queue) deadLetter(item *types.SyncQueueItem) {
	item.State = types.SyncStateDead

	if err := q.persist(item); err != nil {
		q.logger.Error("Failed to persist dead-letter item", zap.Error(err))
	}

	q.mu.Lock()
	q.removeFromPendingUnsafe(item.ID)
	q.dead = append(q.dead, item)
	q.updateGaugesUnsafe()
	q.mu.Unlock()

	q.logger.Error("Sync item moved to dead-letter",
		zap.String("id", item.ID),
		zap.String("operation", item.Operation),
		zap.String("path", item.Path),
		zap.String("last_error", item.LastError))

	if q.notifier != nil {
		q.notifier.Notify(types.EventSyncFailed, item)
	}
}

func (q *Queue) remove(id string) {
	q.mu.Lock()
	q.removeFromPendingUnsafe(id)
	q.updateGaugesUnsafe()
	q.mu.Unlock()

	if err := q.store.Remove(q.prefix + id); err != nil {
		q.logger.Error("Failed to remove sync item record", zap.Error(err))
	}
}

func (q *Queue) removeFromPendingUnsafe(id string) {
	for i, item := range q.pending {
		if item.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

func (q *Queue) persist(item *types.SyncQueueItem) error {
	raw, err := utils.Marshal(item)
	if err != nil {
		return types.WrapError(err, "failed to marshal sync item")
	}

	return q.store.Set(q.prefix+item.ID, raw)
}

func (q *Queue) updateGaugesUnsafe() {
	q.depthGauge.Set(float64(len(q.pending)))
	q.deadGauge.Set(float64(len(q.dead)))
}

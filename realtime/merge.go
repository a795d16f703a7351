package realtime

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tavolo/posdata/types"
	"github.com/tavolo/posdata/utils"
)

// updateRoutes maps a push message type to the cache keys it patches.
var updateRoutes = map[string][]string{
	types.UpdateMenu:     {"/api/menu"},
	types.UpdateOrder:    {"/api/orders", "/api/orders/active"},
	types.UpdateTable:    {"/api/tables"},
	types.UpdateSettings: {"/api/business-settings"},
}

// Applier patches server-pushed deltas directly into both cache tiers,
// bypassing the fetch path. List-shaped payloads are merged element-wise:
// the element whose id matches is updated in place, siblings untouched, and
// an unknown id inserts nothing.
type Applier struct {
	logger   types.Logger
	memory   types.MemoryCache
	durable  types.ResponseCache
	notifier types.Notifier
	now      func() time.Time
}

func NewApplier(logger types.Logger, memory types.MemoryCache, durable types.ResponseCache, notifier types.Notifier) *Applier {
	return &Applier{
		logger:   logger,
		memory:   memory,
		durable:  durable,
		notifier: notifier,
		now:      time.Now,
	}
}

func (a *Applier) Apply(msg *types.UpdateMessage) error {
	keys, known := updateRoutes[msg.Type]
	if !known {
		return types.Errorf(types.ErrChannelMessageInvalid, "unknown update type: %s", msg.Type)
	}

	stampedAt := msg.Timestamp
	if stampedAt.IsZero() {
		stampedAt = a.now()
	}

	for _, key := range keys {
		a.patchKey(key, msg, stampedAt)
	}

	// Consumers get the raw delta regardless of whether any cached
	// collection contained the entity.
	if a.notifier != nil {
		a.notifier.Notify(types.EventRealTimeUpdate, msg)
	}

	return nil
}

func (a *Applier) patchKey(key string, msg *types.UpdateMessage, stampedAt time.Time) {
	entry, ok := a.memory.Get(key)
	if !ok {
		entry, ok = a.durable.Get(key)
	}
	if !ok {
		return
	}

	merged, changed, err := MergePayload(entry.Payload, msg.Payload)
	if err != nil {
		a.logger.Warn("Push delta merge failed",
			zap.String("key", key),
			zap.String("type", msg.Type),
			zap.Error(err))
		return
	}

	if !changed {
		return
	}

	updated := &types.CacheEntry{
		Key:      key,
		Payload:  merged,
		StoredAt: stampedAt,
		Source:   types.SourcePush,
	}

	if err := a.memory.Set(updated); err != nil {
		if err == types.ErrCacheEntryStale {
			a.logger.Debug("Push delta older than cached value, skipped",
				zap.String("key", key))
			return
		}
		a.logger.Warn("Push delta memory write failed", zap.Error(err))
	}

	if err := a.durable.Put(updated); err != nil && err != types.ErrCacheEntryStale {
		a.logger.Warn("Push delta durable write failed", zap.Error(err))
	}
}

// MergePayload merges a delta into a cached payload. Lists merge by element
// id; objects merge shallowly. The second return reports whether anything
// actually changed.
func MergePayload(existing, delta []byte) ([]byte, bool, error) {
	var deltaFields map[string]interface{}
	if err := utils.Unmarshal(delta, &deltaFields); err != nil {
		return nil, false, types.WrapError(err, "delta is not an object")
	}

	var current interface{}
	if err := utils.Unmarshal(existing, &current); err != nil {
		return nil, false, types.WrapError(err, "cached payload is corrupted")
	}

	switch shaped := current.(type) {
	case []interface{}:
		changed := mergeIntoList(shaped, deltaFields)
		if !changed {
			return existing, false, nil
		}
		merged, err := utils.Marshal(shaped)
		return merged, true, err

	case map[string]interface{}:
		for field, value := range deltaFields {
			shaped[field] = value
		}
		merged, err := utils.Marshal(shaped)
		return merged, true, err

	default:
		return nil, false, types.Errorf(types.ErrChannelMessageInvalid, "cached payload is neither list nor object")
	}
}

func mergeIntoList(list []interface{}, delta map[string]interface{}) bool {
	deltaID, hasID := delta["id"]
	if !hasID {
		return false
	}

	want := fmt.Sprint(deltaID)

	for i, raw := range list {
		element, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		if fmt.Sprint(element["id"]) != want {
			continue
		}

		for field, value := range delta {
			element[field] = value
		}
		list[i] = element
		return true
	}

	// Unknown id: the delta does not insert, the list stands as-is.
	return false
}

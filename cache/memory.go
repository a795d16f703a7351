package cache

import (
	"sync"

	"go.uber.org/zap"

	"github.com/tavolo/posdata/types"
)

const DefaultMaxEntries = 100

// Memory is the first cache tier: a bounded map evicted in insertion order.
// This is deliberately FIFO rather than true recency-based LRU; entries are
// small and the bound is what matters on a terminal.
type Memory struct {
	mu         sync.RWMutex
	data       map[string]*types.CacheEntry
	order      []string
	maxEntries int
	evictions  uint64
	logger     types.Logger
}

func NewMemory(logger types.Logger, maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	return &Memory{
		data:       make(map[string]*types.CacheEntry, maxEntries),
		order:      make([]string, 0, maxEntries),
		maxEntries: maxEntries,
		logger:     logger,
	}
}

func (m *Memory) Get(key string) (*types.CacheEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.data[key]
	return entry, exists
}

// Set stores an entry, evicting the oldest-inserted entry when the bound
// would be exceeded. Writes that would regress StoredAt for a key are
// rejected; two push writes with equal timestamps are also rejected so an
// out-of-order redelivery never clobbers the applied one.
func (m *Memory) Set(entry *types.CacheEntry) error {
	if entry == nil || entry.Key == "" {
		return types.ErrCacheKeyEmpty
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.data[entry.Key]
	if exists {
		if existing.StoredAt.After(entry.StoredAt) {
			return types.ErrCacheEntryStale
		}
		if existing.StoredAt.Equal(entry.StoredAt) &&
			entry.Source == types.SourcePush && existing.Source == types.SourcePush {
			return types.ErrCacheEntryStale
		}

		m.data[entry.Key] = entry
		return nil
	}

	if len(m.data) >= m.maxEntries {
		m.evictOldestUnsafe()
	}

	m.data[entry.Key] = entry
	m.order = append(m.order, entry.Key)
	return nil
}

func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; !exists {
		return
	}

	delete(m.data, key)
	m.removeFromOrderUnsafe(key)
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) Clear() {
	m.mu.Lock()
	m.data = make(map[string]*types.CacheEntry, m.maxEntries)
	m.order = m.order[:0]
	m.mu.Unlock()
}

func (m *Memory) Evictions() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.evictions
}

func (m *Memory) evictOldestUnsafe() {
	if len(m.order) == 0 {
		return
	}

	victim := m.order[0]
	m.order = m.order[1:]
	delete(m.data, victim)
	m.evictions++

	m.logger.Debug("Memory cache evicted oldest entry", zap.String("key", victim))
}

func (m *Memory) removeFromOrderUnsafe(key string) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

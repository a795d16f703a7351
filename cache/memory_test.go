package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tavolo/posdata/logger"
	"github.com/tavolo/posdata/types"
)

func testLogger() types.Logger {
	return logger.NewZapWrapper(zap.NewNop())
}

func entryAt(key string, storedAt time.Time, source types.EntrySource) *types.CacheEntry {
	return &types.CacheEntry{
		Key:      key,
		Payload:  []byte(`{"v":1}`),
		StoredAt: storedAt,
		Source:   source,
	}
}

func TestMemorySetGet(t *testing.T) {
	m := NewMemory(testLogger(), 10)

	require.NoError(t, m.Set(entryAt("/api/menu", time.Now(), types.SourceNetwork)))

	got, ok := m.Get("/api/menu")
	require.True(t, ok)
	assert.Equal(t, "/api/menu", got.Key)
}

func TestMemoryRejectsEmptyKey(t *testing.T) {
	m := NewMemory(testLogger(), 10)

	assert.ErrorIs(t, m.Set(&types.CacheEntry{}), types.ErrCacheKeyEmpty)
	assert.ErrorIs(t, m.Set(nil), types.ErrCacheKeyEmpty)
}

func TestMemoryStaleness(t *testing.T) {
	now := time.Now()
	entry := entryAt("/api/menu", now.Add(-6*time.Minute), types.SourceNetwork)

	assert.True(t, entry.IsStale(now, 5*time.Minute))
	assert.False(t, entry.IsStale(now, 10*time.Minute))
}

func TestMemoryEvictsOldestInsertedAtBound(t *testing.T) {
	m := NewMemory(testLogger(), 100)
	base := time.Now()

	for i := 0; i < 101; i++ {
		key := fmt.Sprintf("/api/menu/item/%d", i)
		require.NoError(t, m.Set(entryAt(key, base.Add(time.Duration(i)*time.Millisecond), types.SourceNetwork)))
	}

	assert.Equal(t, 100, m.Len())
	assert.Equal(t, uint64(1), m.Evictions())

	_, ok := m.Get("/api/menu/item/0")
	assert.False(t, ok, "oldest-inserted entry should have been evicted")

	_, ok = m.Get("/api/menu/item/100")
	assert.True(t, ok)
	_, ok = m.Get("/api/menu/item/1")
	assert.True(t, ok)
}

func TestMemoryUpdateDoesNotEvict(t *testing.T) {
	m := NewMemory(testLogger(), 2)
	base := time.Now()

	require.NoError(t, m.Set(entryAt("a", base, types.SourceNetwork)))
	require.NoError(t, m.Set(entryAt("b", base, types.SourceNetwork)))
	require.NoError(t, m.Set(entryAt("a", base.Add(time.Second), types.SourceNetwork)))

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, uint64(0), m.Evictions())
}

func TestMemoryWriteGuardRejectsOlder(t *testing.T) {
	m := NewMemory(testLogger(), 10)
	now := time.Now()

	require.NoError(t, m.Set(entryAt("/api/tables", now, types.SourcePush)))

	err := m.Set(entryAt("/api/tables", now.Add(-time.Second), types.SourceNetwork))
	assert.ErrorIs(t, err, types.ErrCacheEntryStale)

	got, ok := m.Get("/api/tables")
	require.True(t, ok)
	assert.Equal(t, types.SourcePush, got.Source)
}

func TestMemoryWriteGuardEqualTimestamps(t *testing.T) {
	m := NewMemory(testLogger(), 10)
	now := time.Now()

	require.NoError(t, m.Set(entryAt("k", now, types.SourcePush)))

	// Redelivered push with the same timestamp is rejected.
	assert.ErrorIs(t, m.Set(entryAt("k", now, types.SourcePush)), types.ErrCacheEntryStale)

	// A network refresh at the same instant is allowed.
	assert.NoError(t, m.Set(entryAt("k", now, types.SourceNetwork)))
}

func TestMemoryWriteGuardAcceptsNewer(t *testing.T) {
	m := NewMemory(testLogger(), 10)
	now := time.Now()

	require.NoError(t, m.Set(entryAt("k", now, types.SourceNetwork)))
	require.NoError(t, m.Set(entryAt("k", now.Add(time.Second), types.SourcePush)))

	got, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, types.SourcePush, got.Source)
}

func TestMemoryDeleteAndClear(t *testing.T) {
	m := NewMemory(testLogger(), 10)

	require.NoError(t, m.Set(entryAt("a", time.Now(), types.SourceNetwork)))
	require.NoError(t, m.Set(entryAt("b", time.Now(), types.SourceNetwork)))

	m.Delete("a")
	assert.Equal(t, 1, m.Len())

	m.Clear()
	assert.Equal(t, 0, m.Len())
}

package types

import (
	"encoding/json"
	"time"
)

type EntrySource string

const (
	SourceNetwork EntrySource = "network"
	SourcePush    EntrySource = "push"
	SourcePreload EntrySource = "preload"
)

// CacheEntry is one cached response payload plus the metadata needed for
// freshness decisions. StoredAt is monotonically non-decreasing per key.
type CacheEntry struct {
	Key      string          `json:"key"`
	Payload  json.RawMessage `json:"payload"`
	StoredAt time.Time       `json:"stored_at"`
	Source   EntrySource     `json:"source"`
}

func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

func (e *CacheEntry) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(e.StoredAt) > maxAge
}

type MemoryCache interface {
	Get(key string) (*CacheEntry, bool)
	Set(entry *CacheEntry) error
	Delete(key string)
	Len() int
	Clear()
}

// ResponseCache is the durable second tier. Implementations survive process
// restarts and treat malformed stored payloads as misses.
type ResponseCache interface {
	LifecycleManager
	Get(key string) (*CacheEntry, bool)
	Put(entry *CacheEntry) error
	Delete(key string) error
	DeleteAll() error
	DeleteByPrefix(prefix string) error
}

type StrategyKind string

const (
	StrategyCacheFirst   StrategyKind = "cacheFirst"
	StrategyNetworkFirst StrategyKind = "networkFirst"
)

type CachePolicy struct {
	Name           string
	Strategy       StrategyKind
	MaxAge         time.Duration
	BackgroundSync bool
}

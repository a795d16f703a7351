package cache

import (
	"bytes"
	"io"
	"sync/atomic"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"

	"github.com/tavolo/posdata/types"
	"github.com/tavolo/posdata/utils"
)

// compressedMarker prefixes brotli-compressed records. Raw records start
// with '{' so the two are unambiguous.
var compressedMarker = []byte("br:")

// Durable is the second cache tier: full response entries persisted through
// the key-value adapter so they survive restarts. Payloads above the
// configured threshold are compressed.
type Durable struct {
	store             types.KVStore
	logger            types.Logger
	prefix            string
	compressThreshold int
	compressions      types.Counter
	running           int32
}

func NewDurable(logger types.Logger, metrics types.MetricsManager, store types.KVStore, config *types.DurableConfig) *Durable {
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "response:"
	}

	threshold := config.CompressThreshold
	if threshold <= 0 {
		threshold = 4096
	}

	return &Durable{
		store:             store,
		logger:            logger,
		prefix:            prefix,
		compressThreshold: threshold,
		compressions:      metrics.Counter("durable_cache_compressions_total", nil),
	}
}

func (d *Durable) Start() error {
	if !atomic.CompareAndSwapInt32(&d.running, 0, 1) {
		return types.ErrAlreadyRunning
	}
	return nil
}

func (d *Durable) Stop() error {
	if !atomic.CompareAndSwapInt32(&d.running, 1, 0) {
		return types.ErrNotRunning
	}
	return nil
}

func (d *Durable) IsRunning() bool {
	return atomic.LoadInt32(&d.running) == 1
}

// Get returns the stored entry, treating any corruption as a miss.
func (d *Durable) Get(key string) (*types.CacheEntry, bool) {
	raw, exists, err := d.store.Get(d.prefix + key)
	if err != nil || !exists {
		return nil, false
	}

	if bytes.HasPrefix(raw, compressedMarker) {
		reader := brotli.NewReader(bytes.NewReader(raw[len(compressedMarker):]))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			d.logger.Debug("Durable cache entry failed decompression, treating as miss",
				zap.String("key", key))
			return nil, false
		}
		raw = decompressed
	}

	var entry types.CacheEntry
	if err := utils.Unmarshal(raw, &entry); err != nil || entry.Key == "" {
		d.logger.Debug("Durable cache entry corrupted, treating as miss",
			zap.String("key", key))
		return nil, false
	}

	return &entry, true
}

// Put persists an entry. The same write guard as the memory tier applies:
// a record never regresses the stored timestamp for its key.
func (d *Durable) Put(entry *types.CacheEntry) error {
	if entry == nil || entry.Key == "" {
		return types.ErrCacheKeyEmpty
	}

	if existing, exists := d.Get(entry.Key); exists {
		if existing.StoredAt.After(entry.StoredAt) {
			return types.ErrCacheEntryStale
		}
		if existing.StoredAt.Equal(entry.StoredAt) &&
			entry.Source == types.SourcePush && existing.Source == types.SourcePush {
			return types.ErrCacheEntryStale
		}
	}

	raw, err := utils.Marshal(entry)
	if err != nil {
		return types.WrapError(err, "failed to marshal cache entry")
	}

	if len(raw) > d.compressThreshold {
		var buf bytes.Buffer
		buf.Write(compressedMarker)

		writer := brotli.NewWriter(&buf)
		if _, err := writer.Write(raw); err == nil && writer.Close() == nil {
			raw = buf.Bytes()
			d.compressions.Inc()
		}
	}

	return d.store.Set(d.prefix+entry.Key, raw)
}

func (d *Durable) Delete(key string) error {
	return d.store.Remove(d.prefix + key)
}

func (d *Durable) DeleteAll() error {
	return d.DeleteByPrefix("")
}

func (d *Durable) DeleteByPrefix(prefix string) error {
	keys, err := d.store.Keys(d.prefix + prefix)
	if err != nil {
		return types.WrapError(err, "failed to list durable cache keys")
	}

	for _, key := range keys {
		if err := d.store.Remove(key); err != nil {
			return types.WrapError(err, "failed to remove durable cache key")
		}
	}

	return nil
}

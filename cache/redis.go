package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tavolo/posdata/types"
	"github.com/tavolo/posdata/utils"
)

// RedisResponseCache is an alternative durable tier for sites where several
// terminals share a LAN cache node. Same interface, same guard semantics as
// the storage-backed tier.
type RedisResponseCache struct {
	ctx     context.Context
	client  *redis.Client
	logger  types.Logger
	prefix  string
	running int32
}

func NewRedisResponseCache(ctx context.Context, logger types.Logger, config *types.RedisConfig) (*RedisResponseCache, error) {
	host := config.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Port
	if port == 0 {
		port = 6379
	}
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "posdata:response:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisResponseCache{
		ctx:    ctx,
		client: client,
		logger: logger,
		prefix: prefix,
	}, nil
}

func (r *RedisResponseCache) Start() error {
	if !atomic.CompareAndSwapInt32(&r.running, 0, 1) {
		return types.ErrAlreadyRunning
	}

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		atomic.StoreInt32(&r.running, 0)
		return types.WrapError(err, "redis response cache unavailable")
	}

	r.logger.Info("Redis response cache started", zap.String("prefix", r.prefix))
	return nil
}

func (r *RedisResponseCache) Stop() error {
	if !atomic.CompareAndSwapInt32(&r.running, 1, 0) {
		return types.ErrNotRunning
	}
	return r.client.Close()
}

func (r *RedisResponseCache) IsRunning() bool {
	return atomic.LoadInt32(&r.running) == 1
}

func (r *RedisResponseCache) Get(key string) (*types.CacheEntry, bool) {
	raw, err := r.client.Get(r.ctx, r.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}

	var entry types.CacheEntry
	if err := utils.Unmarshal(raw, &entry); err != nil || entry.Key == "" {
		r.logger.Debug("Redis cache entry corrupted, treating as miss", zap.String("key", key))
		return nil, false
	}

	return &entry, true
}

func (r *RedisResponseCache) Put(entry *types.CacheEntry) error {
	if entry == nil || entry.Key == "" {
		return types.ErrCacheKeyEmpty
	}

	if existing, exists := r.Get(entry.Key); exists {
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

	return r.client.Set(r.ctx, r.prefix+entry.Key, raw, 0).Err()
}

func (r *RedisResponseCache) Delete(key string) error {
	return r.client.Del(r.ctx, r.prefix+key).Err()
}

func (r *RedisResponseCache) DeleteAll() error {
	return r.DeleteByPrefix("")
}

func (r *RedisResponseCache) DeleteByPrefix(prefix string) error {
	iter := r.client.Scan(r.ctx, 0, r.prefix+prefix+"*", 100).Iterator()
	for iter.Next(r.ctx) {
		if err := r.client.Del(r.ctx, iter.Val()).Err(); err != nil {
			return types.WrapError(err, "failed to delete redis cache key")
		}
	}

	return types.WrapError(iter.Err(), "redis scan failed")
}

package cache

import (
	"context"

	"github.com/tavolo/posdata/types"
)

const (
	DurableBackendStorage = "storage"
	DurableBackendRedis   = "redis"
)

// NewResponseCache picks the durable tier implementation from config. The
// storage-backed tier is the default; redis serves shared-cache sites.
func NewResponseCache(
	ctx context.Context,
	logger types.Logger,
	metrics types.MetricsManager,
	store types.KVStore,
	config *types.DurableConfig,
) (types.ResponseCache, error) {
	switch config.Backend {
	case "", DurableBackendStorage:
		return NewDurable(logger, metrics, store, config), nil
	case DurableBackendRedis:
		if config.Redis == nil {
			return nil, types.Errorf(types.ErrCacheBackendUnknown, "redis backend selected without redis config")
		}
		return NewRedisResponseCache(ctx, logger, config.Redis)
	default:
		return nil, types.Errorf(types.ErrCacheBackendUnknown, "backend: %s", config.Backend)
	}
}

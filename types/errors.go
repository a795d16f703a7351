package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigInvalidPath    = errors.New("config invalid path")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrCacheKeyEmpty        = errors.New("cache key empty")
	ErrCacheEntryStale      = errors.New("cache entry older than stored value")
	ErrCacheEntryCorrupted  = errors.New("cache entry corrupted")
	ErrCacheBackendUnknown  = errors.New("cache backend unknown")
	ErrCacheOperationFailed = errors.New("cache operation failed")
)

var (
	ErrStorageBackendUnknown = errors.New("storage backend unknown")
	ErrStorageUnavailable    = errors.New("storage backend unavailable")
	ErrStorageKeyNotFound    = errors.New("storage key not found")
	ErrNotSupported          = errors.New("not supported by this backend")
)

var (
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrRequestTimeout     = errors.New("request timeout")
	ErrRequestFailed      = errors.New("request failed")
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")
)

var (
	ErrSyncItemInvalid    = errors.New("sync item invalid")
	ErrSyncItemNotFound   = errors.New("sync item not found")
	ErrSyncItemExhausted  = errors.New("sync item exhausted retry budget")
	ErrSyncDrainInFlight  = errors.New("sync drain already in flight")
	ErrSyncQueueNotLoaded = errors.New("sync queue not loaded")
)

var (
	ErrChannelNotConnected   = errors.New("channel not connected")
	ErrChannelAttemptsSpent  = errors.New("channel reconnect attempts spent")
	ErrChannelConfigInvalid  = errors.New("channel config invalid")
	ErrChannelMessageInvalid = errors.New("channel message invalid")
)

var (
	ErrNotRunning     = errors.New("component not running")
	ErrAlreadyRunning = errors.New("component already running")
	ErrInvalidState   = errors.New("invalid state")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewError(message string) error {
	return errors.New(message)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

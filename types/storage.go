package types

import "context"

// KVStore is the uniform persistence boundary. Backends that only offer
// key-value semantics satisfy this interface alone; SQL-capable backends
// additionally satisfy SQLStore.
type KVStore interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(key string) error
	Keys(prefix string) ([]string, error)
	Clear() error
	Close() error
}

type BatchOperation struct {
	SQL    string
	Params []interface{}
}

type SQLStore interface {
	KVStore
	Query(ctx context.Context, query string, params ...interface{}) ([]map[string]interface{}, error)
	ExecuteBatch(ctx context.Context, ops []BatchOperation) error
}

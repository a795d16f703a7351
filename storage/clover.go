package storage

import (
	"encoding/base64"
	"strings"

	"github.com/ostafen/clover"
	"go.uber.org/zap"

	"github.com/tavolo/posdata/types"
)

const kvCollection = "kv_store"

// CloverStore is the document-backed persistence fallback. It offers
// key-value semantics only; ad-hoc SQL is not available on this backend.
type CloverStore struct {
	db     *clover.DB
	logger types.Logger
}

func NewCloverStore(logger types.Logger, dataDir string) (types.KVStore, error) {
	db, err := clover.Open(dataDir)
	if err != nil {
		return nil, types.WrapError(err, "failed to open clover database")
	}

	exists, err := db.HasCollection(kvCollection)
	if err != nil {
		_ = db.Close()
		return nil, types.WrapError(err, "failed to check kv collection")
	}

	if !exists {
		if err := db.CreateCollection(kvCollection); err != nil {
			_ = db.Close()
			return nil, types.WrapError(err, "failed to create kv collection")
		}
	}

	logger.Info("Clover store opened", zap.String("path", dataDir))

	return &CloverStore{db: db, logger: logger}, nil
}

func (c *CloverStore) Get(key string) ([]byte, bool, error) {
	doc, err := c.db.Query(kvCollection).Where(clover.Field("key").Eq(key)).FindFirst()
	if err != nil {
		return nil, false, types.WrapError(err, "clover get failed")
	}

	if doc == nil {
		return nil, false, nil
	}

	encoded, ok := doc.Get("value").(string)
	if !ok {
		return nil, false, nil
	}

	value, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Corrupted document reads as a miss.
		return nil, false, nil
	}

	return value, true, nil
}

func (c *CloverStore) Set(key string, value []byte) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}

	// Values are base64-encoded; clover documents cannot hold raw bytes.
	encoded := base64.StdEncoding.EncodeToString(value)

	existing, err := c.db.Query(kvCollection).Where(clover.Field("key").Eq(key)).FindFirst()
	if err != nil {
		return types.WrapError(err, "clover lookup failed")
	}

	if existing != nil {
		err = c.db.Query(kvCollection).
			Where(clover.Field("key").Eq(key)).
			Update(map[string]interface{}{"value": encoded})
		return types.WrapError(err, "clover update failed")
	}

	doc := clover.NewDocument()
	doc.Set("key", key)
	doc.Set("value", encoded)

	err = c.db.Insert(kvCollection, doc)
	return types.WrapError(err, "clover insert failed")
}

func (c *CloverStore) Remove(key string) error {
	err := c.db.Query(kvCollection).Where(clover.Field("key").Eq(key)).Delete()
	return types.WrapError(err, "clover remove failed")
}

func (c *CloverStore) Keys(prefix string) ([]string, error) {
	docs, err := c.db.Query(kvCollection).FindAll()
	if err != nil {
		return nil, types.WrapError(err, "clover keys failed")
	}

	var keys []string
	for _, doc := range docs {
		key, ok := doc.Get("key").(string)
		if !ok {
			continue
		}
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

func (c *CloverStore) Clear() error {
	err := c.db.Query(kvCollection).Delete()
	return types.WrapError(err, "clover clear failed")
}

func (c *CloverStore) Close() error {
	return c.db.Close()
}

package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/tavolo/posdata/types"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kv_store_updated_at ON kv_store (updated_at);
`

// SQLiteStore is the full-capability persistence backend: key-value plus
// ad-hoc SQL for desktop deployments.
type SQLiteStore struct {
	db     *sql.DB
	logger types.Logger
	path   string
}

func NewSQLiteStore(logger types.Logger, dataDir string) (types.SQLStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, types.WrapError(err, "failed to create data directory")
	}

	dbPath := filepath.Join(dataDir, "posdata.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, types.WrapError(err, "failed to open sqlite database")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, types.WrapError(err, "sqlite backend unavailable")
	}

	if _, err := db.Exec(kvSchema); err != nil {
		_ = db.Close()
		return nil, types.WrapError(err, "failed to create kv schema")
	}

	// A single writer keeps SQLITE_BUSY out of the hot path.
	db.SetMaxOpenConns(1)

	logger.Info("SQLite store opened", zap.String("path", dbPath))

	return &SQLiteStore{db: db, logger: logger, path: dbPath}, nil
}

func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, types.WrapError(err, "sqlite get failed")
	}

	return value, true, nil
}

func (s *SQLiteStore) Set(key string, value []byte) error {
	if key == "" {
		return types.ErrCacheKeyEmpty
	}

	_, err := s.db.Exec(
		`INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())

	return types.WrapError(err, "sqlite set failed")
}

func (s *SQLiteStore) Remove(key string) error {
	_, err := s.db.Exec("DELETE FROM kv_store WHERE key = ?", key)
	return types.WrapError(err, "sqlite remove failed")
}

func (s *SQLiteStore) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT key FROM kv_store WHERE key LIKE ? ESCAPE '\\' ORDER BY key",
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, types.WrapError(err, "sqlite keys failed")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, types.WrapError(err, "sqlite keys scan failed")
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM kv_store")
	return types.WrapError(err, "sqlite clear failed")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Query runs ad-hoc SQL for callers that know the backend is SQL-capable.
func (s *SQLiteStore) Query(ctx context.Context, query string, params ...interface{}) ([]map[string]interface{}, error) {
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, types.WrapError(err, "sqlite query failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, types.WrapError(err, "sqlite columns failed")
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, types.WrapError(err, "sqlite scan failed")
		}

		row := make(map[string]interface{}, len(columns))
		for i, column := range columns {
			row[column] = values[i]
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

func (s *SQLiteStore) ExecuteBatch(ctx context.Context, ops []types.BatchOperation) error {
	if len(ops) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.WrapError(err, "sqlite batch begin failed")
	}

	for _, op := range ops {
		if _, err := tx.ExecContext(ctx, op.SQL, op.Params...); err != nil {
			_ = tx.Rollback()
			return types.WrapError(err, "sqlite batch operation failed")
		}
	}

	return types.WrapError(tx.Commit(), "sqlite batch commit failed")
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tavolo/posdata/logger"
	"github.com/tavolo/posdata/types"
)

func newTestProber(sqliteErr, cloverErr error) *Prober {
	p := NewProber(logger.NewZapWrapper(zap.NewNop()), nil)

	p.openSQLite = func(types.Logger, string) (types.SQLStore, error) {
		if sqliteErr != nil {
			return nil, sqliteErr
		}
		return fakeSQLStore{NewMemoryStore()}, nil
	}
	p.openClover = func(types.Logger, string) (types.KVStore, error) {
		if cloverErr != nil {
			return nil, cloverErr
		}
		return NewMemoryStore(), nil
	}

	return p
}

type fakeSQLStore struct {
	types.KVStore
}

func (fakeSQLStore) Query(context.Context, string, ...interface{}) ([]map[string]interface{}, error) {
	return nil, nil
}

func (fakeSQLStore) ExecuteBatch(context.Context, []types.BatchOperation) error {
	return nil
}

func TestProbePrefersSQLite(t *testing.T) {
	p := newTestProber(nil, nil)

	store, backend, err := p.Open(&types.StorageConfig{})
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, BackendSQLite, backend)
}

func TestProbeFallsBackToClover(t *testing.T) {
	p := newTestProber(errors.New("cgo unavailable"), nil)

	_, backend, err := p.Open(&types.StorageConfig{})
	require.NoError(t, err)
	assert.Equal(t, BackendClover, backend)
}

func TestProbeFallsBackToMemory(t *testing.T) {
	p := newTestProber(errors.New("cgo unavailable"), errors.New("dir not writable"))

	store, backend, err := p.Open(&types.StorageConfig{})
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, BackendMemory, backend)
}

func TestExplicitBackendFailsWithoutFallback(t *testing.T) {
	p := newTestProber(errors.New("cgo unavailable"), nil)

	_, _, err := p.Open(&types.StorageConfig{Backend: BackendSQLite})
	assert.Error(t, err)
}

func TestExplicitMemoryBackend(t *testing.T) {
	p := newTestProber(nil, nil)

	_, backend, err := p.Open(&types.StorageConfig{Backend: BackendMemory})
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, backend)
}

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.Set("k", []byte("v")))

	got, exists, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryStoreMissingKey(t *testing.T) {
	s := NewMemoryStore()

	_, exists, err := s.Get("nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStoreCopyOnWrite(t *testing.T) {
	s := NewMemoryStore()

	value := []byte("original")
	require.NoError(t, s.Set("k", value))
	value[0] = 'X'

	got, _, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)
}

func TestMemoryStoreKeysByPrefix(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.Set("sync:1", []byte("a")))
	require.NoError(t, s.Set("sync:2", []byte("b")))
	require.NoError(t, s.Set("response:/api/menu", []byte("c")))

	keys, err := s.Keys("sync:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sync:1", "sync:2"}, keys)
}

func TestMemoryStoreRemoveAndClear(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.Set("a", []byte("1")))
	require.NoError(t, s.Set("b", []byte("2")))

	require.NoError(t, s.Remove("a"))
	_, exists, _ := s.Get("a")
	assert.False(t, exists)

	require.NoError(t, s.Clear())
	keys, err := s.Keys("")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

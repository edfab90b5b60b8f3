package badger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassaundra/p2p-chat/internal/core/storage/engine"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestBadgerEngineBasicOps(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Get([]byte("missing"))
	assert.ErrorIs(t, err, engine.ErrKeyNotFound)

	require.NoError(t, e.Put([]byte("k"), []byte("v")))
	v, err := e.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	ok, err := e.Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, e.Delete([]byte("k")))
	_, err = e.Get([]byte("k"))
	assert.ErrorIs(t, err, engine.ErrKeyNotFound)
}

func TestBadgerEngineIterate(t *testing.T) {
	e := newTestEngine(t)

	for _, k := range []string{"s/a", "s/b", "i/x"} {
		require.NoError(t, e.Put([]byte(k), []byte(k)))
	}

	var keys []string
	require.NoError(t, e.Iterate([]byte("s/"), func(key, value []byte) bool {
		keys = append(keys, string(key))
		assert.Equal(t, key, value)
		return true
	}))
	assert.Equal(t, []string{"s/a", "s/b"}, keys)
}

func TestBadgerEnginePersistence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "persist.db")

	e, err := New(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, e.Put([]byte("durable"), []byte("yes")))
	require.NoError(t, e.Close())

	// 重新打开后数据仍在
	e2, err := New(DefaultConfig(dir))
	require.NoError(t, err)
	defer e2.Close()

	v, err := e2.Get([]byte("durable"))
	require.NoError(t, err)
	assert.Equal(t, []byte("yes"), v)
}

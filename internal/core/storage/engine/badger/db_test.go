package badger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-gossiphub/internal/core/storage/engine"
)

// testEngine 创建内存引擎
func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(engine.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, e.Close()) })
	return e
}

func TestEngine_CRUD(t *testing.T) {
	e := testEngine(t)

	require.NoError(t, e.Put([]byte("k"), []byte("v")))
	got, err := e.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	ok, err := e.Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, e.Delete([]byte("k")))
	_, err = e.Get([]byte("k"))
	assert.ErrorIs(t, err, engine.ErrNotFound)

	ok, err = e.Has([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)

	t.Run("empty key", func(t *testing.T) {
		assert.ErrorIs(t, e.Put(nil, []byte("v")), engine.ErrEmptyKey)
		_, err := e.Get(nil)
		assert.ErrorIs(t, err, engine.ErrEmptyKey)
		assert.ErrorIs(t, e.Delete(nil), engine.ErrEmptyKey)
	})
}

func TestEngine_Batch(t *testing.T) {
	e := testEngine(t)
	require.NoError(t, e.Put([]byte("old"), []byte("x")))

	b := e.NewBatch()
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))
	b.Delete([]byte("old"))
	assert.Equal(t, 3, b.Size())

	_, err := e.Get([]byte("a"))
	assert.ErrorIs(t, err, engine.ErrNotFound, "uncommitted batch is invisible")

	require.NoError(t, b.Write())
	assert.Equal(t, 0, b.Size())

	got, err := e.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
	_, err = e.Get([]byte("old"))
	assert.ErrorIs(t, err, engine.ErrNotFound)

	t.Run("reuse after write", func(t *testing.T) {
		b.Put([]byte("c"), []byte("3"))
		require.NoError(t, b.Write())
		ok, err := e.Has([]byte("c"))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("reset discards", func(t *testing.T) {
		b.Put([]byte("d"), []byte("4"))
		b.Reset()
		require.NoError(t, b.Write())
		ok, err := e.Has([]byte("d"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestEngine_PrefixIterator(t *testing.T) {
	e := testEngine(t)
	for _, k := range []string{"s/b", "s/a", "k/x", "t/a"} {
		require.NoError(t, e.Put([]byte(k), []byte("v-"+k)))
	}

	iter := e.NewPrefixIterator([]byte("s/"))
	defer iter.Close()

	var keys, values []string
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Key()))
		values = append(values, string(iter.Value()))
	}
	require.NoError(t, iter.Error())
	assert.Equal(t, []string{"s/a", "s/b"}, keys)
	assert.Equal(t, []string{"v-s/a", "v-s/b"}, values)

	iter.Close()
	assert.False(t, iter.Valid())
	assert.Nil(t, iter.Key())
}

func TestEngine_Closed(t *testing.T) {
	e, err := New(engine.InMemoryConfig())
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.Get([]byte("k"))
	assert.ErrorIs(t, err, engine.ErrClosed)
	assert.ErrorIs(t, e.Put([]byte("k"), nil), engine.ErrClosed)
	assert.ErrorIs(t, e.Sync(), engine.ErrClosed)
}

func TestEngine_Persistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	e, err := New(engine.DefaultConfig(path))
	require.NoError(t, err)
	require.NoError(t, e.Put([]byte("k"), []byte("v")))
	require.NoError(t, e.Sync())
	require.NoError(t, e.Close())

	e, err = New(engine.DefaultConfig(path))
	require.NoError(t, err)
	defer e.Close()
	got, err := e.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, engine.ErrInvalidConfig)

	_, err = New(engine.DefaultConfig(""))
	assert.ErrorIs(t, err, engine.ErrInvalidConfig)
}

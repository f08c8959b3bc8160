package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-gossiphub/internal/core/storage/engine"
	"github.com/dep2p/go-gossiphub/internal/core/storage/engine/badger"
)

func testEngine(t *testing.T) engine.Engine {
	t.Helper()
	e, err := badger.New(engine.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestStore_PrefixIsolation(t *testing.T) {
	eng := testEngine(t)
	a := New(eng, []byte("a/"))
	b := New(eng, []byte("b/"))

	require.NoError(t, a.Put([]byte("k"), []byte("1")))
	require.NoError(t, b.Put([]byte("k"), []byte("2")))

	got, err := a.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	raw, err := eng.Get([]byte("b/k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), raw)

	require.NoError(t, a.Delete([]byte("k")))
	ok, err := a.Has([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = b.Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_JSON(t *testing.T) {
	s := New(testEngine(t), []byte("j/"))

	type entry struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}
	require.NoError(t, s.PutJSON([]byte("x"), entry{Name: "x", N: 3}))

	var got entry
	require.NoError(t, s.GetJSON([]byte("x"), &got))
	assert.Equal(t, entry{Name: "x", N: 3}, got)

	err := s.GetJSON([]byte("missing"), &got)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestStore_Scan(t *testing.T) {
	eng := testEngine(t)
	s := New(eng, []byte("s/"))
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put([]byte(k), []byte(k+k)))
	}
	require.NoError(t, eng.Put([]byte("sx"), []byte("outside")))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, keys)

	var seen []string
	require.NoError(t, s.Scan(func(key, value []byte) bool {
		seen = append(seen, string(key)+"="+string(value))
		return len(seen) < 2
	}))
	assert.Equal(t, []string{"a=aa", "b=bb"}, seen)
}

func TestStore_SharedBatch(t *testing.T) {
	eng := testEngine(t)
	a := New(eng, []byte("a/"))
	b := New(eng, []byte("b/"))

	raw := eng.NewBatch()
	ab, bb := a.Batch(raw), b.Batch(raw)
	ab.Put([]byte("1"), []byte("x"))
	require.NoError(t, bb.PutJSON([]byte("2"), map[string]int{"n": 1}))
	assert.Equal(t, 2, ab.Size())
	require.NoError(t, ab.Write())

	ok, err := a.Has([]byte("1"))
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := b.Get([]byte("2"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(got))
}

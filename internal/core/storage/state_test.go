package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/core/storage/engine"
	"github.com/dep2p/go-gossiphub/internal/core/storage/engine/badger"
)

func testStore(t *testing.T) *StateStore {
	t.Helper()
	eng, err := badger.New(engine.InMemoryConfig())
	require.NoError(t, err)
	s := NewStateStore(eng)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func entry(v string, ts int64) gossip.StateEntry {
	return gossip.StateEntry{Value: json.RawMessage(v), Timestamp: ts}
}

func TestStateStore_SaveLoad(t *testing.T) {
	s := testStore(t)

	t.Run("empty", func(t *testing.T) {
		snap, err := s.Load()
		require.NoError(t, err)
		assert.Empty(t, snap.State)
		assert.Empty(t, snap.Known)
		assert.NotNil(t, snap.Peers)
	})

	require.NoError(t, s.Save(gossip.Snapshot{
		Peers: []string{"b:1"},
		Known: []string{"b:1", "a:1"},
		State: map[string]gossip.StateEntry{
			"x":   entry(`{"n":1}`, 10),
			"y/z": entry(`"s"`, 20),
		},
	}))

	snap, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Peers)
	assert.Equal(t, []string{"a:1", "b:1"}, snap.Known)
	require.Len(t, snap.State, 2)
	assert.JSONEq(t, `{"n":1}`, string(snap.State["x"].Value))
	assert.Equal(t, int64(20), snap.State["y/z"].Timestamp)

	t.Run("save replaces", func(t *testing.T) {
		require.NoError(t, s.Save(gossip.Snapshot{
			Known: []string{"a:1"},
			State: map[string]gossip.StateEntry{"x": entry(`2`, 11)},
		}))
		snap, err := s.Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"a:1"}, snap.Known)
		assert.Equal(t, map[string]gossip.StateEntry{"x": entry(`2`, 11)}, snap.State)
	})
}

func TestStateStore_Corrupted(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.eng.Put([]byte("s/bad"), []byte("{not json")))

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestStateStore_Closed(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Close())

	err := s.Save(gossip.Snapshot{State: map[string]gossip.StateEntry{"x": entry(`1`, 1)}})
	assert.Error(t, err)
}

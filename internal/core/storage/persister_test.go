package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-gossiphub/internal/core/gossip"
)

type fakeSource struct {
	mu    sync.Mutex
	snap  gossip.Snapshot
	err   error
	calls int
}

func (f *fakeSource) GetState() (gossip.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snap, f.err
}

func (f *fakeSource) set(key string, e gossip.StateEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.State[key] = e
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestPersister(t *testing.T) {
	s := testStore(t)
	src := &fakeSource{snap: gossip.Snapshot{Known: []string{"a:1"}, State: map[string]gossip.StateEntry{}}}
	clk := clock.NewMock()
	p := NewPersister(s, src, 30*time.Second, clk)

	p.Start()
	p.Start()

	src.set("k", entry(`1`, 1))
	clk.Add(30 * time.Second)
	require.Eventually(t, func() bool {
		snap, err := s.Load()
		return err == nil && len(snap.State) == 1
	}, 2*time.Second, 5*time.Millisecond)

	src.set("k2", entry(`2`, 2))
	require.NoError(t, p.Stop())

	snap, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, snap.State, 2, "stop saves once more")
	assert.Equal(t, []string{"a:1"}, snap.Known)

	calls := src.callCount()
	clk.Add(time.Minute)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, calls, src.callCount(), "no saves after stop")
}

func TestPersister_SourceError(t *testing.T) {
	s := testStore(t)
	src := &fakeSource{err: errors.New("closed")}
	p := NewPersister(s, src, time.Second, clock.NewMock())
	assert.Error(t, p.Stop())
}

package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/core/storage/engine"
	"github.com/dep2p/go-gossiphub/internal/core/storage/kv"
)

var (
	statePrefix = []byte("s/")
	knownPrefix = []byte("k/")
)

// StateStore gossip 快照的持久化存储
type StateStore struct {
	eng   engine.Engine
	state *kv.Store
	known *kv.Store

	mu sync.Mutex
}

// NewStateStore 在引擎上创建状态存储，Close 时关闭引擎
func NewStateStore(eng engine.Engine) *StateStore {
	return &StateStore{
		eng:   eng,
		state: kv.New(eng, statePrefix),
		known: kv.New(eng, knownPrefix),
	}
}

// Save 用快照替换已保存的内容，一次批量提交
func (s *StateStore) Save(snap gossip.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.eng.NewBatch()
	sb, kb := s.state.Batch(batch), s.known.Batch(batch)

	if err := s.deleteMissing(s.state, sb, func(k string) bool { _, ok := snap.State[k]; return ok }); err != nil {
		batch.Reset()
		return err
	}
	knownSet := make(map[string]struct{}, len(snap.Known))
	for _, addr := range snap.Known {
		knownSet[addr] = struct{}{}
	}
	if err := s.deleteMissing(s.known, kb, func(k string) bool { _, ok := knownSet[k]; return ok }); err != nil {
		batch.Reset()
		return err
	}

	for key, entry := range snap.State {
		if err := sb.PutJSON([]byte(key), entry); err != nil {
			batch.Reset()
			return fmt.Errorf("storage: encode %q: %w", key, err)
		}
	}
	for addr := range knownSet {
		kb.Put([]byte(addr), nil)
	}
	return batch.Write()
}

func (s *StateStore) deleteMissing(store *kv.Store, b *kv.Batch, keep func(string) bool) error {
	keys, err := store.Keys()
	if err != nil {
		return fmt.Errorf("storage: scan %s: %w", store.Prefix(), err)
	}
	for _, k := range keys {
		if !keep(string(k)) {
			b.Delete(k)
		}
	}
	return nil
}

// Load 读取已保存的快照，Peers 总为空
func (s *StateStore) Load() (gossip.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := gossip.Snapshot{
		Peers: []string{},
		Known: []string{},
		State: map[string]gossip.StateEntry{},
	}

	var decodeErr error
	err := s.state.Scan(func(key, value []byte) bool {
		var entry gossip.StateEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			decodeErr = fmt.Errorf("%w: state %q: %v", ErrCorrupted, key, err)
			return false
		}
		snap.State[string(key)] = entry
		return true
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return gossip.Snapshot{}, err
	}

	if err := s.known.Scan(func(key, _ []byte) bool {
		snap.Known = append(snap.Known, string(key))
		return true
	}); err != nil {
		return gossip.Snapshot{}, err
	}
	return snap, nil
}

// Close 同步并关闭引擎
func (s *StateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.eng.Sync(); err != nil && !engine.IsClosed(err) {
		_ = s.eng.Close()
		return err
	}
	return s.eng.Close()
}

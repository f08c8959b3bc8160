package storage

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/util/logger"
)

var log = logger.Logger("storage")

// Source 快照来源
type Source interface {
	GetState() (gossip.Snapshot, error)
}

// Persister 周期保存快照，停止时再保存一次
type Persister struct {
	store    *StateStore
	source   Source
	interval time.Duration
	clock    clock.Clock

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPersister 创建 Persister，clk 为 nil 时使用系统时钟
func NewPersister(store *StateStore, source Source, interval time.Duration, clk clock.Clock) *Persister {
	if clk == nil {
		clk = clock.New()
	}
	return &Persister{store: store, source: source, interval: interval, clock: clk}
}

// Start 开始周期保存
func (p *Persister) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})

	ticker := p.clock.Ticker(p.interval)
	p.wg.Add(1)
	go func(stop <-chan struct{}) {
		defer p.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := p.SaveNow(); err != nil {
					log.Warn("保存状态失败", "err", err)
				}
			}
		}
	}(p.stopCh)
}

// Stop 停止周期保存并做最后一次保存
func (p *Persister) Stop() error {
	p.mu.Lock()
	if p.running {
		p.running = false
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()
	return p.SaveNow()
}

// SaveNow 立即保存一次
func (p *Persister) SaveNow() error {
	snap, err := p.source.GetState()
	if err != nil {
		return err
	}
	if err := p.store.Save(snap); err != nil {
		return err
	}
	log.Debug("状态已保存", "keys", len(snap.State), "known", len(snap.Known))
	return nil
}

package gossiphub

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-gossiphub/internal/core/signaling"
	"github.com/dep2p/go-gossiphub/internal/util/logger"
)

var statsLog = logger.Logger("stats")

// StatsKeyPrefix 中心统计在复制状态中的键前缀
const StatsKeyPrefix = "hub:"

type stateUpdater interface {
	Self() string
	Update(key string, value any) error
}

type statsSource interface {
	Stats() (signaling.Stats, error)
}

// statsPublisher 周期性地把中心统计写入 gossip 复制状态
type statsPublisher struct {
	node  stateUpdater
	hub   statsSource
	clock clock.Clock

	mu      sync.Mutex
	running bool
	ticker  *clock.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func newStatsPublisher(node stateUpdater, hub statsSource, clk clock.Clock) *statsPublisher {
	if clk == nil {
		clk = clock.New()
	}
	return &statsPublisher{node: node, hub: hub, clock: clk}
}

// StatsKey 返回某个地址的统计键
func StatsKey(address string) string {
	return StatsKeyPrefix + address
}

// Start 启动周期发布，interval 不大于 0 时不启动
func (p *statsPublisher) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.ticker = p.clock.Ticker(interval)

	p.wg.Add(1)
	go p.loop(p.ticker, p.stopCh)
}

// Stop 停止周期发布
func (p *statsPublisher) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.ticker.Stop()
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *statsPublisher) loop(ticker *clock.Ticker, stop <-chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := p.publish(); err != nil {
				statsLog.Debug("发布中心统计失败", "err", err)
			}
		}
	}
}

// publish 写入一次统计
func (p *statsPublisher) publish() error {
	stats, err := p.hub.Stats()
	if err != nil {
		return err
	}
	return p.node.Update(StatsKey(p.node.Self()), stats)
}

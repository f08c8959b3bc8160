package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/core/signaling"
	"github.com/dep2p/go-gossiphub/internal/util/logger"
)

var log = logger.Logger("metrics")

// GossipSource gossip 统计来源
type GossipSource interface {
	Stats() (gossip.Stats, error)
}

// HubSource 信令中心统计来源
type HubSource interface {
	Stats() (signaling.Stats, error)
}

// Option 采集器选项
type Option func(*Collector)

// WithClock 使用指定时钟
func WithClock(clk clock.Clock) Option {
	return func(c *Collector) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithStartTime 指定启动时间，默认为创建时间
func WithStartTime(t time.Time) Option {
	return func(c *Collector) { c.start = t }
}

// Collector 按需读取两个数据源的采集器
//
// 每次 Snapshot 或 Prometheus 采集都会重新读取数据源；
// 数据源已关闭时按零值处理。
type Collector struct {
	namespace string
	gossip    GossipSource
	hub       HubSource
	clock     clock.Clock
	start     time.Time
	descs     *descSet

	mu           sync.Mutex
	messageRate  *RateMeter
	byteRate     *RateMeter
	lastMessages uint64
	lastBytes    uint64

	// 周期快照日志
	ticker  *clock.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector 创建采集器，g 与 h 可以为 nil
func NewCollector(namespace string, g GossipSource, h HubSource, opts ...Option) *Collector {
	c := &Collector{
		namespace: namespace,
		gossip:    g,
		hub:       h,
		clock:     clock.New(),
		descs:     newDescSet(namespace),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.start.IsZero() {
		c.start = c.clock.Now()
	}
	c.messageRate = NewRateMeter(c.clock)
	c.byteRate = NewRateMeter(c.clock)
	return c
}

// Snapshot 读取数据源并返回快照
func (c *Collector) Snapshot() Snapshot {
	var (
		gs gossip.Stats
		hs signaling.Stats
	)
	if c.gossip != nil {
		s, err := c.gossip.Stats()
		if err != nil {
			log.Debug("读取 gossip 统计失败", "err", err)
		} else {
			gs = s
		}
	}
	if c.hub != nil {
		s, err := c.hub.Stats()
		if err != nil {
			log.Debug("读取信令统计失败", "err", err)
		} else {
			hs = s
		}
	}
	if hs.Topics == nil {
		hs.Topics = map[string]int{}
	}

	snap := Aggregate(gs, hs, c.start, c.clock.Now())

	c.mu.Lock()
	if snap.Messages > c.lastMessages {
		c.messageRate.Add(snap.Messages - c.lastMessages)
		c.lastMessages = snap.Messages
	}
	if snap.Bytes > c.lastBytes {
		c.byteRate.Add(snap.Bytes - c.lastBytes)
		c.lastBytes = snap.Bytes
	}
	c.mu.Unlock()

	snap.MessageRate = c.messageRate.Rate()
	snap.ByteRate = c.byteRate.Rate()
	return snap
}

// Render 采集一次并渲染为文本格式
func (c *Collector) Render() (string, error) {
	return Render(c.Snapshot(), c.namespace)
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.descs.describe(ch)
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.descs.collect(ch, c.Snapshot())
}

// ============================================================================
//                              快照日志
// ============================================================================

// Start 启动周期性快照日志，interval 不大于 0 时不启动
func (c *Collector) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.ticker = c.clock.Ticker(interval)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.snapshotLoop(c.ticker, c.stopCh)

	log.Info("指标快照日志已启动", "interval", interval)
}

// Stop 停止快照日志
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.ticker.Stop()
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
	log.Info("指标快照日志已停止")
}

func (c *Collector) snapshotLoop(ticker *clock.Ticker, stop <-chan struct{}) {
	defer c.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.logSnapshot(c.Snapshot())
		}
	}
}

func (c *Collector) logSnapshot(s Snapshot) {
	log.Info("指标快照",
		"uptime", s.Uptime.Truncate(time.Second),
		// gossip
		"peers", s.Gossip.Peers,
		"known", s.Gossip.Known,
		"keys", s.Gossip.Keys,
		// hub
		"clients", s.Hub.Connections,
		"topics", len(s.Hub.Topics),
		// 流量
		"messages", s.Messages,
		"bytes", s.Bytes,
		"byteRate", formatRate(s.ByteRate),
	)
}

// formatRate 格式化速率
func formatRate(bps float64) string {
	switch {
	case bps < 1024:
		return fmt.Sprintf("%.2f B/s", bps)
	case bps < 1024*1024:
		return fmt.Sprintf("%.2f KB/s", bps/1024)
	default:
		return fmt.Sprintf("%.2f MB/s", bps/1024/1024)
	}
}

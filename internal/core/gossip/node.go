package gossip

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"

	"github.com/dep2p/go-gossiphub/internal/core/eventbus"
	"github.com/dep2p/go-gossiphub/internal/core/transport"
	"github.com/dep2p/go-gossiphub/internal/util/logger"
)

var log = logger.Logger("gossip")

// ============================================================================
//                              选项
// ============================================================================

// Option 节点选项
type Option func(*Node)

// WithClock 使用指定时钟（测试中传入 clock.Mock）
func WithClock(clk clock.Clock) Option {
	return func(n *Node) {
		if clk != nil {
			n.clock = clk
		}
	}
}

// WithEventBus 把节点事件发布到总线
func WithEventBus(bus *eventbus.Bus) Option {
	return func(n *Node) { n.bus = bus }
}

// ============================================================================
//                              Node
// ============================================================================

// Node gossip 复制节点
type Node struct {
	cfg    Config
	clock  clock.Clock
	dialer transport.Dialer
	bus    *eventbus.Bus

	events   chan func()
	done     chan struct{}
	loopDone chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once

	stats counters

	// 以下字段只在事件循环中访问
	peers     map[string]*peerEntry
	known     map[string]struct{}
	state     map[string]StateEntry
	dialing   map[string]*dialAttempt
	retries   *RetryTable
	forgotten *lru.Cache[string, time.Time]
	debounce  *Debouncer
	syncTimer *clock.Timer
	seq       uint64
	stopped   bool
}

// counters 运行计数，可在任意 goroutine 读取
type counters struct {
	connections atomic.Uint64
	messagesIn  atomic.Uint64
	messagesOut atomic.Uint64
	bytesIn     atomic.Uint64
	bytesOut    atomic.Uint64
}

// New 创建节点并启动事件循环
//
// 周期同步与种子连接在 Start 之后开始。
func New(cfg Config, dialer transport.Dialer, opts ...Option) (*Node, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	forgotten, err := lru.New[string, time.Time](cfg.ForgetCacheSize)
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:       cfg,
		clock:     clock.New(),
		dialer:    dialer,
		events:    make(chan func(), 256),
		done:      make(chan struct{}),
		loopDone:  make(chan struct{}),
		peers:     make(map[string]*peerEntry),
		known:     map[string]struct{}{cfg.Self: {}},
		state:     make(map[string]StateEntry),
		dialing:   make(map[string]*dialAttempt),
		retries:   NewRetryTable(),
		forgotten: forgotten,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.debounce = NewDebouncer(n.clock, cfg.DebounceDelay, n.post, n.runSync)

	go n.loop()
	return n, nil
}

// Self 返回本节点地址
func (n *Node) Self() string {
	return n.cfg.Self
}

// ============================================================================
//                              事件循环
// ============================================================================

func (n *Node) loop() {
	defer close(n.loopDone)
	for {
		select {
		case fn := <-n.events:
			fn()
		case <-n.done:
			return
		}
	}
}

// post 把 fn 投递到事件循环，节点已销毁时返回 false
func (n *Node) post(fn func()) bool {
	select {
	case <-n.done:
		return false
	default:
	}
	select {
	case n.events <- fn:
		return true
	case <-n.done:
		return false
	}
}

// call 在事件循环中执行 fn 并等待完成
func (n *Node) call(fn func()) error {
	ran := make(chan struct{})
	if !n.post(func() { fn(); close(ran) }) {
		return ErrNodeClosed
	}
	select {
	case <-ran:
		return nil
	case <-n.loopDone:
		select {
		case <-ran:
			return nil
		default:
			return ErrNodeClosed
		}
	}
}

func (n *Node) nextSeq() uint64 {
	n.seq++
	return n.seq
}

func (n *Node) now() time.Time {
	return n.clock.Now()
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 开启周期同步并连接种子与已恢复的已知地址
func (n *Node) Start(_ context.Context) error {
	var err error
	n.startOnce.Do(func() {
		err = n.call(func() {
			n.armSyncTimer()
			for _, addr := range sortedKeys(n.known) {
				n.connect(addr)
			}
			for _, addr := range n.cfg.Seeds {
				n.connect(addr)
			}
		})
		if err == nil {
			log.Info("gossip 节点已启动", "self", n.cfg.Self, "seeds", len(n.cfg.Seeds))
		}
	})
	return err
}

// Destroy 取消所有定时器、关闭所有连接并清空状态，可重复调用
func (n *Node) Destroy() error {
	var err error
	n.stopOnce.Do(func() {
		if cerr := n.call(func() { err = n.teardown() }); cerr != nil {
			err = cerr
		}
		close(n.done)
		<-n.loopDone
		log.Info("gossip 节点已销毁", "self", n.cfg.Self)
	})
	return err
}

func (n *Node) teardown() error {
	n.stopped = true
	n.debounce.Stop()
	if n.syncTimer != nil {
		n.syncTimer.Stop()
		n.syncTimer = nil
	}
	n.retries.CancelAll()
	for addr, a := range n.dialing {
		a.stop()
		delete(n.dialing, addr)
	}

	var errs error
	for addr, p := range n.peers {
		p.stopPing()
		errs = multierr.Append(errs, p.conn.Close())
		delete(n.peers, addr)
	}
	n.known = make(map[string]struct{})
	n.state = make(map[string]StateEntry)
	n.forgotten.Purge()
	return errs
}

// ============================================================================
//                              公开操作
// ============================================================================

// Connect 连接 address
//
// 对自身、已连接、连接中或退避中的地址是空操作。显式连接会清除该地址的遗忘标记。
func (n *Node) Connect(address string) error {
	if address == "" {
		return ErrInvalidAddress
	}
	if address == n.cfg.Self {
		return ErrSelfConnect
	}
	return n.call(func() {
		n.forgotten.Remove(address)
		n.connect(address)
	})
}

// Accept 绑定一条由 address 主动发起的入站连接
//
// 同一地址同时存在两条连接时，保留由两者中较小地址发起的那一条；
// 返回 ErrDuplicatePeer 时调用方负责关闭 conn。
func (n *Node) Accept(conn transport.Conn, address string) error {
	if address == "" {
		return ErrInvalidAddress
	}
	if address == n.cfg.Self {
		return ErrSelfConnect
	}
	var err error
	if cerr := n.call(func() { err = n.accept(conn, address) }); cerr != nil {
		return cerr
	}
	return err
}

// Update 写入本地状态并触发同步
func (n *Node) Update(key string, value any) error {
	if key == "" {
		return ErrEmptyKey
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return n.call(func() { n.update(key, raw) })
}

// Sync 请求一次（防抖后的）同步
func (n *Node) Sync() error {
	return n.call(n.sync)
}

// Broadcast 向所有对端发送一条消息
func (n *Node) Broadcast(msg Message) error {
	var err error
	if cerr := n.call(func() { err = n.broadcast(msg) }); cerr != nil {
		return cerr
	}
	return err
}

// RemovePeer 移除对端并立即尝试重连
func (n *Node) RemovePeer(address string) error {
	return n.call(func() { n.removePeer(address) })
}

// GetState 返回当前快照
func (n *Node) GetState() (Snapshot, error) {
	var snap Snapshot
	err := n.call(func() { snap = n.snapshot() })
	return snap, err
}

// Restore 合并持久化的快照：状态按 LWW 合并，已知地址在 Start 时连接
func (n *Node) Restore(snap Snapshot) error {
	return n.call(func() {
		if snap.State != nil {
			Merge(n.state, snap.State)
		}
		for _, addr := range snap.Known {
			if addr != "" {
				n.known[addr] = struct{}{}
			}
		}
	})
}

// Stats 节点统计
type Stats struct {
	Peers    int `json:"peers"`
	Known    int `json:"known"`
	Keys     int `json:"keys"`
	Retrying int `json:"retrying"`

	Connections uint64 `json:"connections"`
	MessagesIn  uint64 `json:"messagesIn"`
	MessagesOut uint64 `json:"messagesOut"`
	BytesIn     uint64 `json:"bytesIn"`
	BytesOut    uint64 `json:"bytesOut"`
}

// Stats 返回节点统计
func (n *Node) Stats() (Stats, error) {
	var s Stats
	err := n.call(func() {
		s.Peers = len(n.peers)
		s.Known = len(n.known)
		s.Keys = len(n.state)
		s.Retrying = n.retries.Len()
	})
	s.Connections = n.stats.connections.Load()
	s.MessagesIn = n.stats.messagesIn.Load()
	s.MessagesOut = n.stats.messagesOut.Load()
	s.BytesIn = n.stats.bytesIn.Load()
	s.BytesOut = n.stats.bytesOut.Load()
	return s, err
}

func (n *Node) snapshot() Snapshot {
	state := make(map[string]StateEntry, len(n.state))
	for k, v := range n.state {
		state[k] = v
	}
	return Snapshot{
		Peers: sortedKeys(n.peers),
		Known: sortedKeys(n.known),
		State: state,
	}
}

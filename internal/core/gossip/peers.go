package gossip

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-gossiphub/internal/core/transport"
)

// ============================================================================
//                              连接状态
// ============================================================================

// peerEntry 一条打开的连接
type peerEntry struct {
	conn     transport.Conn
	gen      uint64
	inbound  bool
	since    time.Time
	lastSeen time.Time
	ping     *clock.Timer
}

func (p *peerEntry) stopPing() {
	if p.ping != nil {
		p.ping.Stop()
		p.ping = nil
	}
}

// dialAttempt 一次进行中的拨号
type dialAttempt struct {
	seq     uint64
	cancel  context.CancelFunc
	timeout *clock.Timer
}

func (a *dialAttempt) stop() {
	a.timeout.Stop()
	a.cancel()
}

// peerHandler 把连接事件投递回事件循环
type peerHandler struct {
	n    *Node
	addr string
	gen  uint64
}

func (h *peerHandler) OnMessage(payload []byte) {
	h.n.post(func() { h.n.onMessage(h.addr, h.gen, payload) })
}

func (h *peerHandler) OnPong() {
	h.n.post(func() { h.n.onPong(h.addr, h.gen) })
}

func (h *peerHandler) OnClose(err error) {
	h.n.post(func() { h.n.onPeerClosed(h.addr, h.gen, err) })
}

// peerFor 返回与 gen 对应的连接，连接已被替换或移除时返回 nil
func (n *Node) peerFor(addr string, gen uint64) *peerEntry {
	p, ok := n.peers[addr]
	if !ok || p.gen != gen {
		return nil
	}
	return p
}

// ============================================================================
//                              连接与重试
// ============================================================================

func (n *Node) connect(addr string) {
	if n.stopped || addr == "" || addr == n.cfg.Self {
		return
	}
	if _, ok := n.peers[addr]; ok {
		return
	}
	if _, ok := n.dialing[addr]; ok {
		return
	}
	if n.retries.Pending(addr) {
		return
	}
	if n.retries.Count(addr) >= n.cfg.MaxRetries {
		n.forget(addr)
		return
	}

	n.known[addr] = struct{}{}
	seq := n.nextSeq()
	ctx, cancel := context.WithCancel(context.Background())
	timeout := n.clock.AfterFunc(n.cfg.RetryDelay, func() {
		n.post(func() { n.onDialTimeout(addr, seq) })
	})
	n.dialing[addr] = &dialAttempt{seq: seq, cancel: cancel, timeout: timeout}
	log.Debug("发起连接", "peer", addr, "retry", n.retries.Count(addr))

	go func() {
		conn, err := n.dialer.Dial(ctx, addr)
		if !n.post(func() { n.onDialResult(addr, seq, conn, err) }) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (n *Node) onDialTimeout(addr string, seq uint64) {
	a, ok := n.dialing[addr]
	if !ok || a.seq != seq {
		return
	}
	a.stop()
	delete(n.dialing, addr)
	if _, connected := n.peers[addr]; connected {
		return
	}
	log.Debug("连接超时", "peer", addr)
	n.scheduleRetry(addr, n.retries.Count(addr))
}

func (n *Node) onDialResult(addr string, seq uint64, conn transport.Conn, err error) {
	a, ok := n.dialing[addr]
	if !ok || a.seq != seq {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	a.stop()
	delete(n.dialing, addr)

	if err != nil {
		if _, connected := n.peers[addr]; connected {
			return
		}
		log.Debug("连接失败", "peer", addr, "err", err)
		n.scheduleRetry(addr, n.retries.Count(addr))
		return
	}

	if existing, connected := n.peers[addr]; connected && !n.replaceDuplicate(addr, existing, false) {
		_ = conn.Close()
		return
	}
	n.retries.Reset(addr)
	n.bindConnection(conn, addr, false)
}

// scheduleRetry 在 RetryDelay * 2^count 之后重新连接
func (n *Node) scheduleRetry(addr string, count int) {
	if n.stopped {
		return
	}
	delay := Backoff(n.cfg.RetryDelay, count)
	seq := n.nextSeq()
	timer := n.clock.AfterFunc(delay, func() {
		n.post(func() { n.onRetryFire(addr, seq) })
	})
	n.retries.Arm(addr, RetryState{Count: count, Seq: seq, timer: timer})

	log.Debug("安排重连", "peer", addr, "count", count, "delay", delay)
	n.bus.Emit(EventRetryScheduled, RetryEvent{Address: addr, Count: count, Delay: delay})
}

func (n *Node) onRetryFire(addr string, seq uint64) {
	if _, ok := n.retries.Fire(addr, seq); !ok {
		return
	}
	n.connect(addr)
}

// forget 重试耗尽：从已知集合移除
func (n *Node) forget(addr string) {
	delete(n.known, addr)
	n.retries.Reset(addr)
	if n.cfg.ForgetTTL > 0 {
		n.forgotten.Add(addr, n.now())
	}
	log.Info("重试耗尽，遗忘地址", "peer", addr, "maxRetries", n.cfg.MaxRetries)
	n.bus.Emit(EventPeerForgotten, PeerEvent{Address: addr})
}

// tombstoned 地址是否仍处于遗忘屏蔽期
func (n *Node) tombstoned(addr string) bool {
	at, ok := n.forgotten.Peek(addr)
	if !ok {
		return false
	}
	if n.now().Sub(at) < n.cfg.ForgetTTL {
		return true
	}
	n.forgotten.Remove(addr)
	return false
}

// ============================================================================
//                              绑定与移除
// ============================================================================

func (n *Node) accept(conn transport.Conn, addr string) error {
	if n.stopped {
		return ErrNodeClosed
	}
	if existing, ok := n.peers[addr]; ok && !n.replaceDuplicate(addr, existing, true) {
		return ErrDuplicatePeer
	}
	// 入站连接由较小地址发起时它就是最终保留的连接，进行中的拨号作废
	if a, ok := n.dialing[addr]; ok && addr < n.cfg.Self {
		a.stop()
		delete(n.dialing, addr)
	}
	n.retries.Reset(addr)
	n.bindConnection(conn, addr, true)
	return nil
}

// replaceDuplicate 同一地址出现第二条连接时决定是否用新连接替换旧连接，替换时移除旧连接
//
// 两端保留同一条连接：由双方地址中较小者发起的那条。
// 替换时旧连接被关闭且不触发重连。
func (n *Node) replaceDuplicate(addr string, existing *peerEntry, newInbound bool) bool {
	initiator := func(inbound bool) string {
		if inbound {
			return addr
		}
		return n.cfg.Self
	}
	winner := n.cfg.Self
	if addr < winner {
		winner = addr
	}
	if initiator(existing.inbound) == winner || initiator(newInbound) != winner {
		return false
	}
	existing.stopPing()
	delete(n.peers, addr)
	_ = existing.conn.Close()
	log.Debug("替换重复连接", "peer", addr, "inbound", newInbound)
	return true
}

// bindConnection 登记一条已打开的连接并立即发送完整快照
func (n *Node) bindConnection(conn transport.Conn, addr string, inbound bool) {
	now := n.now()
	p := &peerEntry{
		conn:     conn,
		gen:      n.nextSeq(),
		inbound:  inbound,
		since:    now,
		lastSeen: now,
	}
	n.peers[addr] = p
	n.known[addr] = struct{}{}
	n.forgotten.Remove(addr)
	n.armPing(addr, p)
	n.stats.connections.Add(1)

	go conn.Serve(&peerHandler{n: n, addr: addr, gen: p.gen})

	log.Info("对端已连接", "peer", addr, "inbound", inbound)
	n.bus.Emit(EventPeerConnected, PeerEvent{Address: addr, Inbound: inbound})

	data, err := encodeMessage(Message{Type: TypeState, Data: n.snapshot()}, now)
	if err != nil {
		log.Error("编码快照失败", "err", err)
		return
	}
	n.sendTo(addr, p, data)
}

func (n *Node) armPing(addr string, p *peerEntry) {
	gen := p.gen
	p.ping = n.clock.AfterFunc(n.cfg.SyncInterval, func() {
		n.post(func() { n.onPingTick(addr, gen) })
	})
}

func (n *Node) onPingTick(addr string, gen uint64) {
	p := n.peerFor(addr, gen)
	if p == nil {
		return
	}
	if err := p.conn.Ping(); err != nil {
		log.Debug("探测失败", "peer", addr, "err", err)
		n.removePeer(addr)
		return
	}
	n.armPing(addr, p)
}

func (n *Node) onPong(addr string, gen uint64) {
	if p := n.peerFor(addr, gen); p != nil {
		p.lastSeen = n.now()
	}
}

func (n *Node) onPeerClosed(addr string, gen uint64, err error) {
	if n.peerFor(addr, gen) == nil {
		return
	}
	if err != nil {
		log.Debug("连接出错", "peer", addr, "err", err)
	}
	n.removePeer(addr)
}

// removePeer 清理连接并立即重连，已知集合不变
func (n *Node) removePeer(addr string) {
	p, ok := n.peers[addr]
	if !ok {
		return
	}
	p.stopPing()
	delete(n.peers, addr)
	_ = p.conn.Close()

	log.Info("移除对端", "peer", addr)
	n.bus.Emit(EventPeerRemoved, PeerEvent{Address: addr, Inbound: p.inbound})
	n.connect(addr)
}

// sendTo 发送失败按连接错误处理
func (n *Node) sendTo(addr string, p *peerEntry, data []byte) bool {
	if err := p.conn.Send(data); err != nil {
		log.Debug("发送失败", "peer", addr, "err", err)
		n.removePeer(addr)
		return false
	}
	n.stats.messagesOut.Add(1)
	n.stats.bytesOut.Add(uint64(len(data)))
	return true
}

package transport

import (
	"sync"
	"sync/atomic"
)

// ============================================================================
// PipeConn 内存连接
// ============================================================================

type frameKind int

const (
	frameMessage frameKind = iota
	framePong
)

type frame struct {
	kind    frameKind
	payload []byte
}

// pipeShared 一对 PipeConn 共享的关闭状态
type pipeShared struct {
	done      chan struct{}
	closeOnce sync.Once
}

// PipeConn 进程内的一端连接
//
// 消息投递到对端的接收队列，由对端的 Serve 读出；Ping 在对端未静默时
// 向本端投递一个 pong。任意一端 Close 会同时结束两端。
type PipeConn struct {
	remote string
	peer   *PipeConn
	inbox  chan frame
	shared *pipeShared

	served  chan struct{}
	serveMu sync.Once

	muted   atomic.Bool
	sendErr atomic.Pointer[error]

	mu   sync.Mutex
	sent [][]byte
}

var _ Conn = (*PipeConn)(nil)

// Pipe 创建一对互连的内存连接
//
// a.RemoteAddr() 为 bName，b.RemoteAddr() 为 aName。
func Pipe(aName, bName string) (a, b *PipeConn) {
	shared := &pipeShared{done: make(chan struct{})}
	a = &PipeConn{remote: bName, inbox: make(chan frame, 1024), shared: shared, served: make(chan struct{})}
	b = &PipeConn{remote: aName, inbox: make(chan frame, 1024), shared: shared, served: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// Send 投递到对端
func (c *PipeConn) Send(payload []byte) error {
	if errp := c.sendErr.Load(); errp != nil {
		return *errp
	}
	if c.Closed() {
		return ErrClosed
	}
	msg := append([]byte(nil), payload...)

	select {
	case c.peer.inbox <- frame{kind: frameMessage, payload: msg}:
	default:
		return ErrBufferFull
	}

	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

// Ping 对端未静默时产生一个 pong
func (c *PipeConn) Ping() error {
	if c.Closed() {
		return ErrClosed
	}
	if c.peer.muted.Load() {
		return nil
	}
	select {
	case c.inbox <- frame{kind: framePong}:
	default:
	}
	return nil
}

// Close 关闭两端
func (c *PipeConn) Close() error {
	c.shared.closeOnce.Do(func() { close(c.shared.done) })
	return nil
}

// RemoteAddr 返回对端名称
func (c *PipeConn) RemoteAddr() string {
	return c.remote
}

// Serve 读取接收队列直到连接关闭
func (c *PipeConn) Serve(h Handler) {
	c.serveMu.Do(func() { close(c.served) })
	for {
		select {
		case f := <-c.inbox:
			c.dispatch(h, f)
		case <-c.shared.done:
			h.OnClose(nil)
			return
		}
	}
}

func (c *PipeConn) dispatch(h Handler, f frame) {
	switch f.kind {
	case frameMessage:
		h.OnMessage(f.payload)
	case framePong:
		h.OnPong()
	}
}

// SetMuted 静默后本端不再应答对端的 Ping
func (c *PipeConn) SetMuted(muted bool) {
	c.muted.Store(muted)
}

// SetSendError 之后的 Send 都返回 err，nil 恢复正常
func (c *PipeConn) SetSendError(err error) {
	if err == nil {
		c.sendErr.Store(nil)
		return
	}
	c.sendErr.Store(&err)
}

// Closed 连接是否已关闭
func (c *PipeConn) Closed() bool {
	select {
	case <-c.shared.done:
		return true
	default:
		return false
	}
}

// Served 在 Serve 开始后关闭
func (c *PipeConn) Served() <-chan struct{} {
	return c.served
}

// Sent 返回本端成功发送的消息副本
func (c *PipeConn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// ============================================================================
// Recorder
// ============================================================================

// Recorder 记录收到的消息，作为测试或调试用的 Handler
type Recorder struct {
	mu       sync.Mutex
	messages [][]byte
	pongs    int
	closed   bool
	err      error
}

var _ Handler = (*Recorder)(nil)

func (r *Recorder) OnMessage(payload []byte) {
	r.mu.Lock()
	r.messages = append(r.messages, payload)
	r.mu.Unlock()
}

func (r *Recorder) OnPong() {
	r.mu.Lock()
	r.pongs++
	r.mu.Unlock()
}

func (r *Recorder) OnClose(err error) {
	r.mu.Lock()
	r.closed, r.err = true, err
	r.mu.Unlock()
}

// Messages 返回收到的消息
func (r *Recorder) Messages() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.messages...)
}

// Pongs 返回收到的 pong 数
func (r *Recorder) Pongs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pongs
}

// Closed 是否已收到关闭事件
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Err 返回关闭原因
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

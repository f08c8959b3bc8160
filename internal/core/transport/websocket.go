package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-gossiphub/internal/util/logger"
)

var log = logger.Logger("transport")

// Options WebSocket 连接参数
type Options struct {
	// WriteTimeout 单次写超时
	WriteTimeout time.Duration
	// HandshakeTimeout 握手超时
	HandshakeTimeout time.Duration
	// MaxMessageSize 最大入站消息字节数，0 表示不限
	// 超限的帧会导致连接被关闭
	MaxMessageSize int64
	// SendQueueSize 发送队列长度，队列满时 Send 返回 ErrBufferFull
	SendQueueSize int
}

// DefaultOptions 返回默认参数
func DefaultOptions() Options {
	return Options{
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		SendQueueSize:    256,
	}
}

// ============================================================================
// WSConn
// ============================================================================

// WSConn 基于 WebSocket 的 Conn 实现
//
// 所有写操作由独立的写 goroutine 串行完成：Send 只把消息放入有界队列，
// Ping 只登记一次待发的 ping，Close 只通知写 goroutine 收尾，三者都不阻塞调用方。
// 写超时或写失败时连接被关闭，读循环随之以 OnClose 结束。
// 对端的 ping 由 gorilla 默认处理器自动应答。
type WSConn struct {
	ws     *websocket.Conn
	remote string
	opts   Options

	outbound chan []byte
	pings    chan struct{}
	done     chan struct{}

	closeOnce sync.Once
	closed    atomic.Bool
}

var _ Conn = (*WSConn)(nil)

// closeGrace 关闭帧的写超时，也是 Close 之后底层连接存活的上限
const closeGrace = time.Second

// NewWSConn 包装一个已完成握手的 WebSocket 连接并启动写 goroutine
func NewWSConn(ws *websocket.Conn, remote string, opts Options) *WSConn {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultOptions().WriteTimeout
	}
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = DefaultOptions().SendQueueSize
	}
	if opts.MaxMessageSize > 0 {
		ws.SetReadLimit(opts.MaxMessageSize)
	}
	c := &WSConn{
		ws:       ws,
		remote:   remote,
		opts:     opts,
		outbound: make(chan []byte, opts.SendQueueSize),
		pings:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// Send 将一条文本消息放入发送队列，不等待写出
//
// 队列已满返回 ErrBufferFull。
func (c *WSConn) Send(payload []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	select {
	case <-c.done:
		return ErrClosed
	case c.outbound <- payload:
		return nil
	default:
		return fmt.Errorf("transport: send to %s: %w", c.remote, ErrBufferFull)
	}
}

// Ping 登记一次 ping，尚未写出的 ping 会被合并
func (c *WSConn) Ping() error {
	if c.closed.Load() {
		return ErrClosed
	}
	select {
	case c.pings <- struct{}{}:
	default:
	}
	return nil
}

// Close 通知写 goroutine 发送关闭帧并关闭底层连接，可重复调用
//
// 队列中尚未写出的消息被丢弃。写 goroutine 卡在慢对端上时，
// 底层连接在 closeGrace 后被强制关闭。
func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		time.AfterFunc(closeGrace, func() { _ = c.ws.Close() })
	})
	return nil
}

// writeLoop 写 goroutine
func (c *WSConn) writeLoop() {
	for {
		select {
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
			_ = c.ws.Close()
			return

		case payload := <-c.outbound:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug("写入失败，关闭连接", "remote", c.remote, "err", err)
				_ = c.Close()
			}

		case <-c.pings:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				log.Debug("ping 写入失败，关闭连接", "remote", c.remote, "err", err)
				_ = c.Close()
			}
		}
	}
}

// RemoteAddr 返回对端地址
func (c *WSConn) RemoteAddr() string {
	return c.remote
}

// Serve 读循环
func (c *WSConn) Serve(h Handler) {
	c.ws.SetPongHandler(func(string) error {
		h.OnPong()
		return nil
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			_ = c.Close()
			h.OnClose(err)
			return
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			h.OnMessage(data)
		}
	}
}

// ============================================================================
// WSDialer
// ============================================================================

// WSDialer 通过 WebSocket 连接其他节点的 gossip 端点
type WSDialer struct {
	self   string
	path   string
	opts   Options
	dialer *websocket.Dialer
}

var _ Dialer = (*WSDialer)(nil)

// NewWSDialer 创建拨号器
//
// self 为本节点宣告的地址，随握手头发送；path 为对端的 gossip 端点路径。
func NewWSDialer(self, path string, opts Options) *WSDialer {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultOptions().HandshakeTimeout
	}
	return &WSDialer{
		self: self,
		path: path,
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

// Dial 连接 address（host:port）
func (d *WSDialer) Dial(ctx context.Context, address string) (Conn, error) {
	if address == "" {
		return nil, ErrEmptyAddress
	}
	u := url.URL{Scheme: "ws", Host: address, Path: d.path}

	header := http.Header{}
	header.Set(HeaderGossipAddress, d.self)

	ws, resp, err := d.dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, fmt.Errorf("transport: dial %s: handshake status %d: %w", address, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("transport: dial %s: %w", address, err)
	}
	log.Debug("连接已建立", "remote", address)
	return NewWSConn(ws, address, d.opts), nil
}

// NewUpgrader 创建服务端使用的 Upgrader
func NewUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
}

// Package transport 定义 gossip 节点与信令中心共用的连接抽象
//
// 上层只通过 Conn 收发消息：Send 发送一条完整消息，Ping 发起存活探测，
// Serve 在调用方的 goroutine 中阻塞读取，把 message / pong / close 事件
// 交给 Handler。Serve 返回前恰好调用一次 OnClose。
//
// 实现：
//   - WSConn / WSDialer：基于 gorilla/websocket
//   - PipeConn：进程内内存连接，用于测试与单进程组网
package transport

import (
	"context"
	"errors"
)

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrClosed 连接已关闭
	ErrClosed = errors.New("transport: connection closed")
	// ErrBufferFull 发送队列已满，对端读取过慢
	ErrBufferFull = errors.New("transport: receive buffer full")
	// ErrEmptyAddress 地址为空
	ErrEmptyAddress = errors.New("transport: empty address")
)

// HeaderGossipAddress 主动连接方在握手时宣告自己的 gossip 地址
const HeaderGossipAddress = "X-Gossip-Address"

// ============================================================================
// 接口
// ============================================================================

// Conn 一条逻辑连接
type Conn interface {
	// Send 发送一条消息，不阻塞调用方；失败意味着连接不可用
	Send(payload []byte) error

	// Ping 发起一次存活探测，应答通过 Handler.OnPong 送达
	Ping() error

	// Close 关闭连接，可重复调用
	Close() error

	// RemoteAddr 对端地址
	RemoteAddr() string

	// Serve 阻塞读取直到连接结束
	Serve(h Handler)
}

// Handler 连接事件接收方
//
// 回调运行在读 goroutine 中，实现方不应在回调里执行耗时操作。
type Handler interface {
	OnMessage(payload []byte)
	OnPong()
	// OnClose 连接结束，err 为 nil 表示正常关闭
	OnClose(err error)
}

// Dialer 主动建立连接
//
// Dial 成功即连接已打开，失败对应一次连接错误。
type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}

// DialerFunc 以函数形式实现 Dialer
type DialerFunc func(ctx context.Context, address string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, address string) (Conn, error) {
	return f(ctx, address)
}

// HandlerFuncs 以函数形式实现 Handler，未设置的回调被忽略
type HandlerFuncs struct {
	Message func(payload []byte)
	Pong    func()
	Close   func(err error)
}

var _ Handler = HandlerFuncs{}

func (h HandlerFuncs) OnMessage(payload []byte) {
	if h.Message != nil {
		h.Message(payload)
	}
}

func (h HandlerFuncs) OnPong() {
	if h.Pong != nil {
		h.Pong()
	}
}

func (h HandlerFuncs) OnClose(err error) {
	if h.Close != nil {
		h.Close(err)
	}
}

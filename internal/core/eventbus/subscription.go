package eventbus

import (
	"sync"
	"sync/atomic"
)

// matchKind 订阅所在的分发表
type matchKind int

const (
	matchExact matchKind = iota
	matchPrefix
	matchGlobal
)

// Subscription 一个订阅
type Subscription struct {
	bus     *Bus
	pattern string
	kind    matchKind
	key     string

	out       chan Event
	closeOnce sync.Once
	dropped   atomic.Int64
}

// Out 返回事件通道，订阅关闭后通道关闭
func (s *Subscription) Out() <-chan Event {
	return s.out
}

// Pattern 返回订阅模式
func (s *Subscription) Pattern() string {
	return s.pattern
}

// Dropped 返回因缓冲区满而丢弃的事件数
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close 取消订阅，可重复调用
func (s *Subscription) Close() error {
	s.bus.remove(s)
	return nil
}

// offer 非阻塞投递，调用方持有总线读锁
func (s *Subscription) offer(ev Event) bool {
	select {
	case s.out <- ev:
		return true
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			log.Warn("订阅缓冲区已满，丢弃事件", "pattern", s.pattern, "event", ev.Name, "dropped", n)
		}
		return false
	}
}

// closeChan 关闭通道，调用方持有总线写锁
func (s *Subscription) closeChan() {
	s.closeOnce.Do(func() { close(s.out) })
}

// ============================================================================
// 订阅选项
// ============================================================================

type settings struct {
	buffer int
}

func defaultSettings() settings {
	return settings{buffer: 64}
}

// Option 订阅选项
type Option func(*settings)

// WithBuffer 设置订阅缓冲区大小
func WithBuffer(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.buffer = n
		}
	}
}

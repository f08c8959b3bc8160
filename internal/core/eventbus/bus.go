package eventbus

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dep2p/go-gossiphub/internal/util/logger"
)

var log = logger.Logger("eventbus")

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrClosed 事件总线已关闭
	ErrClosed = errors.New("eventbus: closed")
	// ErrInvalidPattern 无效的订阅模式
	ErrInvalidPattern = errors.New("eventbus: invalid pattern")
)

// ============================================================================
// Event
// ============================================================================

// Event 一次事件
type Event struct {
	// Name 事件名
	Name string
	// Payload 事件数据
	Payload any
	// At 发射时间
	At time.Time
}

// ============================================================================
// Bus 实现
// ============================================================================

// Bus 事件总线
//
// 分发表由精确表、前缀表与全局列表组成。
type Bus struct {
	mu     sync.RWMutex
	exact  map[string][]*Subscription
	prefix map[string][]*Subscription
	global []*Subscription
	closed bool
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{
		exact:  make(map[string][]*Subscription),
		prefix: make(map[string][]*Subscription),
	}
}

// parsePattern 解析订阅模式
func parsePattern(pattern string) (kind matchKind, key string, err error) {
	switch {
	case pattern == "*":
		return matchGlobal, "", nil
	case strings.HasSuffix(pattern, ":*"):
		key = strings.TrimSuffix(pattern, ":*")
		if key == "" || strings.Contains(key, "*") {
			return 0, "", ErrInvalidPattern
		}
		return matchPrefix, key, nil
	case pattern == "" || strings.Contains(pattern, "*"):
		return 0, "", ErrInvalidPattern
	default:
		return matchExact, pattern, nil
	}
}

// Subscribe 订阅匹配 pattern 的事件
func (b *Bus) Subscribe(pattern string, opts ...Option) (*Subscription, error) {
	kind, key, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}

	settings := defaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	sub := &Subscription{
		bus:     b,
		pattern: pattern,
		kind:    kind,
		key:     key,
		out:     make(chan Event, settings.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	switch kind {
	case matchExact:
		b.exact[key] = append(b.exact[key], sub)
	case matchPrefix:
		b.prefix[key] = append(b.prefix[key], sub)
	case matchGlobal:
		b.global = append(b.global, sub)
	}
	return sub, nil
}

// Emit 发射事件，返回成功投递的订阅数
//
// nil 总线上的 Emit 是空操作，组件可以在没有总线时直接调用。
func (b *Bus) Emit(name string, payload any) int {
	if b == nil {
		return 0
	}
	ev := Event{Name: name, Payload: payload, At: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}

	delivered := 0
	deliver := func(subs []*Subscription) {
		for _, s := range subs {
			if s.offer(ev) {
				delivered++
			}
		}
	}

	deliver(b.exact[name])
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			deliver(b.prefix[name[:i]])
		}
	}
	deliver(b.global)
	return delivered
}

// Close 关闭总线及所有订阅
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	closeAll := func(subs []*Subscription) {
		for _, s := range subs {
			s.closeChan()
		}
	}
	for _, subs := range b.exact {
		closeAll(subs)
	}
	for _, subs := range b.prefix {
		closeAll(subs)
	}
	closeAll(b.global)
	b.exact, b.prefix, b.global = nil, nil, nil
	return nil
}

// remove 从分发表移除订阅
func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	switch s.kind {
	case matchExact:
		b.exact[s.key] = without(b.exact[s.key], s)
		if len(b.exact[s.key]) == 0 {
			delete(b.exact, s.key)
		}
	case matchPrefix:
		b.prefix[s.key] = without(b.prefix[s.key], s)
		if len(b.prefix[s.key]) == 0 {
			delete(b.prefix, s.key)
		}
	case matchGlobal:
		b.global = without(b.global, s)
	}
	s.closeChan()
}

func without(subs []*Subscription, s *Subscription) []*Subscription {
	out := subs[:0:0]
	for _, x := range subs {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}

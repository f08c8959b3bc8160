package gossip

import "time"

// stopper 可取消的定时器
type stopper interface {
	Stop() bool
}

// RetryState 一个等待重连的地址
type RetryState struct {
	// Count 本次等待对应的重试序号，延迟为 RetryDelay * 2^Count
	Count int
	// Seq 定时器序号，触发时必须匹配
	Seq uint64

	timer stopper
}

// RetryTable 重连退避表
//
// pending 记录正在等待的重连，counts 记录每个地址已经消耗的重试次数。
// 所有转换（Arm / Cancel / Fire / Reset）都是对这两张表的直接操作，
// 由事件循环串行调用。
type RetryTable struct {
	pending map[string]RetryState
	counts  map[string]int
}

// NewRetryTable 创建空表
func NewRetryTable() *RetryTable {
	return &RetryTable{
		pending: make(map[string]RetryState),
		counts:  make(map[string]int),
	}
}

// Backoff 第 count 次重试的延迟
func Backoff(base time.Duration, count int) time.Duration {
	if count < 0 {
		count = 0
	}
	if count > 20 {
		count = 20
	}
	return base << uint(count)
}

// Count 地址已消耗的重试次数
func (t *RetryTable) Count(addr string) int {
	return t.counts[addr]
}

// Pending 地址是否有等待中的重连
func (t *RetryTable) Pending(addr string) bool {
	_, ok := t.pending[addr]
	return ok
}

// Len 等待中的重连数
func (t *RetryTable) Len() int {
	return len(t.pending)
}

// Arm 记录一次等待中的重连，替换并停止旧的定时器
func (t *RetryTable) Arm(addr string, st RetryState) {
	if old, ok := t.pending[addr]; ok && old.timer != nil {
		old.timer.Stop()
	}
	t.pending[addr] = st
	t.counts[addr] = st.Count
}

// Cancel 取消等待中的重连，计数保留
func (t *RetryTable) Cancel(addr string) bool {
	st, ok := t.pending[addr]
	if !ok {
		return false
	}
	if st.timer != nil {
		st.timer.Stop()
	}
	delete(t.pending, addr)
	return true
}

// Fire 定时器到期：序号匹配时移除等待项并把计数加一
//
// 返回新的计数；序号不匹配说明该定时器已被取消或替换。
func (t *RetryTable) Fire(addr string, seq uint64) (int, bool) {
	st, ok := t.pending[addr]
	if !ok || st.Seq != seq {
		return 0, false
	}
	delete(t.pending, addr)
	next := st.Count + 1
	t.counts[addr] = next
	return next, true
}

// Reset 取消等待并清空计数（连接成功或地址被遗忘）
func (t *RetryTable) Reset(addr string) {
	t.Cancel(addr)
	delete(t.counts, addr)
}

// CancelAll 取消全部等待并清空计数
func (t *RetryTable) CancelAll() {
	for addr := range t.pending {
		t.Cancel(addr)
	}
	t.counts = make(map[string]int)
}

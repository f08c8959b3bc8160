package metrics

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ============================================================================
// RateMeter - 速率计算器
// ============================================================================

const rateWindow = 60

// RateMeter 速率计算器（基于滑动窗口）
//
// 使用 60 个 1 秒桶来计算最近 60 秒的平均速率。
type RateMeter struct {
	mu       sync.Mutex
	clock    clock.Clock
	buckets  [rateWindow]uint64
	lastIdx  int       // 当前桶索引
	lastTime time.Time // 当前桶的起始时间
}

// NewRateMeter 创建速率计算器
func NewRateMeter(clk clock.Clock) *RateMeter {
	if clk == nil {
		clk = clock.New()
	}
	return &RateMeter{
		clock:    clk,
		lastTime: clk.Now(),
	}
}

// Add 添加到当前桶
func (r *RateMeter) Add(n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advance(r.clock.Now())
	r.buckets[r.lastIdx] += n
}

// Rate 返回平均速率（每秒）
func (r *RateMeter) Rate() float64 {
	return float64(r.Total()) / rateWindow
}

// Total 返回窗口内的总量
func (r *RateMeter) Total() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.advance(r.clock.Now())
	var total uint64
	for _, v := range r.buckets {
		total += v
	}
	return total
}

// Reset 重置速率计算器
func (r *RateMeter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buckets = [rateWindow]uint64{}
	r.lastIdx = 0
	r.lastTime = r.clock.Now()
}

// advance 把窗口移动到 now，清空经过的桶
func (r *RateMeter) advance(now time.Time) {
	seconds := int(now.Sub(r.lastTime) / time.Second)
	if seconds <= 0 {
		return
	}
	if seconds >= rateWindow {
		// 超过 60 秒没有数据
		r.buckets = [rateWindow]uint64{}
		r.lastIdx = 0
		r.lastTime = now
		return
	}
	for i := 0; i < seconds; i++ {
		r.lastIdx = (r.lastIdx + 1) % rateWindow
		r.buckets[r.lastIdx] = 0
	}
	r.lastTime = r.lastTime.Add(time.Duration(seconds) * time.Second)
}

package gossip

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Debouncer 尾沿防抖
//
// 窗口内的多次 Trigger 合并为一次 fn 调用，在最后一次 Trigger 之后
// delay 执行。定时器回调通过 post 回到所属的事件循环，Trigger 与 Stop
// 也必须在同一个循环中调用。
type Debouncer struct {
	clock clock.Clock
	delay time.Duration
	post  func(func()) bool
	fn    func()

	timer   *clock.Timer
	seq     uint64
	pending bool
}

// NewDebouncer 创建防抖器
func NewDebouncer(clk clock.Clock, delay time.Duration, post func(func()) bool, fn func()) *Debouncer {
	return &Debouncer{clock: clk, delay: delay, post: post, fn: fn}
}

// Trigger 重新开始计时
func (d *Debouncer) Trigger() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending = true
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.post(func() { d.fire(seq) })
	})
}

// Stop 取消尚未执行的调用
func (d *Debouncer) Stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	d.pending = false
}

// Pending 是否有尚未执行的调用
func (d *Debouncer) Pending() bool {
	return d.pending
}

func (d *Debouncer) fire(seq uint64) {
	if !d.pending || seq != d.seq {
		return
	}
	d.pending = false
	d.timer = nil
	d.fn()
}

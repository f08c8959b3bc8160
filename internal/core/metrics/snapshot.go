package metrics

import (
	"time"

	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/core/signaling"
)

// Snapshot 指标快照
//
// Connections、Messages、Bytes 为两个数据源的累计值之和，单调不减；
// Uptime 由 StartTime 推导。Gossip 与 Hub 保留各自的原始统计，用于渲染仪表指标。
type Snapshot struct {
	StartTime time.Time     `json:"startTime"`
	Uptime    time.Duration `json:"uptime"`

	Connections uint64 `json:"connections"`
	Messages    uint64 `json:"messages"`
	Bytes       uint64 `json:"bytes"`

	// MessageRate 与 ByteRate 为最近 60 秒的平均速率，只有 Collector 会填充
	MessageRate float64 `json:"messageRate"`
	ByteRate    float64 `json:"byteRate"`

	Gossip gossip.Stats    `json:"gossip"`
	Hub    signaling.Stats `json:"hub"`
}

// Aggregate 聚合两个数据源的统计，不修改任何一方
func Aggregate(g gossip.Stats, h signaling.Stats, start, now time.Time) Snapshot {
	uptime := now.Sub(start)
	if uptime < 0 {
		uptime = 0
	}
	return Snapshot{
		StartTime:   start,
		Uptime:      uptime,
		Connections: g.Connections + h.TotalConnections,
		Messages:    g.MessagesIn + g.MessagesOut + h.MessagesIn + h.MessagesOut,
		Bytes:       g.BytesIn + g.BytesOut + h.BytesIn + h.BytesOut,
		Gossip:      g,
		Hub:         h,
	}
}

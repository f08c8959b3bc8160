package gossip

import "time"

// 事件名
const (
	EventPeerConnected  = "gossip:peer:connected"
	EventPeerRemoved    = "gossip:peer:removed"
	EventPeerForgotten  = "gossip:peer:forgotten"
	EventRetryScheduled = "gossip:retry:scheduled"
	EventStateMerged    = "gossip:state:merged"
	EventSync           = "gossip:sync"
)

// PeerEvent 对端连接变化
type PeerEvent struct {
	Address string
	Inbound bool
}

// RetryEvent 安排了一次重连
type RetryEvent struct {
	Address string
	Count   int
	Delay   time.Duration
}

// MergeEvent 合并了来自对端的状态
type MergeEvent struct {
	From string
	Keys []string
}

// SyncEvent 一次同步
type SyncEvent struct {
	Peers   int
	Evicted []string
}

package gossip

import "errors"

var (
	// ErrNodeClosed 节点已销毁
	ErrNodeClosed = errors.New("gossip: node closed")
	// ErrInvalidAddress 地址为空
	ErrInvalidAddress = errors.New("gossip: invalid address")
	// ErrSelfConnect 连接自身
	ErrSelfConnect = errors.New("gossip: cannot connect to self")
	// ErrDuplicatePeer 该地址已有连接
	ErrDuplicatePeer = errors.New("gossip: duplicate peer connection")
	// ErrEmptyKey 状态 key 为空
	ErrEmptyKey = errors.New("gossip: empty state key")
	// ErrMalformedMessage 无法解析的消息
	ErrMalformedMessage = errors.New("gossip: malformed message")
)

package gossip

import (
	"encoding/json"
	"fmt"
	"time"
)

// TypeState 状态同步消息
const TypeState = "state"

// Kind 消息类别
type Kind int

const (
	// KindUnknown 未知类型，忽略
	KindUnknown Kind = iota
	// KindState 完整状态快照
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindState:
		return TypeState
	default:
		return "unknown"
	}
}

// Envelope 线上消息格式
//
//	{"type": "state", "data": {...}, "timestamp": 1700000000000}
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Kind 返回消息类别
func (e Envelope) Kind() Kind {
	switch e.Type {
	case TypeState:
		return KindState
	default:
		return KindUnknown
	}
}

// Message 待广播的消息
type Message struct {
	Type string
	Data any
}

// encodeMessage 序列化消息并打上发送时间
func encodeMessage(msg Message, now time.Time) ([]byte, error) {
	data, err := json.Marshal(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("gossip: encode %s: %w", msg.Type, err)
	}
	return json.Marshal(Envelope{Type: msg.Type, Data: data, Timestamp: now.UnixMilli()})
}

// decodeEnvelope 解析入站消息，缺少 type 视为格式错误
func decodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return env, nil
}

// decodeSnapshot 解析 state 消息的数据体
func decodeSnapshot(data json.RawMessage) (Snapshot, error) {
	var snap Snapshot
	if len(data) == 0 {
		return snap, fmt.Errorf("%w: empty state", ErrMalformedMessage)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return snap, nil
}

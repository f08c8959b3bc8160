package signaling

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 消息类型
const (
	TypeWelcome     = "welcome"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePublish     = "publish"
	TypeBroadcast   = "broadcast"
	TypeSignal      = "signal"
)

// Kind 入站消息类别
type Kind int

const (
	// KindUnknown 未知类型，忽略
	KindUnknown Kind = iota
	KindSubscribe
	KindUnsubscribe
	KindPublish
	KindBroadcast
	KindSignal
)

func (k Kind) String() string {
	switch k {
	case KindSubscribe:
		return TypeSubscribe
	case KindUnsubscribe:
		return TypeUnsubscribe
	case KindPublish:
		return TypePublish
	case KindBroadcast:
		return TypeBroadcast
	case KindSignal:
		return TypeSignal
	default:
		return "unknown"
	}
}

func kindOf(typ string) Kind {
	switch typ {
	case TypeSubscribe:
		return KindSubscribe
	case TypeUnsubscribe:
		return KindUnsubscribe
	case TypePublish:
		return KindPublish
	case TypeBroadcast:
		return KindBroadcast
	case TypeSignal:
		return KindSignal
	default:
		return KindUnknown
	}
}

// Inbound 解析后的入站消息
//
// 按 Kind 使用对应字段：订阅类使用 Topics，publish 使用 Topic，
// broadcast 使用 Channel，signal 使用 Target；Data 原样转发。
type Inbound struct {
	Kind    Kind
	Type    string
	Topics  []string
	Topic   string
	Channel string
	Target  string
	Data    json.RawMessage
}

type inboundWire struct {
	Type    string          `json:"type"`
	Topics  []string        `json:"topics"`
	Topic   string          `json:"topic"`
	Channel string          `json:"channel"`
	Target  string          `json:"target"`
	Data    json.RawMessage `json:"data"`
}

// ParseInbound 解析客户端消息
//
// 未知类型返回 KindUnknown 而不是错误；缺少必需字段视为格式错误。
func ParseInbound(raw []byte) (Inbound, error) {
	var w inboundWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if w.Type == "" {
		return Inbound{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	msg := Inbound{Kind: kindOf(w.Type), Type: w.Type, Data: w.Data}
	switch msg.Kind {
	case KindSubscribe, KindUnsubscribe:
		topics := w.Topics
		if len(topics) == 0 && w.Topic != "" {
			topics = []string{w.Topic}
		}
		for _, t := range topics {
			if t = strings.TrimSpace(t); t != "" {
				msg.Topics = append(msg.Topics, t)
			}
		}
		if len(msg.Topics) == 0 {
			return Inbound{}, fmt.Errorf("%w: %s without topics", ErrMalformedMessage, w.Type)
		}
	case KindPublish:
		if w.Topic == "" {
			return Inbound{}, fmt.Errorf("%w: publish without topic", ErrMalformedMessage)
		}
		msg.Topic = w.Topic
	case KindBroadcast:
		if w.Channel == "" {
			return Inbound{}, fmt.Errorf("%w: broadcast without channel", ErrMalformedMessage)
		}
		msg.Channel = w.Channel
	case KindSignal:
		if w.Target == "" {
			return Inbound{}, fmt.Errorf("%w: signal without target", ErrMalformedMessage)
		}
		msg.Target = w.Target
	case KindUnknown:
	}
	return msg, nil
}

// ============================================================================
// 出站消息
// ============================================================================

type welcomeMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	IP       string `json:"ip"`
}

type publishMessage struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

type signalMessage struct {
	Type   string          `json:"type"`
	Sender string          `json:"sender"`
	Data   json.RawMessage `json:"data"`
}

// rawOrNull 空数据编码为 null
func rawOrNull(data json.RawMessage) json.RawMessage {
	if len(data) == 0 {
		return json.RawMessage("null")
	}
	return data
}

// roomPayload 以 data 的字段为基础追加 sender、channel、timestamp
//
// data 不是 JSON 对象时放在 data 字段下。
func roomPayload(data json.RawMessage, sender, channel string, ts int64) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
			fields = map[string]json.RawMessage{"data": data}
		}
	}
	var err error
	if fields["sender"], err = json.Marshal(sender); err != nil {
		return nil, err
	}
	if fields["channel"], err = json.Marshal(channel); err != nil {
		return nil, err
	}
	if fields["timestamp"], err = json.Marshal(ts); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

package signaling

import "errors"

var (
	// ErrHubClosed 中心已关闭
	ErrHubClosed = errors.New("signaling: hub closed")
	// ErrUnknownClient 客户端不存在
	ErrUnknownClient = errors.New("signaling: unknown client")
	// ErrMalformedMessage 无法解析的消息
	ErrMalformedMessage = errors.New("signaling: malformed message")
)

package gossiphub

import "errors"

// 公共错误定义
var (
	// ErrAlreadyStarted 应用已启动
	ErrAlreadyStarted = errors.New("gossiphub: already started")

	// ErrClosed 应用已关闭
	ErrClosed = errors.New("gossiphub: closed")
)

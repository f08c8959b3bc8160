package storage

import (
	"github.com/dep2p/go-gossiphub/internal/core/storage/engine"
)

// 重导出 engine 包的错误，方便使用方直接使用
var (
	// ErrNotFound 键不存在
	ErrNotFound = engine.ErrNotFound

	// ErrClosed 引擎已关闭
	ErrClosed = engine.ErrClosed

	// ErrCorrupted 数据损坏
	ErrCorrupted = engine.ErrCorrupted
)

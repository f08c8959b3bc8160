// Package logger 提供 gossiphub 的统一日志系统
//
// 基于标准库 log/slog，每个子系统持有一个包级 Logger：
//
//	var log = logger.Logger("gossip")
//
//	log.Info("节点已连接", "peer", addr)
//
// 级别与格式来自配置文件（Apply）或环境变量：
//
//	GOSSIPHUB_LOG_LEVEL=gossip=debug,info
//	GOSSIPHUB_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 子系统 -> *slog.Logger
	loggers sync.Map
	// handlers 子系统 -> *subsystemHandler（用于动态调整级别）
	handlers sync.Map

	// levelsMu 保护 levels
	levelsMu sync.RWMutex
	levels   Levels
	levelsOK bool
)

func currentLevels() Levels {
	levelsMu.RLock()
	defer levelsMu.RUnlock()
	if levelsOK {
		return levels
	}
	return fromEnv().levels
}

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回同一实例。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	env := fromEnv()
	h := newSubsystemHandler(subsystem, currentLevels().For(subsystem), env.addSource)
	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(h))
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// Apply 应用配置文件中的日志设置
//
// levelSpec 的格式与 GOSSIPHUB_LOG_LEVEL 相同；环境变量中的子系统级别
// 优先于 levelSpec 的默认级别。已创建的 Logger 会立即生效。
func Apply(levelSpec, formatName string) {
	env := fromEnv()
	next := ParseLevels(levelSpec, slog.LevelInfo)
	for name, level := range env.levels.Subsystems {
		next.Subsystems[name] = level
	}

	levelsMu.Lock()
	levels, levelsOK = next, true
	levelsMu.Unlock()

	if formatName != "" {
		SetFormat(ParseFormat(formatName))
	}
	handlers.Range(func(key, value any) bool {
		value.(*subsystemHandler).level.Set(next.For(key.(string)))
		return true
	})
}

// SetLevel 动态设置子系统的日志级别
func SetLevel(subsystem string, level slog.Level) {
	Logger(subsystem)
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).level.Set(level)
	}
}

// SetFormat 切换所有子系统的输出格式
func SetFormat(f Format) {
	format.Store(int32(f))
}

// SetOutput 设置全局日志输出目标，对已创建的 Logger 同样生效
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// Discard 返回一个丢弃所有日志的 Logger，主要用于测试
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

func init() {
	format.Store(int32(fromEnv().format))
}

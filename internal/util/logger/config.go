package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Format 日志输出格式
type Format int32

const (
	// FormatText 文本格式（默认）
	FormatText Format = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// ParseFormat 解析格式名称，未知名称回落为文本格式
func ParseFormat(name string) Format {
	if strings.EqualFold(strings.TrimSpace(name), "json") {
		return FormatJSON
	}
	return FormatText
}

// Levels 日志级别配置
//
// 由默认级别与按子系统覆盖的级别组成，字符串形式为
// "子系统=级别,子系统=级别,默认级别"，例如 "gossip=debug,hub=warn,info"。
type Levels struct {
	// Default 默认日志级别
	Default slog.Level

	// Subsystems 各子系统的日志级别
	Subsystems map[string]slog.Level
}

// For 返回指定子系统生效的级别
func (l Levels) For(subsystem string) slog.Level {
	if level, ok := l.Subsystems[subsystem]; ok {
		return level
	}
	return l.Default
}

// ParseLevels 解析级别配置字符串
//
// 无法识别的片段会被忽略，fallback 作为未显式给出默认级别时的取值。
func ParseLevels(spec string, fallback slog.Level) Levels {
	levels := Levels{Default: fallback, Subsystems: make(map[string]slog.Level)}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, levelName, scoped := strings.Cut(part, "=")
		if !scoped {
			if level, ok := ParseLevel(part); ok {
				levels.Default = level
			}
			continue
		}
		if level, ok := ParseLevel(strings.TrimSpace(levelName)); ok {
			levels.Subsystems[strings.TrimSpace(name)] = level
		}
	}
	return levels
}

// ParseLevel 解析日志级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// 环境变量名
const (
	envLevel  = "GOSSIPHUB_LOG_LEVEL"
	envFormat = "GOSSIPHUB_LOG_FORMAT"
	envSource = "GOSSIPHUB_LOG_ADD_SOURCE"
)

// envSettings 启动时从环境变量读取的设置
type envSettings struct {
	levels    Levels
	format    Format
	addSource bool
}

var (
	envCache *envSettings
	envOnce  sync.Once
)

// fromEnv 解析环境变量配置（只解析一次）
//
//   - GOSSIPHUB_LOG_LEVEL: gossip=debug,info
//   - GOSSIPHUB_LOG_FORMAT: text 或 json
//   - GOSSIPHUB_LOG_ADD_SOURCE: true 或 false
func fromEnv() *envSettings {
	envOnce.Do(func() {
		s := &envSettings{
			levels: Levels{Default: slog.LevelInfo, Subsystems: map[string]slog.Level{}},
		}
		if v := os.Getenv(envLevel); v != "" {
			s.levels = ParseLevels(v, slog.LevelInfo)
		}
		s.format = ParseFormat(os.Getenv(envFormat))
		if v := os.Getenv(envSource); v != "" {
			s.addSource = v != "false" && v != "0"
		}
		envCache = s
	})
	return envCache
}

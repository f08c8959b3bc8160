package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

var (
	// output 全局日志输出目标，默认为 stderr
	output   io.Writer = os.Stderr
	outputMu sync.RWMutex

	// format 当前输出格式，所有子系统共享
	format atomic.Int32
)

// outputWriter 每次写入时查找当前的全局输出
type outputWriter struct{}

func (outputWriter) Write(p []byte) (int, error) {
	outputMu.RLock()
	w := output
	outputMu.RUnlock()
	return w.Write(p)
}

// subsystemHandler 带子系统级别控制的 slog.Handler
//
// 文本与 JSON 两种内部 Handler 同时持有，按全局格式选择，
// 因此包级 logger 在配置加载之前创建也能跟随后续的格式切换。
type subsystemHandler struct {
	level *slog.LevelVar
	text  slog.Handler
	json  slog.Handler
}

func newSubsystemHandler(subsystem string, level slog.Level, addSource bool) *subsystemHandler {
	lv := new(slog.LevelVar)
	lv.Set(level)

	opts := &slog.HandlerOptions{
		Level:     lv,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "ts"
			case slog.LevelKey:
				if l, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelName(l))
				}
			}
			return a
		},
	}
	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	return &subsystemHandler{
		level: lv,
		text:  slog.NewTextHandler(outputWriter{}, opts).WithAttrs(attrs),
		json:  slog.NewJSONHandler(outputWriter{}, opts).WithAttrs(attrs),
	}
}

func (h *subsystemHandler) current() slog.Handler {
	if Format(format.Load()) == FormatJSON {
		return h.json
	}
	return h.text
}

func (h *subsystemHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *subsystemHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.current().Handle(ctx, r)
}

func (h *subsystemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &subsystemHandler{level: h.level, text: h.text.WithAttrs(attrs), json: h.json.WithAttrs(attrs)}
}

func (h *subsystemHandler) WithGroup(name string) slog.Handler {
	return &subsystemHandler{level: h.level, text: h.text.WithGroup(name), json: h.json.WithGroup(name)}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// discardHandler 丢弃所有日志
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

package gossiphub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-gossiphub/config"
	"github.com/dep2p/go-gossiphub/internal/api"
	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/core/metrics"
	"github.com/dep2p/go-gossiphub/internal/core/signaling"
	"github.com/dep2p/go-gossiphub/internal/util/logger"
)

var appLog = logger.Logger("gossiphub")

const (
	startTimeout = 30 * time.Second
	stopTimeout  = 15 * time.Second
)

// App 一个运行中的 gossiphub 进程
type App struct {
	config *config.Config
	app    *fx.App

	node      *gossip.Node
	hub       *signaling.Hub
	collector *metrics.Collector
	server    *api.Server

	mu      sync.Mutex
	started bool
	closed  bool
}

// ════════════════════════════════════════════════════════════════════════════
//                              构造函数
// ════════════════════════════════════════════════════════════════════════════

// New 构建应用但不启动
//
// 状态持久化开启时，New 会打开存储并把快照恢复到节点。
func New(opts ...Option) (*App, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	a := &App{config: o.config}
	fxApp, err := buildFxApp(o, a)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	a.app = fxApp
	return a, nil
}

// Start 构建并启动应用
func Start(ctx context.Context, opts ...Option) (*App, error) {
	a, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := a.Start(ctx); err != nil {
		return nil, fmt.Errorf("start app: %w", err)
	}
	return a, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Start 依次启动所有组件
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.started {
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	if err := a.app.Start(startCtx); err != nil {
		appLog.Error("启动失败", "err", err)
		return err
	}
	a.started = true
	appLog.Info("gossiphub 已启动",
		"version", Version,
		"address", a.node.Self(),
		"listen", a.server.Addr(),
	)
	return nil
}

// Close 逆序停止所有组件，可重复调用
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := a.app.Stop(ctx); err != nil {
		appLog.Error("关闭失败", "err", err)
		return err
	}
	appLog.Info("gossiphub 已关闭")
	return nil
}

// Wait 阻塞直到收到退出信号或 ctx 结束
func (a *App) Wait(ctx context.Context) {
	select {
	case sig := <-a.app.Done():
		appLog.Info("收到退出信号", "signal", sig)
	case <-ctx.Done():
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              组件访问
// ════════════════════════════════════════════════════════════════════════════

// Config 返回生效的配置
func (a *App) Config() *config.Config { return a.config }

// Node 返回 gossip 节点
func (a *App) Node() *gossip.Node { return a.node }

// Hub 返回信令中心
func (a *App) Hub() *signaling.Hub { return a.hub }

// Metrics 返回当前指标快照
func (a *App) Metrics() metrics.Snapshot { return a.collector.Snapshot() }

// Addr 返回 HTTP 服务实际监听的地址
func (a *App) Addr() string { return a.server.Addr() }

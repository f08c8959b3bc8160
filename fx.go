package gossiphub

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-gossiphub/config"
	"github.com/dep2p/go-gossiphub/internal/api"
	"github.com/dep2p/go-gossiphub/internal/core/eventbus"
	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/core/metrics"
	"github.com/dep2p/go-gossiphub/internal/core/signaling"
	"github.com/dep2p/go-gossiphub/internal/core/storage"
	"github.com/dep2p/go-gossiphub/internal/core/transport"
	"github.com/dep2p/go-gossiphub/internal/util/logger"
)

// modules 返回按依赖排序的模块列表
//
// 顺序决定生命周期：OnStart 依次执行，OnStop 逆序执行。
// storage 排在 gossip 之后，保证最后一次保存发生在节点销毁之前；
// api 排在最后，停止时最先关闭入口。
func modules(cfg *config.Config, clk clock.Clock) []fx.Option {
	return []fx.Option{
		fx.Supply(cfg),
		fx.Provide(func() clock.Clock { return clk }),

		eventbus.Module(),
		transport.Module(),
		gossip.Module(),
		signaling.Module(),
		metrics.Module(),
		storage.Module(),
		api.Module(),

		fx.Invoke(registerEventLog),
		fx.Invoke(registerStatsPublisher),
	}
}

// buildFxApp 构建 Fx 应用
func buildFxApp(o *options, a *App) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	logger.Apply(o.config.Log.Level, o.config.Log.Format)

	// ════════════════════════════════════════════════════════════════════════
	// 2. 模块与用户扩展
	// ════════════════════════════════════════════════════════════════════════
	opts := modules(o.config, o.clock)
	opts = append(opts, o.fxOptions...)

	// ════════════════════════════════════════════════════════════════════════
	// 3. 组件注入
	// ════════════════════════════════════════════════════════════════════════
	opts = append(opts, fx.Populate(&a.node, &a.hub, &a.collector, &a.server))

	// ════════════════════════════════════════════════════════════════════════
	// 4. Fx 自身日志
	// ════════════════════════════════════════════════════════════════════════
	opts = append(opts, fx.WithLogger(fxEventLogger(o.config.Log.FxEvents)))

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}

// fxEventLogger 默认丢弃 fx 事件，调试时输出到 zap 开发日志
func fxEventLogger(enabled bool) func() fxevent.Logger {
	return func() fxevent.Logger {
		if !enabled {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}
		l, err := zap.NewDevelopment()
		if err != nil {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}
		return &fxevent.ZapLogger{Logger: l.Named("fx")}
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              事件日志
// ════════════════════════════════════════════════════════════════════════════

var eventLog = logger.Logger("events")

// registerEventLog 订阅全部事件并以 debug 级别输出
func registerEventLog(lc fx.Lifecycle, bus *eventbus.Bus) error {
	sub, err := bus.Subscribe("*", eventbus.WithBuffer(256))
	if err != nil {
		return err
	}
	done := make(chan struct{})
	lc.Append(fx.StartStopHook(
		func() {
			go func() {
				defer close(done)
				for ev := range sub.Out() {
					eventLog.Debug("事件", "name", ev.Name, "payload", ev.Payload)
				}
			}()
		},
		func() error {
			err := sub.Close()
			<-done
			return err
		},
	))
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              中心统计发布
// ════════════════════════════════════════════════════════════════════════════

type statsPublisherInput struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Node   *gossip.Node
	Hub    *signaling.Hub
	Clock  clock.Clock
}

func registerStatsPublisher(in statsPublisherInput) {
	if !in.Config.Signal.PublishStats {
		return
	}
	p := newStatsPublisher(in.Node, in.Hub, in.Clock)
	interval := in.Config.Signal.StatsInterval.Duration()
	lc := in.LC
	lc.Append(fx.StartStopHook(
		func() { p.Start(interval) },
		p.Stop,
	))
}

package metrics

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"github.com/dep2p/go-gossiphub/config"
	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/core/signaling"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
	Node   *gossip.Node
	Hub    *signaling.Hub

	Clock clock.Clock `optional:"true"`
}

// ProvideCollector 创建采集器
func ProvideCollector(input ModuleInput) *Collector {
	return NewCollector(input.Config.Metrics.Namespace, input.Node, input.Hub, WithClock(input.Clock))
}

// ProvideRegistry 创建独立的 Registry
//
// 指标关闭时返回空 Registry。
func ProvideRegistry(cfg *config.Config, c *Collector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if !cfg.Metrics.Enabled {
		return reg, nil
	}
	for _, col := range []prometheus.Collector{
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Metrics.Namespace}),
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideCollector, ProvideRegistry),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In
	LC        fx.Lifecycle
	Config    *config.Config
	Collector *Collector
}

func registerLifecycle(input lifecycleInput) {
	if !input.Config.Metrics.Enabled {
		return
	}
	interval := time.Duration(input.Config.Metrics.SnapshotInterval)
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			input.Collector.Start(interval)
			return nil
		},
		OnStop: func(_ context.Context) error {
			input.Collector.Stop()
			return nil
		},
	})
}

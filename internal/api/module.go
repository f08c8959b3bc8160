package api

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-gossiphub/config"
	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/core/metrics"
	"github.com/dep2p/go-gossiphub/internal/core/signaling"
	"github.com/dep2p/go-gossiphub/internal/core/transport"
)

// ModuleInput 模块输入
type ModuleInput struct {
	fx.In

	Config    *config.Config
	Node      *gossip.Node
	Hub       *signaling.Hub
	Collector *metrics.Collector
	Registry  *prometheus.Registry
}

// ConfigFrom 从全局配置构造服务配置
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Listen:            cfg.API.Listen,
		ReadHeaderTimeout: cfg.API.ReadHeaderTimeout.Duration(),
		ShutdownTimeout:   cfg.API.ShutdownTimeout.Duration(),
		ClientConn:        transport.ClientOptions(cfg),
		PeerConn:          transport.PeerOptions(cfg),
	}
}

// ProvideServer 提供 HTTP 服务
func ProvideServer(in ModuleInput) *Server {
	deps := Deps{
		Gossip:  in.Node,
		Hub:     in.Hub,
		Metrics: in.Collector,
	}
	if in.Config.Metrics.Enabled {
		deps.Registry = in.Registry
	}
	return New(ConfigFrom(in.Config), deps)
}

// Module 返回 api fx 模块
func Module() fx.Option {
	return fx.Module("api",
		fx.Provide(ProvideServer),
		fx.Invoke(func(lc fx.Lifecycle, s *Server) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return s.Start(ctx)
				},
				OnStop: func(ctx context.Context) error {
					return s.Stop(ctx)
				},
			})
		}),
	)
}

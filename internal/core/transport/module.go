package transport

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-gossiphub/config"
)

// GossipPath 节点间 gossip 端点路径
const GossipPath = "/gossip"

// ModuleInput 模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
}

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Dialer Dialer
}

// PeerOptions 节点间 /gossip 连接参数
func PeerOptions(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.WriteTimeout = cfg.API.WriteTimeout.Duration()
	opts.SendQueueSize = cfg.API.SendQueueSize
	opts.MaxMessageSize = int64(cfg.Gossip.MaxMessageSize)
	return opts
}

// ClientOptions 信令客户端 /ws 连接参数
func ClientOptions(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.WriteTimeout = cfg.API.WriteTimeout.Duration()
	opts.SendQueueSize = cfg.API.SendQueueSize
	opts.MaxMessageSize = int64(cfg.Signal.MaxMessageSize)
	return opts
}

// ProvideDialer 按配置创建 WebSocket 拨号器
func ProvideDialer(input ModuleInput) ModuleOutput {
	cfg := input.Config
	return ModuleOutput{
		Dialer: NewWSDialer(cfg.AdvertiseAddress(), GossipPath, PeerOptions(cfg)),
	}
}

// Module 返回 fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideDialer),
	)
}

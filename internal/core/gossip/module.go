package gossip

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-gossiphub/config"
	"github.com/dep2p/go-gossiphub/internal/core/eventbus"
	"github.com/dep2p/go-gossiphub/internal/core/transport"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config
	Dialer transport.Dialer

	// Bus 事件总线（可选）
	Bus *eventbus.Bus `optional:"true"`
	// Clock 时钟（可选，默认系统时钟）
	Clock clock.Clock `optional:"true"`
}

// ProvideNode 按配置创建节点
func ProvideNode(input ModuleInput) (*Node, error) {
	cfg := ConfigFrom(input.Config.AdvertiseAddress(), input.Config.Gossip)
	cfg.Seeds = input.Config.Node.Seeds
	return New(cfg, input.Dialer, WithClock(input.Clock), WithEventBus(input.Bus))
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("gossip",
		fx.Provide(ProvideNode),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In
	LC   fx.Lifecycle
	Node *Node
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return input.Node.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return input.Node.Destroy()
		},
	})
}

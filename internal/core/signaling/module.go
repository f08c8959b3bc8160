package signaling

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-gossiphub/config"
	"github.com/dep2p/go-gossiphub/internal/core/eventbus"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Config *config.Config

	Bus   *eventbus.Bus `optional:"true"`
	Clock clock.Clock   `optional:"true"`
}

// ProvideHub 按配置创建信令中心
func ProvideHub(input ModuleInput) *Hub {
	return New(ConfigFrom(input.Config.Signal), WithClock(input.Clock), WithEventBus(input.Bus))
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("signaling",
		fx.Provide(ProvideHub),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In
	LC  fx.Lifecycle
	Hub *Hub
}

func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return input.Hub.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return input.Hub.Close()
		},
	})
}

package storage

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-gossiphub/config"
	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/core/storage/engine/badger"
)

// Params Storage 模块依赖参数
type Params struct {
	fx.In

	Config *config.Config
}

// ProvideStateStore 打开状态存储，持久化关闭时返回 nil
func ProvideStateStore(p Params) (*StateStore, error) {
	if !p.Config.Storage.Enabled {
		return nil, nil
	}
	engineCfg := EngineConfig(p.Config.Storage)
	log.Debug("创建存储引擎", "path", engineCfg.Path, "inMemory", engineCfg.InMemory)
	eng, err := badger.New(engineCfg)
	if err != nil {
		log.Error("创建存储引擎失败", "err", err)
		return nil, err
	}
	return NewStateStore(eng), nil
}

// Module 返回 Storage Fx 模块
//
// 生命周期:
//   - Invoke: 读取快照并恢复到节点（早于节点 Start）
//   - OnStart: 开始周期保存
//   - OnStop: 最后保存一次并关闭引擎
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideStateStore),
		fx.Invoke(restoreAndRegister),
	)
}

type lifecycleInput struct {
	fx.In
	LC     fx.Lifecycle
	Config *config.Config
	Node   *gossip.Node
	Store  *StateStore
	Clock  clock.Clock `optional:"true"`
}

func restoreAndRegister(input lifecycleInput) error {
	if input.Store == nil {
		return nil
	}

	snap, err := input.Store.Load()
	if err != nil {
		return multierr.Append(fmt.Errorf("storage: load: %w", err), input.Store.Close())
	}
	if err := input.Node.Restore(snap); err != nil {
		return multierr.Append(err, input.Store.Close())
	}
	log.Info("已恢复持久化状态", "keys", len(snap.State), "known", len(snap.Known))

	p := NewPersister(input.Store, input.Node, input.Config.Storage.PersistInterval.Duration(), input.Clock)
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			p.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			return multierr.Append(p.Stop(), input.Store.Close())
		},
	})
	return nil
}

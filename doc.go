// Package gossiphub 组装 gossip 复制节点与信令中心
//
// 一个进程同时承担两种角色：
//
//   - gossip 节点：与其他节点做反熵复制，维护对端集合与已知地址
//   - 信令中心：接受 WebSocket 客户端，提供主题发布、房间广播与点对点转发
//
// 两者共享同一个 HTTP 监听地址（/ws 与 /gossip），并由同一个指标采集器汇总。
// 开启 Signal.PublishStats 时，中心统计会以 "hub:<地址>" 为键写入复制状态，
// 从而在整个集群内传播。
//
// # 快速开始
//
//	cfg := config.NewConfig()
//	cfg.API.Listen = ":7400"
//	cfg.Node.Seeds = []string{"10.0.0.2:7400"}
//
//	app, err := gossiphub.Start(ctx, gossiphub.WithConfig(cfg))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Close()
//
//	_ = app.Node().Update("greeting", "hello")
//
// # 模块结构
//
//	┌──────────────────────────────────────────────┐
//	│  api        /status /topics /ws /gossip ...   │
//	├──────────────────────────────────────────────┤
//	│  metrics    storage                           │
//	├──────────────────────────────────────────────┤
//	│  gossip                 signaling             │
//	├──────────────────────────────────────────────┤
//	│  transport  eventbus                          │
//	└──────────────────────────────────────────────┘
//
// 所有组件由 fx 构造并注入，生命周期钩子按依赖顺序启动、逆序停止。
package gossiphub

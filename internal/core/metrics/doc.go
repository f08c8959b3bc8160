// Package metrics 汇总 gossip 节点与信令中心的指标
//
// 指标没有独立的状态：每次采集都从两个数据源读取统计快照，
// 聚合为 Snapshot，再渲染为 Prometheus 文本格式。
//
// # 快速开始
//
//	snap := metrics.Aggregate(nodeStats, hubStats, start, time.Now())
//	text, err := metrics.Render(snap, "gossiphub")
//
// # Collector
//
// Collector 实现 prometheus.Collector，注册到独立的 Registry 后由 /metrics 暴露：
//
//	c := metrics.NewCollector("gossiphub", node, hub)
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(c)
//
// Collector 额外维护 60 秒窗口的消息与字节速率（RateMeter），
// 并可周期性把快照写入日志（Start/Stop）。
//
// # Fx 模块
//
//	app := fx.New(
//	    metrics.Module(),
//	    fx.Invoke(func(reg *prometheus.Registry) { ... }),
//	)
package metrics

// Package eventbus 实现按名称分发的进程内事件总线
//
// 事件名使用冒号分段，例如 "gossip:peer:connected"。订阅模式有三种：
//
//   - 精确匹配: "gossip:peer:connected"
//   - 前缀匹配: "gossip:*" 或 "gossip:peer:*"，只在冒号边界匹配
//   - 全局匹配: "*"
//
// 每个订阅只落在一张分发表中，因此同一次 Emit 对同一个订阅最多投递一次。
// Emit 从不阻塞：订阅缓冲区满时丢弃事件并计数，发射方（通常是组件的
// 事件循环）不会被慢消费者拖住。
//
//	bus := eventbus.NewBus()
//	sub, _ := bus.Subscribe("gossip:*")
//	defer sub.Close()
//
//	for ev := range sub.Out() {
//	    log.Info("事件", "name", ev.Name)
//	}
package eventbus

// Package signaling 实现信令中心：把大量客户端连接复用到命名主题上
//
// 客户端连接后收到 welcome 消息与分配的 clientId，之后可以：
//
//   - subscribe / unsubscribe 主题
//   - publish：发给主题的所有订阅者，发布者本身订阅时也会收到
//   - broadcast：房间广播，发给频道内除发送者外的所有客户端
//   - signal：按 clientId 点对点转发
//
// 存活检测：每个心跳周期发送 ping，连续一个周期没有 pong 的客户端被断开。
// 维护周期清理长时间无活动的客户端与空主题。
//
// 与 gossip 节点相同，所有状态只在中心自己的事件循环中修改。
package signaling

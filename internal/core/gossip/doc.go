// Package gossip 实现基于反熵的键值状态复制节点
//
// 每个 Node 维护三份数据：
//   - peers：当前打开的连接（PeerEntry）
//   - known：已知地址集合，包含自身，只在重试耗尽后移除地址
//   - state：复制状态，按 key 以最后写入者胜出（LWW）合并
//
// 节点周期性地（以及每次本地更新后经过防抖）把完整快照
// {peers, known, state} 广播给所有对端；收到快照的节点合并状态，
// 并主动连接快照中自己尚不知道的地址，从而完成成员发现。
//
// 连接失败按 RetryDelay * 2^n 退避重试，MaxRetries 次仍失败的地址被遗忘。
// 超过 StaleTimeout 没有任何回应的对端在下一次同步时被移除并立即重连。
//
// 并发模型：
//
// 所有状态只在节点自己的事件循环 goroutine 中修改。读连接的 goroutine
// 与定时器回调只向循环投递闭包；定时器回调携带序号，序号失配（已取消、
// 已被替换或节点已销毁）的回调直接忽略。
package gossip

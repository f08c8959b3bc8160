// Package storage 持久化 gossip 复制状态与已知地址
//
// 存储基于 BadgerDB（engine/badger），通过带前缀的 KV 抽象（kv）划分键空间：
//
//	前缀  | 内容
//	------|---------------------------------
//	s/    | 复制状态，值为 StateEntry JSON
//	k/    | 已知地址，值为空
//
// 启动时（fx Invoke 阶段，早于节点 Start）读取快照并 Restore 到节点；
// 运行中由 Persister 按 PersistInterval 周期保存，停止时再保存一次。
//
// 默认关闭，通过 storage.enabled 开启。
package storage

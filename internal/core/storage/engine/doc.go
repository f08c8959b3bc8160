// Package engine 定义存储引擎接口
//
// 状态存储只依赖本包的 Engine 接口，具体实现位于 engine/badger。
//
// # 线程安全
//
// 所有接口实现必须保证线程安全。批量写入在 Write 之前互不影响。
package engine

// Package api 提供查询 HTTP 服务与 WebSocket 入口
//
// 端点：
//   - GET  /status        - 地址、运行时长与各类计数
//   - GET  /topics        - 主题及订阅者元数据
//   - GET  /clients       - 客户端及其订阅的主题
//   - GET  /gossip/state  - 当前 gossip 快照
//   - POST /gossip/peers  - {"peer": address}，发起连接
//   - GET  /metrics       - Prometheus 指标
//   - GET  /health        - 健康检查
//   - GET  /ws            - 信令客户端 WebSocket
//   - GET  /gossip        - gossip 节点 WebSocket，拨号方在 X-Gossip-Address 中宣告自己的地址
//   - GET  /debug/pprof/* - Go pprof 端点
package api

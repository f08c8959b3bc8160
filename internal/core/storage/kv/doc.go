// Package kv 提供带前缀隔离的 KV 存储抽象层
//
// Store 为所有键自动添加前缀，同一引擎上的不同前缀互不可见：
//
//	state := kv.New(eng, []byte("s/"))
//	known := kv.New(eng, []byte("k/"))
//
//	state.PutJSON([]byte("room"), entry) // 实际键: s/room
package kv

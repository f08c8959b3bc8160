package config

import (
	"fmt"
	"time"
)

// GossipConfig 反熵复制配置
type GossipConfig struct {
	// SyncInterval 周期同步与存活探测间隔
	// 默认值: 5s
	SyncInterval Duration `json:"sync_interval"`

	// RetryDelay 重连基础延迟，同时作为单次连接超时
	// 第 n 次重试延迟为 RetryDelay * 2^n
	// 默认值: 5s
	RetryDelay Duration `json:"retry_delay"`

	// MaxRetries 放弃一个地址之前的重试次数
	// 默认值: 3
	MaxRetries int `json:"max_retries"`

	// StaleTimeout 超过该时间未收到任何回应的对端会被移除
	// 默认值: 30s
	StaleTimeout Duration `json:"stale_timeout"`

	// DebounceDelay 同步防抖窗口
	// 默认值: 1s
	DebounceDelay Duration `json:"debounce_delay"`

	// ForgetTTL 被放弃的地址在该时间内不会通过 gossip 重新发现
	// 0 表示关闭
	// 默认值: 60s
	ForgetTTL Duration `json:"forget_ttl"`

	// ForgetCacheSize 记录被放弃地址的上限
	// 默认值: 1024
	ForgetCacheSize int `json:"forget_cache_size"`

	// MaxMessageSize /gossip 连接单帧上限，超限的连接被关闭
	// 默认值: 16 MiB
	MaxMessageSize int `json:"max_message_size"`
}

// DefaultGossipConfig 返回默认 gossip 配置
func DefaultGossipConfig() GossipConfig {
	return GossipConfig{
		SyncInterval:    Duration(5 * time.Second),
		RetryDelay:      Duration(5 * time.Second),
		MaxRetries:      3,
		StaleTimeout:    Duration(30 * time.Second),
		DebounceDelay:   Duration(time.Second),
		ForgetTTL:       Duration(60 * time.Second),
		ForgetCacheSize: 1024,
		MaxMessageSize:  16 << 20,
	}
}

// Validate 校验 gossip 配置
func (c *GossipConfig) Validate() error {
	if c.SyncInterval <= 0 {
		return fmt.Errorf("gossip: sync_interval must be positive")
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("gossip: retry_delay must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("gossip: max_retries must be >= 1")
	}
	if c.StaleTimeout <= c.SyncInterval {
		return fmt.Errorf("gossip: stale_timeout (%s) must exceed sync_interval (%s)", c.StaleTimeout, c.SyncInterval)
	}
	if c.DebounceDelay < 0 {
		return fmt.Errorf("gossip: debounce_delay must be >= 0")
	}
	if c.ForgetTTL < 0 {
		return fmt.Errorf("gossip: forget_ttl must be >= 0")
	}
	if c.ForgetCacheSize <= 0 {
		return fmt.Errorf("gossip: forget_cache_size must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("gossip: max_message_size must be positive")
	}
	return nil
}

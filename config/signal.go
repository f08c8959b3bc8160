package config

import (
	"fmt"
	"time"
)

// SignalConfig 信令中心配置
type SignalConfig struct {
	// HeartbeatInterval 客户端心跳间隔，允许漏掉一次 pong
	// 默认值: 30s
	HeartbeatInterval Duration `json:"heartbeat_interval"`

	// CleanupInterval 维护周期：清理失联客户端与空主题
	// 默认值: 60s
	CleanupInterval Duration `json:"cleanup_interval"`

	// RateLimit 单个客户端每秒允许的入站消息数，0 表示不限
	// 默认值: 50
	RateLimit float64 `json:"rate_limit"`

	// RateBurst 令牌桶容量
	// 默认值: 100
	RateBurst int `json:"rate_burst"`

	// MaxMessageSize 单条入站消息的最大字节数
	// 默认值: 64KiB
	MaxMessageSize int `json:"max_message_size"`

	// PublishStats 是否把中心统计写入 gossip 复制状态
	// 默认值: true
	PublishStats bool `json:"publish_stats"`

	// StatsInterval 统计写入间隔
	// 默认值: 10s
	StatsInterval Duration `json:"stats_interval"`
}

// DefaultSignalConfig 返回默认信令配置
func DefaultSignalConfig() SignalConfig {
	return SignalConfig{
		HeartbeatInterval: Duration(30 * time.Second),
		CleanupInterval:   Duration(60 * time.Second),
		RateLimit:         50,
		RateBurst:         100,
		MaxMessageSize:    64 << 10,
		PublishStats:      true,
		StatsInterval:     Duration(10 * time.Second),
	}
}

// Validate 校验信令配置
func (c *SignalConfig) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("signal: heartbeat_interval must be positive")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("signal: cleanup_interval must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("signal: rate_limit must be >= 0")
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		return fmt.Errorf("signal: rate_burst must be positive when rate_limit is set")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("signal: max_message_size must be positive")
	}
	if c.PublishStats && c.StatsInterval <= 0 {
		return fmt.Errorf("signal: stats_interval must be positive")
	}
	return nil
}

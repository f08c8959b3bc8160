package signaling

import (
	"time"

	"github.com/dep2p/go-gossiphub/config"
)

// Config 中心参数
type Config struct {
	HeartbeatInterval time.Duration
	CleanupInterval   time.Duration

	// RateLimit 每个客户端每秒的入站消息数，0 表示不限
	RateLimit float64
	RateBurst int

	// MaxMessageSize 超过该大小的入站消息被丢弃，0 表示不限
	MaxMessageSize int
}

// DefaultConfig 返回默认参数
func DefaultConfig() Config {
	return ConfigFrom(config.DefaultSignalConfig())
}

// ConfigFrom 从配置文件的 signal 段构建参数
func ConfigFrom(c config.SignalConfig) Config {
	return Config{
		HeartbeatInterval: c.HeartbeatInterval.Duration(),
		CleanupInterval:   c.CleanupInterval.Duration(),
		RateLimit:         c.RateLimit,
		RateBurst:         c.RateBurst,
		MaxMessageSize:    c.MaxMessageSize,
	}
}

// staleAfter 超过该时间无活动的客户端在维护时被清理
func (c Config) staleAfter() time.Duration {
	return 2 * c.HeartbeatInterval
}

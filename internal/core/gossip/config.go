package gossip

import (
	"fmt"
	"time"

	"github.com/dep2p/go-gossiphub/config"
)

// Config 节点参数
type Config struct {
	// Self 本节点地址
	Self string
	// Seeds 启动时连接的地址
	Seeds []string

	SyncInterval  time.Duration
	RetryDelay    time.Duration
	MaxRetries    int
	StaleTimeout  time.Duration
	DebounceDelay time.Duration

	// ForgetTTL 遗忘地址的屏蔽时长，0 表示不屏蔽
	ForgetTTL       time.Duration
	ForgetCacheSize int
}

// DefaultConfig 返回默认参数
func DefaultConfig(self string) Config {
	return ConfigFrom(self, config.DefaultGossipConfig())
}

// ConfigFrom 从配置文件的 gossip 段构建参数
func ConfigFrom(self string, c config.GossipConfig) Config {
	return Config{
		Self:            self,
		SyncInterval:    c.SyncInterval.Duration(),
		RetryDelay:      c.RetryDelay.Duration(),
		MaxRetries:      c.MaxRetries,
		StaleTimeout:    c.StaleTimeout.Duration(),
		DebounceDelay:   c.DebounceDelay.Duration(),
		ForgetTTL:       c.ForgetTTL.Duration(),
		ForgetCacheSize: c.ForgetCacheSize,
	}
}

func (c Config) validate() error {
	if c.Self == "" {
		return fmt.Errorf("%w: self address required", ErrInvalidAddress)
	}
	if c.SyncInterval <= 0 || c.RetryDelay <= 0 || c.StaleTimeout <= 0 {
		return fmt.Errorf("gossip: intervals must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("gossip: max retries must be >= 1")
	}
	if c.ForgetCacheSize <= 0 {
		return fmt.Errorf("gossip: forget cache size must be positive")
	}
	return nil
}

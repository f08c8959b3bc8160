// Package config 提供 gossiphub 的统一配置
//
// 主 Config 聚合各组件的子配置，每个子配置在独立文件中定义，
// 提供 Default*Config() 默认值与 Validate() 校验：
//
//	cfg := config.NewConfig()
//	cfg.Node.Seeds = []string{"10.0.0.2:7400"}
//
//	cfg, err := config.LoadFile("gossiphub.json")
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config 是 gossiphub 的完整配置
type Config struct {
	// Node 节点身份与入口
	Node NodeConfig `json:"node"`

	// Gossip 反熵复制参数
	Gossip GossipConfig `json:"gossip"`

	// Signal 信令中心参数
	Signal SignalConfig `json:"signal"`

	// Metrics 指标导出
	Metrics MetricsConfig `json:"metrics"`

	// Storage 状态持久化
	Storage StorageConfig `json:"storage"`

	// API HTTP 服务
	API APIConfig `json:"api"`

	// Log 日志
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Node:    DefaultNodeConfig(),
		Gossip:  DefaultGossipConfig(),
		Signal:  DefaultSignalConfig(),
		Metrics: DefaultMetricsConfig(),
		Storage: DefaultStorageConfig(),
		API:     DefaultAPIConfig(),
		Log:     DefaultLogConfig(),
	}
}

// Validate 依次校验所有子配置
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	validators := []interface{ Validate() error }{
		&c.Node, &c.Gossip, &c.Signal, &c.Metrics, &c.Storage, &c.API, &c.Log,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FromJSON 在默认配置之上解析 JSON，未出现的字段保留默认值
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile 从文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return FromJSON(data)
}

// ToJSON 序列化为带缩进的 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

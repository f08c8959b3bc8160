package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"
)

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enabled 是否暴露 /metrics
	Enabled bool `json:"enabled"`

	// Namespace 指标名前缀
	// 默认值: "gossiphub"
	Namespace string `json:"namespace"`

	// SnapshotInterval 周期输出指标快照日志，0 表示关闭
	// 默认值: 60s
	SnapshotInterval Duration `json:"snapshot_interval"`
}

var metricNameRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:          true,
		Namespace:        "gossiphub",
		SnapshotInterval: Duration(60 * time.Second),
	}
}

// Validate 校验指标配置
func (c *MetricsConfig) Validate() error {
	if c.Namespace != "" && !metricNameRE.MatchString(c.Namespace) {
		return fmt.Errorf("metrics: invalid namespace %q", c.Namespace)
	}
	if c.SnapshotInterval < 0 {
		return fmt.Errorf("metrics: snapshot_interval cannot be negative")
	}
	return nil
}

// StorageConfig 状态持久化配置
//
// 启用后复制状态与已知地址保存在 BadgerDB 中：
//
//	${DataDir}/
//	└── gossiphub.db/
type StorageConfig struct {
	// Enabled 是否持久化
	Enabled bool `json:"enabled"`

	// DataDir 数据目录
	// 默认值: "./data"
	DataDir string `json:"data_dir"`

	// InMemory 使用内存数据库（测试）
	InMemory bool `json:"in_memory,omitempty"`

	// PersistInterval 周期保存间隔
	// 默认值: 30s
	PersistInterval Duration `json:"persist_interval"`
}

// DefaultStorageConfig 返回默认存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir:         "./data",
		PersistInterval: Duration(30 * time.Second),
	}
}

// Validate 校验存储配置
func (c *StorageConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.DataDir == "" && !c.InMemory {
		return fmt.Errorf("storage: data_dir cannot be empty")
	}
	if c.PersistInterval <= 0 {
		return fmt.Errorf("storage: persist_interval must be positive")
	}
	return nil
}

// DBPath 返回 BadgerDB 目录
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "gossiphub.db")
}

// APIConfig HTTP 服务配置
type APIConfig struct {
	// Listen 监听地址，同时承载 /ws 与 /gossip
	// 默认值: ":7400"
	Listen string `json:"listen"`

	// ReadHeaderTimeout 读取请求头超时
	// 默认值: 10s
	ReadHeaderTimeout Duration `json:"read_header_timeout"`

	// WriteTimeout WebSocket 单次写超时
	// 默认值: 10s
	WriteTimeout Duration `json:"write_timeout"`

	// SendQueueSize 每条 WebSocket 连接的发送队列长度
	// 队列满说明对端读取过慢，连接按发送失败处理
	// 默认值: 256
	SendQueueSize int `json:"send_queue_size"`

	// ShutdownTimeout 优雅关闭等待时间
	// 默认值: 5s
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

// DefaultAPIConfig 返回默认 API 配置
func DefaultAPIConfig() APIConfig {
	return APIConfig{
		Listen:            ":7400",
		ReadHeaderTimeout: Duration(10 * time.Second),
		WriteTimeout:      Duration(10 * time.Second),
		SendQueueSize:     256,
		ShutdownTimeout:   Duration(5 * time.Second),
	}
}

// Validate 校验 API 配置
func (c *APIConfig) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("api: listen cannot be empty")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("api: write_timeout must be positive")
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("api: send_queue_size must be positive")
	}
	return nil
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 级别配置，格式同 GOSSIPHUB_LOG_LEVEL
	// 默认值: "info"
	Level string `json:"level"`

	// Format text 或 json
	// 默认值: "text"
	Format string `json:"format"`

	// FxEvents 是否输出依赖注入框架的事件日志
	FxEvents bool `json:"fx_events,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: "text"}
}

// Validate 校验日志配置
func (c *LogConfig) Validate() error {
	switch c.Format {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("log: unknown format %q", c.Format)
	}
}

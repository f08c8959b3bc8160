package storage

import (
	"github.com/dep2p/go-gossiphub/config"
	"github.com/dep2p/go-gossiphub/internal/core/storage/engine"
)

// EngineConfig 从配置文件的 storage 段构建引擎配置
func EngineConfig(c config.StorageConfig) *engine.Config {
	if c.InMemory {
		return engine.InMemoryConfig()
	}
	return engine.DefaultConfig(c.DBPath())
}

package config

import (
	"fmt"
	"net"
	"strings"
)

// NodeConfig 节点配置
type NodeConfig struct {
	// Address 本节点对外宣告的 gossip 地址（host:port）
	// 为空时由 API.Listen 推导
	Address string `json:"address"`

	// Seeds 启动时主动连接的 gossip 地址
	Seeds []string `json:"seeds,omitempty"`
}

// DefaultNodeConfig 返回默认节点配置
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{}
}

// Validate 校验节点配置
func (c *NodeConfig) Validate() error {
	if c.Address != "" {
		if _, _, err := net.SplitHostPort(c.Address); err != nil {
			return fmt.Errorf("node: invalid address %q: %w", c.Address, err)
		}
	}
	for _, seed := range c.Seeds {
		if strings.TrimSpace(seed) == "" {
			return fmt.Errorf("node: empty seed address")
		}
	}
	return nil
}

// AdvertiseAddress 返回对外宣告的地址
//
// 未显式配置时使用监听地址，监听主机为空或通配时替换为 127.0.0.1。
func (c *Config) AdvertiseAddress() string {
	if c.Node.Address != "" {
		return c.Node.Address
	}
	host, port, err := net.SplitHostPort(c.API.Listen)
	if err != nil {
		return c.API.Listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

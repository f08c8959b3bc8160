package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-gossiphub/config"
	"github.com/dep2p/go-gossiphub/internal/core/gossip"
	"github.com/dep2p/go-gossiphub/internal/core/signaling"
	"github.com/dep2p/go-gossiphub/internal/core/transport"
)

func moduleDeps(t *testing.T, cfg *config.Config) fx.Option {
	t.Helper()
	dialer := transport.DialerFunc(func(context.Context, string) (transport.Conn, error) {
		return nil, transport.ErrClosed
	})
	node, err := gossip.New(gossip.DefaultConfig("127.0.0.1:7400"), dialer)
	require.NoError(t, err)
	hub := signaling.New(signaling.DefaultConfig())
	t.Cleanup(func() {
		_ = node.Destroy()
		_ = hub.Close()
	})
	return fx.Supply(cfg, node, hub)
}

// TestModule_Registry 指标通过 Registry 暴露
func TestModule_Registry(t *testing.T) {
	var reg *prometheus.Registry
	app := fxtest.New(t,
		moduleDeps(t, config.NewConfig()),
		Module(),
		fx.Populate(&reg),
	)
	defer app.RequireStart().RequireStop()

	text, err := gatherText(reg)
	require.NoError(t, err)
	assert.Contains(t, text, "gossiphub_gossip_known_addresses 1\n")
	assert.Contains(t, text, "gossiphub_hub_clients 0\n")
	assert.Contains(t, text, "go_goroutines")
}

// TestModule_Disabled 关闭时 Registry 为空
func TestModule_Disabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Metrics.Enabled = false

	var reg *prometheus.Registry
	app := fxtest.New(t,
		moduleDeps(t, cfg),
		Module(),
		fx.Populate(&reg),
	)
	defer app.RequireStart().RequireStop()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}

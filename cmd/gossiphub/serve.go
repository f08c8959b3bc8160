package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dep2p/go-gossiphub"
	"github.com/dep2p/go-gossiphub/config"
	"github.com/dep2p/go-gossiphub/internal/util/logger"
)

var log = logger.Logger("cmd")

// serveFlags 命令行参数
//
// 命令行参数只覆盖「这次运行」，长期配置放在 JSON 文件中。
type serveFlags struct {
	configFile string
	listen     string
	address    string
	seeds      []string
	dataDir    string
	logLevel   string
	logFormat  string
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动节点",
		Long: `启动 gossip 节点、信令中心与 HTTP 服务。

示例：
  # 单节点
  gossiphub serve --listen :7400

  # 加入已有集群
  gossiphub serve --listen :7401 --seeds 127.0.0.1:7400

  # 使用配置文件，并开启状态持久化目录
  gossiphub serve --config gossiphub.json --data-dir /var/lib/gossiphub`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd, f)
			if err != nil {
				return fmt.Errorf("配置错误: %w", err)
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	bindServeFlags(cmd, f)
	return cmd
}

func bindServeFlags(cmd *cobra.Command, f *serveFlags) {
	flags := cmd.Flags()
	flags.StringVarP(&f.configFile, "config", "c", "", "配置文件路径（JSON）")
	flags.StringVarP(&f.listen, "listen", "l", "", "HTTP 监听地址，默认 :7400")
	flags.StringVarP(&f.address, "address", "a", "", "对外宣告的 gossip 地址（host:port）")
	flags.StringSliceVarP(&f.seeds, "seeds", "s", nil, "启动时连接的节点地址（逗号分隔）")
	flags.StringVar(&f.dataDir, "data-dir", "", "数据目录，设置后开启状态持久化")
	flags.StringVar(&f.logLevel, "log-level", "", "日志级别，如 info 或 gossip=debug,info")
	flags.StringVar(&f.logFormat, "log-format", "", "日志格式 text|json")
}

// buildConfig 合并配置文件与命令行参数
//
// 优先级：命令行参数 > 配置文件 > 默认值。
func buildConfig(cmd *cobra.Command, f *serveFlags) (*config.Config, error) {
	cfg := config.NewConfig()
	if f.configFile != "" {
		loaded, err := config.LoadFile(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.API.Listen = f.listen
	}
	if flags.Changed("address") {
		cfg.Node.Address = f.address
	}
	if flags.Changed("seeds") {
		cfg.Node.Seeds = cleanSeeds(f.seeds)
	}
	if flags.Changed("data-dir") {
		cfg.Storage.DataDir = f.dataDir
		cfg.Storage.Enabled = f.dataDir != ""
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func cleanSeeds(seeds []string) []string {
	out := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("启动 gossiphub", "version", gossiphub.Version, "commit", gossiphub.GitCommit)
	app, err := gossiphub.Start(ctx, gossiphub.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	fmt.Printf("gossiphub 已启动\n  地址: %s\n  监听: %s\n", app.Node().Self(), app.Addr())
	fmt.Println("按 Ctrl+C 退出")

	app.Wait(ctx)
	fmt.Println("\n正在关闭...")
	return app.Close()
}

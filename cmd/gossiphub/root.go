package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gossiphub",
		Short: "gossip 复制节点与 WebSocket 信令中心",
		Long: `gossiphub 在一个进程内运行反熵 gossip 节点与 WebSocket 信令中心。

节点之间通过 /gossip 端点交换完整状态快照，按时间戳做最后写入者胜出的合并；
客户端通过 /ws 端点订阅主题、发布消息并互相转发信令。`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd(), newConfigCmd())
	return root
}

// Package cmd 命令行入口
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCommand 创建根命令并挂载全部子命令
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "sharedrop",
		Short: "Ephemeral file sharing service.",
		Long: `sharedrop 为上传的文件生成短链接，链接在到期或达到下载次数上限后失效，
失效的分享会在下一次访问或后台扫描时被回收。`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"配置文件路径，默认在当前目录和 ./config 下查找 config.toml")

	rootCmd.AddCommand(NewServeCommand(&configPath))
	rootCmd.AddCommand(NewSweepCommand(&configPath))
	rootCmd.AddCommand(NewMigrateCommand(&configPath))

	return rootCmd
}

// Package cli 实现 signagectl 运维命令
// 命令直接连接数据库，与 HTTP 服务共用同一套 Service 层
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// 全局参数
var (
	configDir string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "signagectl",
	Short: "数字标牌服务运维工具",
	Long: `signagectl 数字标牌服务运维工具

用于检查和修复设备状态、执行数据库迁移。
可作为外部定时任务调用批量修复。`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "./configs", "配置文件目录")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "覆盖配置中的日志级别")
}

// out 命令输出目标
func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

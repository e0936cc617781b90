package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"signage-server/internal/scheduler"
)

// sourceName 写入活动日志的来源
const sourceName = "signagectl"

var reconcileWatch bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "批量修复状态矛盾的设备",
	Long: `批量修复状态矛盾的设备。

默认执行一次后退出；使用 --watch 时按配置中的
reconcile.schedule 周期执行，直到收到退出信号。`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVarP(&reconcileWatch, "watch", "w", false, "按计划周期执行")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if !reconcileWatch {
		n, err := a.reconcile.FixAll(cmd.Context(), sourceName)
		if err != nil {
			return fmt.Errorf("批量修复失败: %w", err)
		}
		fmt.Fprintf(out(cmd), "已修复 %d 台设备\n", n)
		return nil
	}

	s := scheduler.New(a.reconcile, a.cfg.Reconcile.Schedule, sourceName, a.log)
	if err := s.Start(); err != nil {
		return fmt.Errorf("无效的计划 %q: %w", a.cfg.Reconcile.Schedule, err)
	}
	fmt.Fprintf(out(cmd), "按计划 %s 执行批量修复，Ctrl+C 退出\n", a.cfg.Reconcile.Schedule)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.Stop()
	runs, fixed, lastErr := s.Stats()
	fmt.Fprintf(out(cmd), "共执行 %d 次，修复 %d 台设备\n", runs, fixed)
	if lastErr != nil {
		fmt.Fprintf(out(cmd), "最近一次错误: %v\n", lastErr)
	}
	return nil
}

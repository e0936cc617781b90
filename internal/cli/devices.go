package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"signage-server/internal/service"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "列出状态矛盾的设备",
	RunE:  runIssues,
}

var statusCmd = &cobra.Command{
	Use:   "status <device_id>",
	Short: "检查单个设备的状态",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var fixCmd = &cobra.Command{
	Use:   "fix <device_id>",
	Short: "修复单个设备的状态",
	Long: `把最近有心跳的设备强制置为 active + online。

超出修复窗口（presence.fix_one_window）的设备不做修改。`,
	Args: cobra.ExactArgs(1),
	RunE: runFix,
}

func init() {
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(fixCmd)
}

func runIssues(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	issues, err := a.reconcile.GetAllIssues(cmd.Context())
	if err != nil {
		return fmt.Errorf("查询失败: %w", err)
	}
	if len(issues) == 0 {
		fmt.Fprintln(out(cmd), "没有状态矛盾的设备")
		return nil
	}
	fmt.Fprintf(out(cmd), "发现 %d 台状态矛盾的设备:\n", len(issues))
	for i := range issues {
		printDevice(out(cmd), &issues[i])
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	view, err := a.reconcile.CheckOne(cmd.Context(), args[0])
	if err != nil {
		return describeError(args[0], err)
	}
	printDevice(out(cmd), view)
	return nil
}

func runFix(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	fixed, err := a.reconcile.FixOne(cmd.Context(), args[0], sourceName)
	if err != nil {
		return describeError(args[0], err)
	}
	if !fixed {
		fmt.Fprintf(out(cmd), "设备 %s 超出修复窗口，未做修改\n", args[0])
		return nil
	}
	fmt.Fprintf(out(cmd), "设备 %s 已修复\n", args[0])
	return nil
}

// describeError 把服务层错误转换为可读信息
func describeError(deviceID string, err error) error {
	switch {
	case errors.Is(err, service.ErrDeviceNotFound):
		return fmt.Errorf("设备 %s 不存在", deviceID)
	case errors.Is(err, service.ErrInvalidDeviceID):
		return fmt.Errorf("设备 ID %q 格式错误", deviceID)
	}
	return err
}

// printDevice 输出一行设备摘要
func printDevice(w io.Writer, v *service.DeviceView) {
	live := v.LiveStatusValue()
	if live == "" {
		live = "-"
	}
	seen := "never"
	if v.SecondsSinceSeen != nil {
		seen = fmt.Sprintf("%ds ago", *v.SecondsSinceSeen)
	}
	mark := ""
	if v.Mismatched {
		mark = "  [MISMATCH]"
	}
	fmt.Fprintf(w, "  %-24s stored=%-8s live=%-8s tier=%-7s seen=%s%s\n",
		v.DeviceID, v.StoredStatus, live, v.Tier, seen, mark)
}

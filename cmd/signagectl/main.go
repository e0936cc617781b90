// Package main 是运维命令行工具的入口点
package main

import "signage-server/internal/cli"

func main() {
	cli.Execute()
}

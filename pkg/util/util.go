// Package util 提供通用工具函数
package util

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// deviceIDPattern 设备标识允许的字符
var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,64}$`)

// NewCommandID 生成命令 ID
// 使用 UUIDv7，同一进程内单调递增，可作为同一时刻入队命令的排序依据
func NewCommandID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// 系统随机源不可用时退回 v4
		return uuid.New().String()
	}
	return id.String()
}

// NormalizeDeviceID 去除首尾空白并校验设备标识
// 返回:
//   - string: 规范化后的设备标识
//   - bool: 是否合法
func NormalizeDeviceID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	if !deviceIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

// TrimmedOrNil 去除首尾空白，空字符串返回 nil
// 用于可选字段的赋值
func TrimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// StringPtr 返回字符串的指针
func StringPtr(s string) *string {
	return &s
}

// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"

	"gorm.io/datatypes"
)

// CommandStatus 远程命令状态
// 只能向前流转: pending -> executed / failed
const (
	CommandStatusPending  = "pending"  // 等待设备领取
	CommandStatusExecuted = "executed" // 设备已执行
	CommandStatusFailed   = "failed"   // 执行失败或被放弃
)

// Command 远程命令模型
// 对应数据库表 commands
// 管理员下发，设备通过心跳轮询领取，再通过 ack 回报结果
type Command struct {
	// ID UUIDv7，按时间有序
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// DeviceID 目标设备标识
	DeviceID string `gorm:"size:64;not null;index:idx_commands_device_status,priority:1" json:"device_id"`

	// Command 命令动词，例如 "reboot"、"refresh"
	Command string `gorm:"size:50;not null" json:"command"`

	// Params 命令参数（任意 JSON）
	Params datatypes.JSON `json:"params,omitempty"`

	// Priority 优先级，数值越大越先下发
	Priority int `gorm:"default:0;not null" json:"priority"`

	// Status pending / executed / failed
	Status string `gorm:"size:20;not null;default:pending;index:idx_commands_device_status,priority:2" json:"status"`

	// CreatedAt 入队时间
	CreatedAt time.Time `json:"created_at"`

	// LastAttemptAt 最近一次通过心跳下发的时间
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`

	// Attempts 下发次数，仅在心跳返回该命令时递增
	Attempts int `gorm:"default:0;not null" json:"attempts"`

	// Result 设备回报的执行结果
	Result datatypes.JSON `json:"result,omitempty"`

	// ExecutedAt 进入终态的时间
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}

// TableName 指定表名
func (Command) TableName() string {
	return "commands"
}

// IsTerminal 命令是否已进入终态
func (c *Command) IsTerminal() bool {
	return c.Status == CommandStatusExecuted || c.Status == CommandStatusFailed
}

// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityCategory 活动日志分类
const (
	ActivityConnection    = "connection"
	ActivityMaintenance   = "maintenance"
	ActivityRemoteCommand = "remote_command"
	ActivityError         = "error"
)

// ActivityLog 活动日志模型
// 对应数据库表 activity_logs
// 只追加，不更新也不删除
type ActivityLog struct {
	ID int64 `gorm:"primaryKey" json:"id"`

	// Category connection / maintenance / remote_command / error
	Category string `gorm:"size:30;not null;index" json:"category"`

	DeviceID       *string `gorm:"size:64;index" json:"device_id,omitempty"`
	CommandID      *string `gorm:"size:36" json:"command_id,omitempty"`
	PresentationID *int64  `json:"presentation_id,omitempty"`

	Message string         `gorm:"type:text;not null" json:"message"`
	Details datatypes.JSON `json:"details,omitempty"`

	// SourceAddr 触发该事件的请求来源地址
	SourceAddr *string `gorm:"size:64" json:"source_addr,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (ActivityLog) TableName() string {
	return "activity_logs"
}

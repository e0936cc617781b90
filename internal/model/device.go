// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"

	"gorm.io/datatypes"
)

// StoredStatus 设备生命周期状态（粗粒度）
const (
	StoredStatusActive   = "active"   // 已启用
	StoredStatusInactive = "inactive" // 已停用
)

// LiveStatus 设备运行状态（细粒度，仅由心跳写入）
const (
	LiveStatusOnline  = "online"
	LiveStatusIdle    = "idle"
	LiveStatusOffline = "offline"
	LiveStatusPlaying = "playing"
	LiveStatusPaused  = "paused"
	LiveStatusError   = "error"
)

// Device 播放终端模型
// 对应数据库表 devices
// 每个设备 ID 只有一条记录，注册时创建，心跳时合并更新
type Device struct {
	// ID 自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// DeviceID 客户端首次运行时生成的稳定标识
	DeviceID string `gorm:"size:64;uniqueIndex;not null" json:"device_id"`

	// Name 设备显示名称
	Name *string `gorm:"size:100" json:"name,omitempty"`

	// DeviceType 设备类型，例如 "firetv"
	DeviceType *string `gorm:"size:50" json:"device_type,omitempty"`

	// LocalIP 设备上报的局域网地址
	LocalIP *string `gorm:"size:64" json:"local_ip,omitempty"`

	// ExternalIP 服务端观察到的来源地址
	ExternalIP *string `gorm:"size:64" json:"external_ip,omitempty"`

	// AppVersion 客户端应用版本
	AppVersion *string `gorm:"size:50" json:"app_version,omitempty"`

	// Capabilities 客户端能力集合（任意 JSON）
	Capabilities datatypes.JSON `json:"capabilities,omitempty"`

	// RegisteredAt 首次注册时间
	RegisteredAt time.Time `json:"registered_at"`

	// LastSeen 最近一次注册或心跳的时间，只增不减
	LastSeen *time.Time `gorm:"index" json:"last_seen,omitempty"`

	// StoredStatus 生命周期状态: active / inactive
	StoredStatus string `gorm:"size:20;default:active;index;not null" json:"stored_status"`

	// LiveStatus 心跳上报的运行状态
	// online / idle / offline / playing / paused / error
	LiveStatus *string `gorm:"size:20" json:"live_status,omitempty"`

	// 以下为播放状态，由心跳整体覆盖
	CurrentPresentationID   *int64  `json:"current_presentation_id,omitempty"`
	CurrentPresentationName *string `gorm:"size:200" json:"current_presentation_name,omitempty"`
	CurrentSlide            *int    `json:"current_slide,omitempty"`
	TotalSlides             *int    `json:"total_slides,omitempty"`
	LoopEnabled             *bool   `json:"loop_enabled,omitempty"`
	AutoplayEnabled         *bool   `json:"autoplay_enabled,omitempty"`

	// 以下为遥测数据，由心跳整体覆盖
	UptimeSeconds *int64   `json:"uptime_seconds,omitempty"`
	MemoryUsage   *float64 `json:"memory_usage,omitempty"`
	WifiStrength  *int     `json:"wifi_strength,omitempty"`
	LastError     *string  `gorm:"type:text" json:"last_error,omitempty"`

	// AssignedPresentationID 管理员指派的演示文稿
	AssignedPresentationID *int64 `gorm:"index" json:"assigned_presentation_id,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Device) TableName() string {
	return "devices"
}

// LiveStatusValue 返回运行状态，未上报时为空字符串
func (d *Device) LiveStatusValue() string {
	if d.LiveStatus == nil {
		return ""
	}
	return *d.LiveStatus
}

// IsValidLiveStatus 检查心跳上报的状态是否合法
func IsValidLiveStatus(status string) bool {
	switch status {
	case LiveStatusOnline, LiveStatusIdle, LiveStatusOffline,
		LiveStatusPlaying, LiveStatusPaused, LiveStatusError:
		return true
	}
	return false
}

// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// Presentation 幻灯片演示文稿
// 对应数据库表 presentations
// 由外部管理工具维护，本服务只读
type Presentation struct {
	ID          int64   `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"size:200;not null" json:"name"`
	Description *string `gorm:"type:text" json:"description,omitempty"`

	// IsDefault 未指派演示文稿的设备使用默认演示文稿
	IsDefault bool `gorm:"default:false;index" json:"is_default"`
	IsActive  bool `json:"is_active"`

	// SlideDuration 默认每页停留秒数
	SlideDuration int    `gorm:"default:10" json:"slide_duration"`
	Transition    string `gorm:"size:30;default:fade" json:"transition"`
	Loop          bool   `json:"loop"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Slides 按 Position 排序的页面（一对多关系）
	Slides []Slide `gorm:"foreignKey:PresentationID" json:"slides"`
}

// TableName 指定表名
func (Presentation) TableName() string {
	return "presentations"
}

// Slide 演示文稿中的一页
type Slide struct {
	ID             int64  `gorm:"primaryKey" json:"id"`
	PresentationID int64  `gorm:"index;not null" json:"presentation_id"`
	Position       int    `gorm:"not null" json:"position"`
	ImageURL       string `gorm:"size:500;not null" json:"image_url"`

	// DurationSeconds 为空时使用演示文稿的 SlideDuration
	DurationSeconds *int `json:"duration_seconds,omitempty"`
}

// TableName 指定表名
func (Slide) TableName() string {
	return "slides"
}

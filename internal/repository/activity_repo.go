// Package repository 提供数据访问层的实现
package repository

import (
	"context"

	"gorm.io/gorm"

	"signage-server/internal/model"
)

// ActivityRepository 活动日志数据访问层
// 只提供追加和查询
type ActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository 创建 ActivityRepository 实例
func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create 追加一条日志
func (r *ActivityRepository) Create(ctx context.Context, entry *model.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ActivityFilter 日志查询条件
type ActivityFilter struct {
	DeviceID string
	Category string
	Limit    int
}

// List 按时间倒序查询日志
func (r *ActivityRepository) List(ctx context.Context, f ActivityFilter) ([]model.ActivityLog, error) {
	var entries []model.ActivityLog
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if f.DeviceID != "" {
		q = q.Where("device_id = ?", f.DeviceID)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	err := q.Find(&entries).Error
	return entries, err
}

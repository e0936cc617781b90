// Package repository 提供数据访问层的实现
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"signage-server/internal/model"
)

// PresentationRepository 演示文稿数据访问层（只读）
type PresentationRepository struct {
	db *gorm.DB
}

// NewPresentationRepository 创建 PresentationRepository 实例
func NewPresentationRepository(db *gorm.DB) *PresentationRepository {
	return &PresentationRepository{db: db}
}

// preloadSlides 按页码顺序预加载页面
func preloadSlides(db *gorm.DB) *gorm.DB {
	return db.Preload("Slides", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// GetActiveByID 获取启用中的演示文稿
// 返回:
//   - *model.Presentation: 未找到或已停用返回 nil
//   - error: 数据库错误
func (r *PresentationRepository) GetActiveByID(ctx context.Context, id int64) (*model.Presentation, error) {
	var p model.Presentation
	err := r.db.WithContext(ctx).
		Scopes(preloadSlides).
		Where("id = ? AND is_active = ?", id, true).
		Take(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// GetDefault 获取最近更新的默认演示文稿
func (r *PresentationRepository) GetDefault(ctx context.Context) (*model.Presentation, error) {
	var p model.Presentation
	err := r.db.WithContext(ctx).
		Scopes(preloadSlides).
		Where("is_default = ? AND is_active = ?", true, true).
		Order("updated_at DESC").
		Order("id DESC").
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ExistsActive 检查演示文稿是否存在且启用
func (r *PresentationRepository) ExistsActive(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Presentation{}).
		Where("id = ? AND is_active = ?", id, true).
		Count(&count).Error
	return count > 0, err
}

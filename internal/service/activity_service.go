// Package service 提供业务逻辑层的实现
package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"signage-server/internal/model"
	"signage-server/internal/presence"
	"signage-server/internal/repository"
)

// 活动日志查询条数限制
const (
	DefaultActivityLimit = 100
	MaxActivityLimit     = 500
)

// ActivityEntry 一条待追加的活动日志
type ActivityEntry struct {
	Category       string
	DeviceID       string
	CommandID      string
	PresentationID *int64
	Message        string
	Details        interface{} // 序列化为 JSON，nil 表示没有详情
	SourceAddr     string
}

// ActivityService 活动日志服务
// 追加失败只写入应用日志，不会影响调用方
type ActivityService struct {
	repo  *repository.ActivityRepository
	clock presence.Clock
	log   zerolog.Logger
}

// NewActivityService 创建 ActivityService 实例
func NewActivityService(repo *repository.ActivityRepository, clock presence.Clock, log zerolog.Logger) *ActivityService {
	return &ActivityService{
		repo:  repo,
		clock: clock,
		log:   log.With().Str("component", "activity").Logger(),
	}
}

// Append 追加一条活动日志
func (s *ActivityService) Append(ctx context.Context, e ActivityEntry) {
	entry := &model.ActivityLog{
		Category:       e.Category,
		DeviceID:       optionalString(e.DeviceID),
		CommandID:      optionalString(e.CommandID),
		PresentationID: e.PresentationID,
		Message:        e.Message,
		SourceAddr:     optionalString(e.SourceAddr),
		CreatedAt:      s.clock(),
	}
	if e.Details != nil {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			s.log.Warn().Err(err).Str("category", e.Category).Msg("failed to encode activity details")
		} else {
			entry.Details = datatypes.JSON(raw)
		}
	}

	// 请求已结束时也要写入
	if err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Error().
			Err(err).
			Str("category", e.Category).
			Str("device_id", e.DeviceID).
			Str("message", e.Message).
			Msg("failed to append activity log")
	}
}

// List 按条件查询最近的活动日志
// limit 不在 (0, 500] 内时使用默认值或上限
func (s *ActivityService) List(ctx context.Context, deviceID, category string, limit int) ([]model.ActivityLog, error) {
	switch {
	case limit <= 0:
		limit = DefaultActivityLimit
	case limit > MaxActivityLimit:
		limit = MaxActivityLimit
	}
	return s.repo.List(ctx, repository.ActivityFilter{
		DeviceID: deviceID,
		Category: category,
		Limit:    limit,
	})
}

// optionalString 空字符串转为 nil
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"signage-server/internal/cache"
	"signage-server/internal/model"
	"signage-server/internal/presence"
	"signage-server/internal/repository"
	"signage-server/pkg/util"
)

// 修复窗口默认值
const (
	DefaultFixOneWindow = 10 * time.Minute
	DefaultFixAllWindow = 2 * time.Minute
)

// ReconcileService 状态修复
// 修复使用条件更新，写入时重新校验新鲜度，不会覆盖并发心跳
type ReconcileService struct {
	deviceRepo   *repository.DeviceRepository
	activity     *ActivityService
	index        cache.PresenceIndex
	thresholds   presence.Thresholds
	fixOneWindow time.Duration
	fixAllWindow time.Duration
	clock        presence.Clock
	log          zerolog.Logger
}

// ReconcileWindows 修复窗口
type ReconcileWindows struct {
	FixOne time.Duration // 单设备修复接受的最大静默时长
	FixAll time.Duration // 批量修复接受的最大静默时长
}

// NewReconcileService 创建 ReconcileService 实例
func NewReconcileService(
	deviceRepo *repository.DeviceRepository,
	activity *ActivityService,
	index cache.PresenceIndex,
	thresholds presence.Thresholds,
	windows ReconcileWindows,
	clock presence.Clock,
	log zerolog.Logger,
) *ReconcileService {
	if index == nil {
		index = cache.NopIndex{}
	}
	if windows.FixOne <= 0 {
		windows.FixOne = DefaultFixOneWindow
	}
	if windows.FixAll <= 0 {
		windows.FixAll = DefaultFixAllWindow
	}
	return &ReconcileService{
		deviceRepo:   deviceRepo,
		activity:     activity,
		index:        index,
		thresholds:   thresholds,
		fixOneWindow: windows.FixOne,
		fixAllWindow: windows.FixAll,
		clock:        clock,
		log:          log.With().Str("component", "reconcile").Logger(),
	}
}

// CheckOne 检查单个设备的状态是否矛盾
func (s *ReconcileService) CheckOne(ctx context.Context, deviceID string) (*DeviceView, error) {
	deviceID, ok := util.NormalizeDeviceID(deviceID)
	if !ok {
		return nil, ErrInvalidDeviceID
	}
	device, err := s.deviceRepo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, ErrDeviceNotFound
	}
	view := newDeviceView(device, s.thresholds, s.clock())
	return &view, nil
}

// FixOne 把最近有心跳的设备强制置为 active + online
// 超出修复窗口的设备不做修改，返回 false
// 重复调用结果相同，但每次成功都会记录日志
func (s *ReconcileService) FixOne(ctx context.Context, deviceID, sourceAddr string) (bool, error) {
	deviceID, ok := util.NormalizeDeviceID(deviceID)
	if !ok {
		return false, ErrInvalidDeviceID
	}
	device, err := s.deviceRepo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return false, err
	}
	if device == nil {
		return false, ErrDeviceNotFound
	}

	now := s.clock()
	n, err := s.deviceRepo.ForceOnline(ctx, deviceID, now.Add(-s.fixOneWindow))
	if err != nil {
		return false, fmt.Errorf("fix device status: %w", err)
	}
	if n == 0 {
		s.log.Info().Str("device_id", deviceID).Msg("device outside fix window, left untouched")
		return false, nil
	}

	s.activity.Append(ctx, ActivityEntry{
		Category: model.ActivityMaintenance,
		DeviceID: deviceID,
		Message:  "Device status fixed",
		Details: map[string]interface{}{
			"previous_stored_status": device.StoredStatus,
			"previous_live_status":   device.LiveStatus,
		},
		SourceAddr: sourceAddr,
	})
	if device.LiveStatusValue() != model.LiveStatusOnline {
		if err := s.index.PublishStatus(ctx, deviceID, model.LiveStatusOnline, now); err != nil {
			s.log.Warn().Err(err).Str("device_id", deviceID).Msg("failed to publish status change")
		}
	}
	return true, nil
}

// FixAll 批量修复所有矛盾设备，返回修复数量
// 只记录一条汇总日志
func (s *ReconcileService) FixAll(ctx context.Context, sourceAddr string) (int64, error) {
	n, err := s.deviceRepo.FixMismatched(ctx, s.clock().Add(-s.fixAllWindow))
	if err != nil {
		return 0, fmt.Errorf("fix mismatched devices: %w", err)
	}

	s.activity.Append(ctx, ActivityEntry{
		Category:   model.ActivityMaintenance,
		Message:    fmt.Sprintf("Fixed %d device(s) with mismatched status", n),
		Details:    map[string]interface{}{"fixed": n},
		SourceAddr: sourceAddr,
	})
	s.log.Info().Int64("fixed", n).Msg("reconciled mismatched devices")
	return n, nil
}

// GetAllIssues 列出所有状态矛盾的设备
func (s *ReconcileService) GetAllIssues(ctx context.Context) ([]DeviceView, error) {
	now := s.clock()
	devices, err := s.deviceRepo.ListSeenAfter(ctx, now.Add(-s.thresholds.Online))
	if err != nil {
		return nil, err
	}
	issues := make([]DeviceView, 0)
	for i := range devices {
		view := newDeviceView(&devices[i], s.thresholds, now)
		if view.Mismatched {
			issues = append(issues, view)
		}
	}
	return issues, nil
}

// PresenceSummary 各连通性分级的设备数量
type PresenceSummary struct {
	Online     int64  `json:"online"`
	Idle       int64  `json:"idle"`
	Offline    int64  `json:"offline"`
	Total      int64  `json:"total"`
	Mismatched int64  `json:"mismatched"`
	Source     string `json:"source"` // redis / database
}

// Summary 统计设备连通性
// 启用 Redis 时 online / idle 取自在线索引，否则由数据库记录推导
func (s *ReconcileService) Summary(ctx context.Context) (*PresenceSummary, error) {
	now := s.clock()
	devices, err := s.deviceRepo.ListSeenAfter(ctx, time.Time{})
	if err != nil {
		return nil, err
	}

	sum := &PresenceSummary{Total: int64(len(devices)), Source: "database"}
	for i := range devices {
		ev := s.thresholds.Evaluate(&devices[i], now)
		switch ev.Tier {
		case presence.TierOnline:
			sum.Online++
		case presence.TierIdle:
			sum.Idle++
		}
		if ev.Mismatched {
			sum.Mismatched++
		}
	}

	counts, err := s.index.Counts(ctx, now, s.thresholds)
	switch {
	case err == nil:
		sum.Online, sum.Idle, sum.Source = counts.Online, counts.Idle, "redis"
	case !errors.Is(err, cache.ErrIndexDisabled):
		s.log.Warn().Err(err).Msg("presence index unavailable, using database counts")
	}

	sum.Offline = sum.Total - sum.Online - sum.Idle
	if sum.Offline < 0 {
		sum.Offline = 0
	}
	return sum, nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"signage-server/internal/cache"
	"signage-server/internal/model"
	"signage-server/internal/presence"
	"signage-server/internal/repository"
	"signage-server/pkg/jwt"
	"signage-server/pkg/util"
)

// 设备服务相关错误
var (
	ErrDeviceNotFound    = errors.New("设备不存在")
	ErrInvalidDeviceID   = errors.New("设备 ID 缺失或格式错误")
	ErrInvalidLiveStatus = errors.New("无效的设备状态")
)

// DeviceView 设备记录加上推导出的连通性
type DeviceView struct {
	*model.Device
	Tier             presence.Tier `json:"tier"`
	Mismatched       bool          `json:"mismatched"`
	SecondsSinceSeen *int64        `json:"seconds_since_seen,omitempty"`
}

// newDeviceView 评估设备并生成视图
func newDeviceView(d *model.Device, th presence.Thresholds, now time.Time) DeviceView {
	ev := th.Evaluate(d, now)
	view := DeviceView{Device: d, Tier: ev.Tier, Mismatched: ev.Mismatched}
	if d.LastSeen != nil {
		secs := int64(ev.Elapsed / time.Second)
		view.SecondsSinceSeen = &secs
	}
	return view
}

// DeviceService 设备注册表
// 处理注册、心跳以及管理端对设备的读写
type DeviceService struct {
	deviceRepo       *repository.DeviceRepository
	presentationRepo *repository.PresentationRepository
	commands         *CommandService
	activity         *ActivityService
	index            cache.PresenceIndex
	jwtService       *jwt.JWTService
	thresholds       presence.Thresholds
	clock            presence.Clock
	log              zerolog.Logger
}

// NewDeviceService 创建 DeviceService 实例
func NewDeviceService(
	deviceRepo *repository.DeviceRepository,
	presentationRepo *repository.PresentationRepository,
	commands *CommandService,
	activity *ActivityService,
	index cache.PresenceIndex,
	jwtService *jwt.JWTService,
	thresholds presence.Thresholds,
	clock presence.Clock,
	log zerolog.Logger,
) *DeviceService {
	if index == nil {
		index = cache.NopIndex{}
	}
	return &DeviceService{
		deviceRepo:       deviceRepo,
		presentationRepo: presentationRepo,
		commands:         commands,
		activity:         activity,
		index:            index,
		jwtService:       jwtService,
		thresholds:       thresholds,
		clock:            clock,
		log:              log.With().Str("component", "devices").Logger(),
	}
}

// RegisterRequest 设备注册请求
type RegisterRequest struct {
	DeviceID     string          `json:"device_id"`
	Name         *string         `json:"name,omitempty"`
	DeviceType   *string         `json:"device_type,omitempty"`
	AppVersion   *string         `json:"app_version,omitempty"`
	LocalIP      *string         `json:"local_ip,omitempty"`
	Capabilities json.RawMessage `json:"capabilities,omitempty"`
}

// RegisterResult 注册结果
type RegisterResult struct {
	Device  *model.Device
	Token   string
	Created bool
}

// Register 注册设备或重新注册已有设备
// 重新注册会把设备重新置为 active，未提供的字段保留原值
func (s *DeviceService) Register(ctx context.Context, req RegisterRequest, sourceAddr string) (*RegisterResult, error) {
	deviceID, ok := util.NormalizeDeviceID(req.DeviceID)
	if !ok {
		return nil, ErrInvalidDeviceID
	}

	now := s.clock()
	online := model.LiveStatusOnline
	upd := &repository.DeviceUpdate{
		Name:       util.TrimmedOrNil(req.Name),
		DeviceType: util.TrimmedOrNil(req.DeviceType),
		AppVersion: util.TrimmedOrNil(req.AppVersion),
		LocalIP:    util.TrimmedOrNil(req.LocalIP),
		ExternalIP: optionalString(sourceAddr),
		LiveStatus: &online,
		Activate:   true,
	}
	if len(req.Capabilities) > 0 && string(req.Capabilities) != "null" {
		upd.Capabilities = datatypes.JSON(req.Capabilities)
	}

	previous, device, err := s.deviceRepo.Upsert(ctx, deviceID, upd, now)
	if err != nil {
		return nil, fmt.Errorf("upsert device: %w", err)
	}

	token, err := s.jwtService.GenerateDeviceToken(deviceID, now)
	if err != nil {
		return nil, fmt.Errorf("generate device token: %w", err)
	}

	s.touch(ctx, deviceID, now)
	if previous == nil || previous.LiveStatusValue() != model.LiveStatusOnline {
		s.publish(ctx, deviceID, model.LiveStatusOnline, now)
	}

	message := "Device registered"
	if previous != nil {
		message = "Device re-registered"
	}
	s.activity.Append(ctx, ActivityEntry{
		Category:   model.ActivityConnection,
		DeviceID:   deviceID,
		Message:    message,
		Details:    map[string]interface{}{"name": device.Name, "device_type": device.DeviceType, "app_version": device.AppVersion},
		SourceAddr: sourceAddr,
	})
	s.log.Info().Str("device_id", deviceID).Bool("created", previous == nil).Msg("device registered")

	return &RegisterResult{Device: device, Token: token, Created: previous == nil}, nil
}

// HeartbeatRequest 心跳上报内容
// 播放与遥测字段每次整体覆盖，缺省即写入空值
type HeartbeatRequest struct {
	DeviceID                string   `json:"device_id"`
	Status                  *string  `json:"status,omitempty"`
	AppVersion              *string  `json:"app_version,omitempty"`
	LocalIP                 *string  `json:"local_ip,omitempty"`
	CurrentPresentationID   *int64   `json:"current_presentation_id,omitempty"`
	CurrentPresentationName *string  `json:"current_presentation_name,omitempty"`
	CurrentSlide            *int     `json:"current_slide,omitempty"`
	TotalSlides             *int     `json:"total_slides,omitempty"`
	LoopEnabled             *bool    `json:"loop_enabled,omitempty"`
	AutoplayEnabled         *bool    `json:"autoplay_enabled,omitempty"`
	UptimeSeconds           *int64   `json:"uptime_seconds,omitempty"`
	MemoryUsage             *float64 `json:"memory_usage,omitempty"`
	WifiStrength            *int     `json:"wifi_strength,omitempty"`
	ErrorMessage            *string  `json:"error_message,omitempty"`
}

// HeartbeatResult 心跳结果
type HeartbeatResult struct {
	Device   *model.Device
	Commands []model.Command
}

// Heartbeat 记录一次心跳并领取待执行命令
// 未知设备在心跳时自动创建
func (s *DeviceService) Heartbeat(ctx context.Context, req HeartbeatRequest, sourceAddr string) (*HeartbeatResult, error) {
	deviceID, ok := util.NormalizeDeviceID(req.DeviceID)
	if !ok {
		return nil, ErrInvalidDeviceID
	}

	status := model.LiveStatusOnline
	if req.Status != nil {
		if v := strings.ToLower(strings.TrimSpace(*req.Status)); v != "" {
			status = v
		}
	}
	if !model.IsValidLiveStatus(status) {
		return nil, ErrInvalidLiveStatus
	}

	errorMessage := util.TrimmedOrNil(req.ErrorMessage)
	now := s.clock()
	upd := &repository.DeviceUpdate{
		AppVersion: util.TrimmedOrNil(req.AppVersion),
		LocalIP:    util.TrimmedOrNil(req.LocalIP),
		ExternalIP: optionalString(sourceAddr),
		LiveStatus: &status,
		Playback: &repository.PlaybackState{
			CurrentPresentationID:   req.CurrentPresentationID,
			CurrentPresentationName: req.CurrentPresentationName,
			CurrentSlide:            req.CurrentSlide,
			TotalSlides:             req.TotalSlides,
			LoopEnabled:             req.LoopEnabled,
			AutoplayEnabled:         req.AutoplayEnabled,
			UptimeSeconds:           req.UptimeSeconds,
			MemoryUsage:             req.MemoryUsage,
			WifiStrength:            req.WifiStrength,
			LastError:               errorMessage,
		},
	}

	previous, device, err := s.deviceRepo.Upsert(ctx, deviceID, upd, now)
	if err != nil {
		return nil, fmt.Errorf("record heartbeat: %w", err)
	}

	s.touch(ctx, deviceID, now)

	switch {
	case previous == nil:
		s.activity.Append(ctx, ActivityEntry{
			Category:   model.ActivityConnection,
			DeviceID:   deviceID,
			Message:    "Device connected via heartbeat",
			Details:    map[string]interface{}{"status": status},
			SourceAddr: sourceAddr,
		})
		s.publish(ctx, deviceID, status, now)
	case previous.LiveStatusValue() != status:
		s.activity.Append(ctx, ActivityEntry{
			Category:   model.ActivityConnection,
			DeviceID:   deviceID,
			Message:    fmt.Sprintf("Status changed from %s to %s", displayStatus(previous.LiveStatusValue()), status),
			Details:    map[string]interface{}{"from": previous.LiveStatus, "to": status},
			SourceAddr: sourceAddr,
		})
		s.publish(ctx, deviceID, status, now)
	}

	if errorMessage != nil {
		s.activity.Append(ctx, ActivityEntry{
			Category:       model.ActivityError,
			DeviceID:       deviceID,
			PresentationID: req.CurrentPresentationID,
			Message:        *errorMessage,
			SourceAddr:     sourceAddr,
		})
	}

	cmds, err := s.commands.PollPending(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return &HeartbeatResult{Device: device, Commands: cmds}, nil
}

// Get 获取设备及其连通性
func (s *DeviceService) Get(ctx context.Context, deviceID string) (*DeviceView, error) {
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

// ListActiveCandidates 获取 maxAge 内有过心跳的设备
// maxAge <= 0 时返回全部设备
func (s *DeviceService) ListActiveCandidates(ctx context.Context, maxAge time.Duration) ([]DeviceView, error) {
	now := s.clock()
	var since time.Time
	if maxAge > 0 {
		since = now.Add(-maxAge)
	}
	devices, err := s.deviceRepo.ListSeenAfter(ctx, since)
	if err != nil {
		return nil, err
	}
	views := make([]DeviceView, len(devices))
	for i := range devices {
		views[i] = newDeviceView(&devices[i], s.thresholds, now)
	}
	return views, nil
}

// Deactivate 把设备标记为 inactive
// 设备下次注册时重新启用
func (s *DeviceService) Deactivate(ctx context.Context, deviceID, sourceAddr string) error {
	deviceID, ok := util.NormalizeDeviceID(deviceID)
	if !ok {
		return ErrInvalidDeviceID
	}
	n, err := s.deviceRepo.UpdateStoredStatus(ctx, deviceID, model.StoredStatusInactive)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	s.activity.Append(ctx, ActivityEntry{
		Category:   model.ActivityMaintenance,
		DeviceID:   deviceID,
		Message:    "Device deactivated",
		SourceAddr: sourceAddr,
	})
	return nil
}

// AssignPresentation 为设备指派演示文稿，presentationID 为 nil 时取消指派
func (s *DeviceService) AssignPresentation(ctx context.Context, deviceID string, presentationID *int64, sourceAddr string) error {
	deviceID, ok := util.NormalizeDeviceID(deviceID)
	if !ok {
		return ErrInvalidDeviceID
	}
	if presentationID != nil {
		exists, err := s.presentationRepo.ExistsActive(ctx, *presentationID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrPresentationNotFound
		}
	}

	n, err := s.deviceRepo.AssignPresentation(ctx, deviceID, presentationID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDeviceNotFound
	}

	message := "Presentation unassigned"
	if presentationID != nil {
		message = fmt.Sprintf("Presentation %d assigned", *presentationID)
	}
	s.activity.Append(ctx, ActivityEntry{
		Category:       model.ActivityMaintenance,
		DeviceID:       deviceID,
		PresentationID: presentationID,
		Message:        message,
		SourceAddr:     sourceAddr,
	})
	return nil
}

// touch 更新在线索引，失败只记录日志
func (s *DeviceService) touch(ctx context.Context, deviceID string, at time.Time) {
	if err := s.index.Touch(ctx, deviceID, at); err != nil {
		s.log.Warn().Err(err).Str("device_id", deviceID).Msg("failed to update presence index")
	}
}

// publish 广播状态变化，失败只记录日志
func (s *DeviceService) publish(ctx context.Context, deviceID, status string, at time.Time) {
	if err := s.index.PublishStatus(ctx, deviceID, status, at); err != nil {
		s.log.Warn().Err(err).Str("device_id", deviceID).Msg("failed to publish status change")
	}
}

// displayStatus 日志中展示的状态
func displayStatus(status string) string {
	if status == "" {
		return "unknown"
	}
	return status
}

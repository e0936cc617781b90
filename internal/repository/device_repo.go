// Package repository 提供数据访问层的实现
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"signage-server/internal/model"
)

// DeviceRepository 设备数据访问层
// 负责设备相关的所有数据库操作
type DeviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository 创建 DeviceRepository 实例
func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// PlaybackState 心跳上报的播放与遥测字段
// 每个字段都可以为空，写入时整体覆盖
type PlaybackState struct {
	CurrentPresentationID   *int64
	CurrentPresentationName *string
	CurrentSlide            *int
	TotalSlides             *int
	LoopEnabled             *bool
	AutoplayEnabled         *bool
	UptimeSeconds           *int64
	MemoryUsage             *float64
	WifiStrength            *int
	LastError               *string
}

// DeviceUpdate 一次注册或心跳要写入的内容
// 身份类字段为空时保留原值；LiveStatus 非空时覆盖；
// Playback 非空时整体覆盖（包括写入 NULL）
type DeviceUpdate struct {
	Name         *string
	DeviceType   *string
	LocalIP      *string
	ExternalIP   *string
	AppVersion   *string
	Capabilities datatypes.JSON

	LiveStatus *string
	Playback   *PlaybackState

	// Activate 为 true 时把 stored_status 置为 active（重新注册）
	Activate bool
}

// assignments 生成更新已有记录时使用的字段映射
func (u *DeviceUpdate) assignments() map[string]interface{} {
	fields := make(map[string]interface{})
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.DeviceType != nil {
		fields["device_type"] = *u.DeviceType
	}
	if u.LocalIP != nil {
		fields["local_ip"] = *u.LocalIP
	}
	if u.ExternalIP != nil {
		fields["external_ip"] = *u.ExternalIP
	}
	if u.AppVersion != nil {
		fields["app_version"] = *u.AppVersion
	}
	if len(u.Capabilities) > 0 {
		fields["capabilities"] = u.Capabilities
	}
	if u.LiveStatus != nil {
		fields["live_status"] = *u.LiveStatus
	}
	if u.Activate {
		fields["stored_status"] = model.StoredStatusActive
	}
	if p := u.Playback; p != nil {
		fields["current_presentation_id"] = p.CurrentPresentationID
		fields["current_presentation_name"] = p.CurrentPresentationName
		fields["current_slide"] = p.CurrentSlide
		fields["total_slides"] = p.TotalSlides
		fields["loop_enabled"] = p.LoopEnabled
		fields["autoplay_enabled"] = p.AutoplayEnabled
		fields["uptime_seconds"] = p.UptimeSeconds
		fields["memory_usage"] = p.MemoryUsage
		fields["wifi_strength"] = p.WifiStrength
		fields["last_error"] = p.LastError
	}
	return fields
}

// newDevice 根据更新内容构造一条新记录
func (u *DeviceUpdate) newDevice(deviceID string, now time.Time) model.Device {
	seen := now
	d := model.Device{
		DeviceID:     deviceID,
		Name:         u.Name,
		DeviceType:   u.DeviceType,
		LocalIP:      u.LocalIP,
		ExternalIP:   u.ExternalIP,
		AppVersion:   u.AppVersion,
		Capabilities: u.Capabilities,
		RegisteredAt: now,
		LastSeen:     &seen,
		StoredStatus: model.StoredStatusActive,
		LiveStatus:   u.LiveStatus,
	}
	if p := u.Playback; p != nil {
		d.CurrentPresentationID = p.CurrentPresentationID
		d.CurrentPresentationName = p.CurrentPresentationName
		d.CurrentSlide = p.CurrentSlide
		d.TotalSlides = p.TotalSlides
		d.LoopEnabled = p.LoopEnabled
		d.AutoplayEnabled = p.AutoplayEnabled
		d.UptimeSeconds = p.UptimeSeconds
		d.MemoryUsage = p.MemoryUsage
		d.WifiStrength = p.WifiStrength
		d.LastError = p.LastError
	}
	return d
}

// Upsert 创建或合并更新设备记录，并把 last_seen 推进到 now
// 同一设备的并发写入在行锁上串行化，last_seen 与 live_status 在同一事务内写入
// 返回:
//   - previous: 更新前的记录，新建时为 nil
//   - current: 更新后的记录
//   - error: 数据库错误
func (r *DeviceRepository) Upsert(ctx context.Context, deviceID string, upd *DeviceUpdate, now time.Time) (*model.Device, *model.Device, error) {
	previous, current, err := r.upsert(ctx, deviceID, upd, now)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 另一个请求抢先创建了同一设备，按更新路径重试一次
		previous, current, err = r.upsert(ctx, deviceID, upd, now)
	}
	return previous, current, err
}

func (r *DeviceRepository) upsert(ctx context.Context, deviceID string, upd *DeviceUpdate, now time.Time) (*model.Device, *model.Device, error) {
	var previous *model.Device
	var current model.Device

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Device
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("device_id = ?", deviceID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			current = upd.newDevice(deviceID, now)
			return tx.Create(&current).Error
		}
		if err != nil {
			return err
		}
		previous = &existing

		fields := upd.assignments()
		// last_seen 只增不减
		if existing.LastSeen == nil || now.After(*existing.LastSeen) {
			fields["last_seen"] = now
		}
		if len(fields) > 0 {
			if err := tx.Model(&model.Device{}).Where("id = ?", existing.ID).Updates(fields).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", existing.ID).Take(&current).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return previous, &current, nil
}

// GetByDeviceID 根据设备标识获取设备
// 返回:
//   - *model.Device: 设备对象，未找到返回 nil
//   - error: 数据库错误
func (r *DeviceRepository) GetByDeviceID(ctx context.Context, deviceID string) (*model.Device, error) {
	var device model.Device
	err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Take(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &device, nil
}

// ListSeenAfter 获取 last_seen 晚于 since 的设备
// since 为零值时返回全部设备
func (r *DeviceRepository) ListSeenAfter(ctx context.Context, since time.Time) ([]model.Device, error) {
	var devices []model.Device
	q := r.db.WithContext(ctx).Order("last_seen DESC").Order("id ASC")
	if !since.IsZero() {
		q = q.Where("last_seen > ?", since)
	}
	err := q.Find(&devices).Error
	return devices, err
}

// ForceOnline 把 last_seen 晚于 freshAfter 的设备强制置为 active + online
// 条件在写入时重新校验，期间变旧的设备不会被误改
// 返回:
//   - int64: 命中行数（0 或 1）
//   - error: 数据库错误
func (r *DeviceRepository) ForceOnline(ctx context.Context, deviceID string, freshAfter time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Device{}).
		Where("device_id = ? AND last_seen > ?", deviceID, freshAfter).
		Updates(map[string]interface{}{
			"stored_status": model.StoredStatusActive,
			"live_status":   model.LiveStatusOnline,
		})
	return result.RowsAffected, result.Error
}

// mismatchedScope 存储状态与运行状态矛盾的设备
func mismatchedScope(freshAfter time.Time) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("last_seen > ?", freshAfter).
			Where("stored_status = ?", model.StoredStatusActive).
			Where("(live_status IS NULL OR live_status NOT IN ?)",
				[]string{model.LiveStatusOnline, model.LiveStatusPlaying})
	}
}

// FixMismatched 批量修复窗口内所有矛盾设备
// 选择条件即更新条件，单条语句完成，不会覆盖并发心跳已经修正的记录
func (r *DeviceRepository) FixMismatched(ctx context.Context, freshAfter time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Device{}).
		Scopes(mismatchedScope(freshAfter)).
		Update("live_status", model.LiveStatusOnline)
	return result.RowsAffected, result.Error
}

// UpdateStoredStatus 更新设备生命周期状态
func (r *DeviceRepository) UpdateStoredStatus(ctx context.Context, deviceID, status string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Device{}).
		Where("device_id = ?", deviceID).
		Update("stored_status", status)
	return result.RowsAffected, result.Error
}

// AssignPresentation 指派演示文稿，presentationID 为 nil 时取消指派
func (r *DeviceRepository) AssignPresentation(ctx context.Context, deviceID string, presentationID *int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Device{}).
		Where("device_id = ?", deviceID).
		Update("assigned_presentation_id", presentationID)
	return result.RowsAffected, result.Error
}

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

// CommandRepository 远程命令数据访问层
type CommandRepository struct {
	db *gorm.DB
}

// NewCommandRepository 创建 CommandRepository 实例
func NewCommandRepository(db *gorm.DB) *CommandRepository {
	return &CommandRepository{db: db}
}

// Create 创建命令记录
func (r *CommandRepository) Create(ctx context.Context, cmd *model.Command) error {
	return r.db.WithContext(ctx).Create(cmd).Error
}

// GetForDevice 获取属于指定设备的命令
// 返回:
//   - *model.Command: 命令对象，未找到返回 nil
//   - error: 数据库错误
func (r *CommandRepository) GetForDevice(ctx context.Context, deviceID, commandID string) (*model.Command, error) {
	var cmd model.Command
	err := r.db.WithContext(ctx).
		Where("id = ? AND device_id = ?", commandID, deviceID).
		Take(&cmd).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cmd, nil
}

// ListByDevice 获取设备的命令，status 为空时返回全部
// 按优先级从高到低、入队时间从早到晚排序
func (r *CommandRepository) ListByDevice(ctx context.Context, deviceID, status string, limit int) ([]model.Command, error) {
	var cmds []model.Command
	q := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("priority DESC").
		Order("created_at ASC").
		Order("id ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&cmds).Error
	return cmds, err
}

// ClaimPending 取出设备最多 limit 条待执行命令，并记录一次下发
// 返回的命令 attempts 已加一，last_attempt_at 为 now
func (r *CommandRepository) ClaimPending(ctx context.Context, deviceID string, limit int, now time.Time) ([]model.Command, error) {
	var cmds []model.Command

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("device_id = ? AND status = ?", deviceID, model.CommandStatusPending).
			Order("priority DESC").
			Order("created_at ASC").
			Order("id ASC").
			Limit(limit).
			Find(&cmds).Error; err != nil {
			return err
		}
		if len(cmds) == 0 {
			return nil
		}

		ids := make([]string, len(cmds))
		for i := range cmds {
			ids[i] = cmds[i].ID
		}

		if err := tx.Model(&model.Command{}).
			Where("id IN ? AND status = ?", ids, model.CommandStatusPending).
			Updates(map[string]interface{}{
				"attempts":        gorm.Expr("attempts + ?", 1),
				"last_attempt_at": now,
			}).Error; err != nil {
			return err
		}

		attemptAt := now
		for i := range cmds {
			cmds[i].Attempts++
			cmds[i].LastAttemptAt = &attemptAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cmds, nil
}

// FailExhausted 把下发次数已达上限的待执行命令标记为失败
func (r *CommandRepository) FailExhausted(ctx context.Context, deviceID string, maxAttempts int, result datatypes.JSON, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Command{}).
		Where("device_id = ? AND status = ? AND attempts >= ?", deviceID, model.CommandStatusPending, maxAttempts).
		Updates(map[string]interface{}{
			"status":      model.CommandStatusFailed,
			"result":      result,
			"executed_at": now,
		})
	return res.RowsAffected, res.Error
}

// Complete 把命令从 pending 推进到终态
// 条件限定为 (id, device_id, pending)，其他设备无法确认不属于自己的命令
// 返回:
//   - int64: 命中行数，0 表示命令不存在、不属于该设备或已是终态
//   - error: 数据库错误
func (r *CommandRepository) Complete(ctx context.Context, deviceID, commandID, status string, result datatypes.JSON, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Command{}).
		Where("id = ? AND device_id = ? AND status = ?", commandID, deviceID, model.CommandStatusPending).
		Updates(map[string]interface{}{
			"status":      status,
			"result":      result,
			"executed_at": now,
		})
	return res.RowsAffected, res.Error
}

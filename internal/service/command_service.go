package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"signage-server/internal/model"
	"signage-server/internal/presence"
	"signage-server/internal/repository"
	"signage-server/pkg/util"
)

// 命令服务相关错误
var (
	ErrCommandNotFound      = errors.New("命令不存在")
	ErrInvalidCommandStatus = errors.New("无效的命令状态")
	ErrEmptyCommand         = errors.New("命令不能为空")
	ErrInvalidCommandID     = errors.New("命令 ID 不能为空")
)

// DefaultPollLimit 每次心跳默认最多下发的命令数
const DefaultPollLimit = 10

// exhaustedResult 超过最大下发次数时写入的结果
var exhaustedResult = datatypes.JSON(`{"error":"max attempts exceeded"}`)

// CommandService 远程命令队列
type CommandService struct {
	commandRepo *repository.CommandRepository
	deviceRepo  *repository.DeviceRepository
	activity    *ActivityService
	pollLimit   int
	maxAttempts int // 0 表示不限
	clock       presence.Clock
	log         zerolog.Logger
}

// NewCommandService 创建 CommandService 实例
func NewCommandService(
	commandRepo *repository.CommandRepository,
	deviceRepo *repository.DeviceRepository,
	activity *ActivityService,
	pollLimit int,
	maxAttempts int,
	clock presence.Clock,
	log zerolog.Logger,
) *CommandService {
	if pollLimit <= 0 {
		pollLimit = DefaultPollLimit
	}
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &CommandService{
		commandRepo: commandRepo,
		deviceRepo:  deviceRepo,
		activity:    activity,
		pollLimit:   pollLimit,
		maxAttempts: maxAttempts,
		clock:       clock,
		log:         log.With().Str("component", "commands").Logger(),
	}
}

// EnqueueRequest 下发命令请求
type EnqueueRequest struct {
	Command  string          `json:"command"`
	Params   json.RawMessage `json:"params,omitempty"`
	Priority int             `json:"priority"`
}

// Enqueue 为设备创建一条待执行命令
// 目标设备必须已经注册
func (s *CommandService) Enqueue(ctx context.Context, deviceID string, req EnqueueRequest, sourceAddr string) (*model.Command, error) {
	deviceID, ok := util.NormalizeDeviceID(deviceID)
	if !ok {
		return nil, ErrInvalidDeviceID
	}
	verb := strings.TrimSpace(req.Command)
	if verb == "" {
		return nil, ErrEmptyCommand
	}

	device, err := s.deviceRepo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, ErrDeviceNotFound
	}

	params := datatypes.JSON(`{}`)
	if len(req.Params) > 0 && string(req.Params) != "null" {
		params = datatypes.JSON(req.Params)
	}

	cmd := &model.Command{
		ID:        util.NewCommandID(),
		DeviceID:  deviceID,
		Command:   verb,
		Params:    params,
		Priority:  req.Priority,
		Status:    model.CommandStatusPending,
		CreatedAt: s.clock(),
	}
	if err := s.commandRepo.Create(ctx, cmd); err != nil {
		return nil, fmt.Errorf("create command: %w", err)
	}

	s.activity.Append(ctx, ActivityEntry{
		Category:   model.ActivityRemoteCommand,
		DeviceID:   deviceID,
		CommandID:  cmd.ID,
		Message:    fmt.Sprintf("Command %q queued", verb),
		Details:    map[string]interface{}{"command": verb, "priority": req.Priority},
		SourceAddr: sourceAddr,
	})
	return cmd, nil
}

// PollPending 取出设备的待执行命令并记录一次下发
// 开启最大下发次数时，先把已达上限的命令标记为失败
func (s *CommandService) PollPending(ctx context.Context, deviceID string) ([]model.Command, error) {
	now := s.clock()

	if s.maxAttempts > 0 {
		n, err := s.commandRepo.FailExhausted(ctx, deviceID, s.maxAttempts, exhaustedResult, now)
		if err != nil {
			return nil, fmt.Errorf("fail exhausted commands: %w", err)
		}
		if n > 0 {
			s.log.Info().Str("device_id", deviceID).Int64("count", n).Msg("gave up on commands after max attempts")
			s.activity.Append(ctx, ActivityEntry{
				Category: model.ActivityRemoteCommand,
				DeviceID: deviceID,
				Message:  fmt.Sprintf("%d command(s) failed after %d attempts", n, s.maxAttempts),
				Details:  map[string]interface{}{"count": n, "max_attempts": s.maxAttempts},
			})
		}
	}

	cmds, err := s.commandRepo.ClaimPending(ctx, deviceID, s.pollLimit, now)
	if err != nil {
		return nil, fmt.Errorf("claim pending commands: %w", err)
	}
	for i := range cmds {
		s.activity.Append(ctx, ActivityEntry{
			Category:  model.ActivityRemoteCommand,
			DeviceID:  deviceID,
			CommandID: cmds[i].ID,
			Message:   fmt.Sprintf("Command %q delivered", cmds[i].Command),
			Details:   map[string]interface{}{"attempts": cmds[i].Attempts},
		})
	}
	return cmds, nil
}

// AckRequest 设备回报命令结果
type AckRequest struct {
	CommandID string          `json:"command_id"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// AckResult 回报处理结果
type AckResult struct {
	Command *model.Command
	// AlreadyAcknowledged 命令此前已进入终态，本次回报未做修改
	AlreadyAcknowledged bool
}

// NormalizeAckStatus 把设备回报的状态映射为终态
func NormalizeAckStatus(status string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "executed", "done", "success", "completed":
		return model.CommandStatusExecuted, true
	case "failed", "error":
		return model.CommandStatusFailed, true
	}
	return "", false
}

// Ack 把设备自己的待执行命令推进到终态
// 重复回报已是终态的命令视为成功，不再修改
func (s *CommandService) Ack(ctx context.Context, deviceID string, req AckRequest, sourceAddr string) (*AckResult, error) {
	deviceID, ok := util.NormalizeDeviceID(deviceID)
	if !ok {
		return nil, ErrInvalidDeviceID
	}
	commandID := strings.TrimSpace(req.CommandID)
	if commandID == "" {
		return nil, ErrInvalidCommandID
	}
	status, ok := NormalizeAckStatus(req.Status)
	if !ok {
		return nil, ErrInvalidCommandStatus
	}

	var result datatypes.JSON
	if len(req.Result) > 0 && string(req.Result) != "null" {
		result = datatypes.JSON(req.Result)
	}

	n, err := s.commandRepo.Complete(ctx, deviceID, commandID, status, result, s.clock())
	if err != nil {
		return nil, fmt.Errorf("complete command: %w", err)
	}

	cmd, err := s.commandRepo.GetForDevice(ctx, deviceID, commandID)
	if err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, ErrCommandNotFound
	}
	if n == 0 {
		return &AckResult{Command: cmd, AlreadyAcknowledged: cmd.IsTerminal()}, nil
	}

	s.activity.Append(ctx, ActivityEntry{
		Category:   model.ActivityRemoteCommand,
		DeviceID:   deviceID,
		CommandID:  commandID,
		Message:    fmt.Sprintf("Command %q %s", cmd.Command, status),
		Details:    map[string]interface{}{"status": status, "attempts": cmd.Attempts},
		SourceAddr: sourceAddr,
	})
	return &AckResult{Command: cmd}, nil
}

// List 查询设备的命令，status 为空时返回全部，不影响下发次数
func (s *CommandService) List(ctx context.Context, deviceID, status string) ([]model.Command, error) {
	deviceID, ok := util.NormalizeDeviceID(deviceID)
	if !ok {
		return nil, ErrInvalidDeviceID
	}
	switch status {
	case "", model.CommandStatusPending, model.CommandStatusExecuted, model.CommandStatusFailed:
	default:
		return nil, ErrInvalidCommandStatus
	}
	return s.commandRepo.ListByDevice(ctx, deviceID, status, 0)
}

// ListPending 查询设备的待执行命令
func (s *CommandService) ListPending(ctx context.Context, deviceID string) ([]model.Command, error) {
	return s.List(ctx, deviceID, model.CommandStatusPending)
}

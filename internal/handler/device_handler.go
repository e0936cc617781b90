package handler

import (
	"github.com/gin-gonic/gin"

	"signage-server/internal/service"
	"signage-server/pkg/response"
)

// DeviceHandler 播放终端请求处理器
type DeviceHandler struct {
	deviceService       *service.DeviceService
	commandService      *service.CommandService
	presentationService *service.PresentationService
}

// NewDeviceHandler 创建 DeviceHandler 实例
func NewDeviceHandler(
	deviceService *service.DeviceService,
	commandService *service.CommandService,
	presentationService *service.PresentationService,
) *DeviceHandler {
	return &DeviceHandler{
		deviceService:       deviceService,
		commandService:      commandService,
		presentationService: presentationService,
	}
}

// Register 设备注册
// @Summary 注册设备
// @Description 首次运行或重新安装时调用，未知设备会被创建，已有设备合并更新
// @Tags 设备
// @Accept json
// @Produce json
// @Param X-Device-ID header string false "设备ID"
// @Param body body service.RegisterRequest true "设备信息"
// @Router /api/v1/device/register [post]
func (h *DeviceHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, "请求体不是有效的 JSON")
		return
	}
	req.DeviceID = deviceIDFrom(c, req.DeviceID)

	result, err := h.deviceService.Register(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		writeError(c, err, "设备注册失败")
		return
	}

	response.Success(c, gin.H{
		"device_id": result.Device.DeviceID,
		"token":     result.Token,
		"created":   result.Created,
		"device":    result.Device,
	})
}

// Heartbeat 心跳
// @Summary 心跳上报
// @Description 上报播放状态与遥测数据，返回待执行命令
// @Tags 设备
// @Accept json
// @Produce json
// @Param X-Device-ID header string true "设备ID"
// @Param body body service.HeartbeatRequest false "状态数据"
// @Router /api/v1/device/heartbeat [post]
func (h *DeviceHandler) Heartbeat(c *gin.Context) {
	var req service.HeartbeatRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.BadRequest(c, "请求体不是有效的 JSON")
		return
	}
	req.DeviceID = deviceIDFrom(c, req.DeviceID)

	result, err := h.deviceService.Heartbeat(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		writeError(c, err, "心跳处理失败")
		return
	}

	response.Success(c, gin.H{
		"device_id":   result.Device.DeviceID,
		"live_status": result.Device.LiveStatus,
		"commands":    result.Commands,
	})
}

// ackBody 命令回报请求体，device_id 仅在没有请求头时使用
type ackBody struct {
	DeviceID string `json:"device_id"`
	service.AckRequest
}

// AckCommand 命令执行结果回报
// 重复回报已完成的命令返回成功，already_acknowledged 为 true
func (h *DeviceHandler) AckCommand(c *gin.Context) {
	var body ackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	result, err := h.commandService.Ack(c.Request.Context(), deviceIDFrom(c, body.DeviceID), body.AckRequest, c.ClientIP())
	if err != nil {
		writeError(c, err, "命令回报失败")
		return
	}

	response.Success(c, gin.H{
		"command_id":           result.Command.ID,
		"status":               result.Command.Status,
		"already_acknowledged": result.AlreadyAcknowledged,
	})
}

// ListCommands 查看待执行命令，不计入下发次数
func (h *DeviceHandler) ListCommands(c *gin.Context) {
	cmds, err := h.commandService.ListPending(c.Request.Context(), deviceIDFrom(c, ""))
	if err != nil {
		writeError(c, err, "获取命令列表失败")
		return
	}
	response.Success(c, gin.H{"commands": cmds})
}

// AssignedPresentation 获取指派给设备的演示文稿
// 没有指派时返回 null
func (h *DeviceHandler) AssignedPresentation(c *gin.Context) {
	p, err := h.presentationService.Assigned(c.Request.Context(), deviceIDFrom(c, ""))
	if err != nil {
		writeError(c, err, "获取演示文稿失败")
		return
	}
	response.Success(c, gin.H{"assigned_presentation": p})
}

// DefaultPresentation 获取默认演示文稿
func (h *DeviceHandler) DefaultPresentation(c *gin.Context) {
	p, err := h.presentationService.Default(c.Request.Context())
	if err != nil {
		writeError(c, err, "获取演示文稿失败")
		return
	}
	response.Success(c, gin.H{"default_presentation": p})
}

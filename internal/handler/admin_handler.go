package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"signage-server/internal/service"
	"signage-server/pkg/response"
)

// AdminHandler 管理端请求处理器
type AdminHandler struct {
	deviceService    *service.DeviceService
	commandService   *service.CommandService
	reconcileService *service.ReconcileService
	activityService  *service.ActivityService
}

// NewAdminHandler 创建 AdminHandler 实例
func NewAdminHandler(
	deviceService *service.DeviceService,
	commandService *service.CommandService,
	reconcileService *service.ReconcileService,
	activityService *service.ActivityService,
) *AdminHandler {
	return &AdminHandler{
		deviceService:    deviceService,
		commandService:   commandService,
		reconcileService: reconcileService,
		activityService:  activityService,
	}
}

// ListDevices 设备列表
// max_age 为 Go 时长格式，例如 10m；省略时返回全部设备
// @Summary 设备列表
// @Tags 管理
// @Produce json
// @Param max_age query string false "最近心跳时间范围"
// @Router /api/v1/admin/devices [get]
func (h *AdminHandler) ListDevices(c *gin.Context) {
	var maxAge time.Duration
	if raw := c.Query("max_age"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			response.BadRequest(c, "无效的 max_age")
			return
		}
		maxAge = d
	}

	devices, err := h.deviceService.ListActiveCandidates(c.Request.Context(), maxAge)
	if err != nil {
		writeError(c, err, "获取设备列表失败")
		return
	}
	response.Success(c, gin.H{
		"count":   len(devices),
		"devices": devices,
	})
}

// GetDevice 设备详情
func (h *AdminHandler) GetDevice(c *gin.Context) {
	view, err := h.deviceService.Get(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		writeError(c, err, "获取设备信息失败")
		return
	}
	response.Success(c, gin.H{"device": view})
}

// DeactivateDevice 停用设备
func (h *AdminHandler) DeactivateDevice(c *gin.Context) {
	deviceID := c.Param("device_id")
	if err := h.deviceService.Deactivate(c.Request.Context(), deviceID, c.ClientIP()); err != nil {
		writeError(c, err, "停用设备失败")
		return
	}
	response.Success(c, gin.H{"device_id": deviceID})
}

// assignPresentationRequest 指派演示文稿请求，presentation_id 为 null 表示取消指派
type assignPresentationRequest struct {
	PresentationID *int64 `json:"presentation_id"`
}

// AssignPresentation 指派演示文稿
func (h *AdminHandler) AssignPresentation(c *gin.Context) {
	var req assignPresentationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	deviceID := c.Param("device_id")
	if err := h.deviceService.AssignPresentation(c.Request.Context(), deviceID, req.PresentationID, c.ClientIP()); err != nil {
		writeError(c, err, "指派演示文稿失败")
		return
	}
	response.Success(c, gin.H{
		"device_id":       deviceID,
		"presentation_id": req.PresentationID,
	})
}

// EnqueueCommand 下发命令
// @Summary 下发远程命令
// @Description 命令在设备下次心跳时下发
// @Tags 管理
// @Accept json
// @Produce json
// @Param device_id path string true "设备ID"
// @Param body body service.EnqueueRequest true "命令"
// @Router /api/v1/admin/devices/{device_id}/commands [post]
func (h *AdminHandler) EnqueueCommand(c *gin.Context) {
	var req service.EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	cmd, err := h.commandService.Enqueue(c.Request.Context(), c.Param("device_id"), req, c.ClientIP())
	if err != nil {
		writeError(c, err, "下发命令失败")
		return
	}
	response.Created(c, gin.H{
		"command_id": cmd.ID,
		"command":    cmd,
	})
}

// ListCommands 命令历史，可按 status 过滤
func (h *AdminHandler) ListCommands(c *gin.Context) {
	cmds, err := h.commandService.List(c.Request.Context(), c.Param("device_id"), c.Query("status"))
	if err != nil {
		writeError(c, err, "获取命令列表失败")
		return
	}
	response.Success(c, gin.H{"commands": cmds})
}

// ListActivity 最近的活动日志
func (h *AdminHandler) ListActivity(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(c, "无效的 limit")
			return
		}
		limit = n
	}

	entries, err := h.activityService.List(c.Request.Context(), c.Query("device_id"), c.Query("category"), limit)
	if err != nil {
		writeError(c, err, "获取活动日志失败")
		return
	}
	response.Success(c, gin.H{"entries": entries})
}

// PresenceSummary 连通性统计
func (h *AdminHandler) PresenceSummary(c *gin.Context) {
	sum, err := h.reconcileService.Summary(c.Request.Context())
	if err != nil {
		writeError(c, err, "统计设备状态失败")
		return
	}
	response.Success(c, gin.H{
		"online":     sum.Online,
		"idle":       sum.Idle,
		"offline":    sum.Offline,
		"total":      sum.Total,
		"mismatched": sum.Mismatched,
		"source":     sum.Source,
	})
}

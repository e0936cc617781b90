package handler

import (
	"github.com/gin-gonic/gin"

	"signage-server/internal/service"
	"signage-server/pkg/response"
)

// MaintenanceHandler 状态检查与修复
type MaintenanceHandler struct {
	reconcileService *service.ReconcileService
}

// NewMaintenanceHandler 创建 MaintenanceHandler 实例
func NewMaintenanceHandler(reconcileService *service.ReconcileService) *MaintenanceHandler {
	return &MaintenanceHandler{reconcileService: reconcileService}
}

// GetStatus 检查单个设备
// @Summary 检查设备状态
// @Tags 维护
// @Produce json
// @Param device_id path string true "设备ID"
// @Router /api/v1/maintenance/devices/{device_id}/status [get]
func (h *MaintenanceHandler) GetStatus(c *gin.Context) {
	view, err := h.reconcileService.CheckOne(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		writeError(c, err, "获取设备状态失败")
		return
	}
	response.Success(c, gin.H{
		"device":     view,
		"tier":       view.Tier,
		"mismatched": view.Mismatched,
	})
}

// FixStatus 修复单个设备
// 超出修复窗口时不做修改，fixed 为 false
// @Summary 修复设备状态
// @Tags 维护
// @Produce json
// @Param device_id path string true "设备ID"
// @Router /api/v1/maintenance/devices/{device_id}/fix [post]
func (h *MaintenanceHandler) FixStatus(c *gin.Context) {
	ctx := c.Request.Context()
	deviceID := c.Param("device_id")

	fixed, err := h.reconcileService.FixOne(ctx, deviceID, c.ClientIP())
	if err != nil {
		writeError(c, err, "修复设备状态失败")
		return
	}
	view, err := h.reconcileService.CheckOne(ctx, deviceID)
	if err != nil {
		writeError(c, err, "获取设备状态失败")
		return
	}

	affected := 0
	if fixed {
		affected = 1
	}
	response.Success(c, gin.H{
		"fixed":    fixed,
		"affected": affected,
		"device":   view,
	})
}

// GetAllIssues 列出所有状态矛盾的设备
func (h *MaintenanceHandler) GetAllIssues(c *gin.Context) {
	issues, err := h.reconcileService.GetAllIssues(c.Request.Context())
	if err != nil {
		writeError(c, err, "获取问题设备失败")
		return
	}
	response.Success(c, gin.H{
		"count":   len(issues),
		"devices": issues,
	})
}

// FixAllIssues 批量修复
func (h *MaintenanceHandler) FixAllIssues(c *gin.Context) {
	n, err := h.reconcileService.FixAll(c.Request.Context(), c.ClientIP())
	if err != nil {
		writeError(c, err, "批量修复失败")
		return
	}
	response.Success(c, gin.H{"affected": n})
}

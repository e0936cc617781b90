// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"signage-server/internal/middleware"
	"signage-server/internal/service"
	"signage-server/pkg/response"
)

// deviceIDFrom 解析请求所属的设备
// 优先级：设备令牌 / X-Device-ID 请求头 > 请求体 > 查询参数
func deviceIDFrom(c *gin.Context, bodyID string) string {
	if id := middleware.GetDeviceID(c); id != "" {
		return id
	}
	if id := strings.TrimSpace(bodyID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Query("device_id"))
}

// bindOptionalJSON 解析可选的 JSON 请求体，空请求体不算错误
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeError 把服务层错误映射为 HTTP 响应
// 未识别的错误记录到请求日志并返回 500
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrInvalidDeviceID),
		errors.Is(err, service.ErrInvalidLiveStatus),
		errors.Is(err, service.ErrInvalidCommandStatus),
		errors.Is(err, service.ErrInvalidCommandID),
		errors.Is(err, service.ErrEmptyCommand):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrDeviceNotFound):
		response.DeviceNotFound(c)
	case errors.Is(err, service.ErrCommandNotFound):
		response.CommandNotFound(c)
	case errors.Is(err, service.ErrPresentationNotFound):
		response.NotFound(c, err.Error())
	default:
		_ = c.Error(err)
		response.InternalError(c, fallback)
	}
}

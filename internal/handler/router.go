package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"signage-server/internal/middleware"
	"signage-server/pkg/jwt"
	"signage-server/pkg/response"
)

// Handlers 路由使用的全部处理器
type Handlers struct {
	Device      *DeviceHandler
	Maintenance *MaintenanceHandler
	Admin       *AdminHandler
}

// HealthCheck 检查依赖是否可用
type HealthCheck func(ctx context.Context) error

// NewRouter 创建 Gin 引擎并注册所有路由
func NewRouter(h Handlers, jwtService *jwt.JWTService, log zerolog.Logger, health HealthCheck) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	// 全局中间件
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DeviceIdentityMiddleware(jwtService))

	router.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "接口不存在")
	})
	router.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		if health != nil {
			if err := health(c.Request.Context()); err != nil {
				_ = c.Error(err)
				response.Error(c, http.StatusServiceUnavailable, "数据库不可用")
				return
			}
		}
		response.Success(c, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// 播放终端
	device := v1.Group("/device")
	{
		device.POST("/register", h.Device.Register)
		device.POST("/heartbeat", h.Device.Heartbeat)
		device.GET("/commands", h.Device.ListCommands)
		device.POST("/commands/ack", h.Device.AckCommand)
		device.GET("/presentation/assigned", h.Device.AssignedPresentation)
		device.GET("/presentation/default", h.Device.DefaultPresentation)
	}

	// 状态检查与修复
	maintenance := v1.Group("/maintenance")
	{
		maintenance.GET("/devices/:device_id/status", h.Maintenance.GetStatus)
		maintenance.POST("/devices/:device_id/fix", h.Maintenance.FixStatus)
		maintenance.GET("/issues", h.Maintenance.GetAllIssues)
		maintenance.POST("/issues/fix", h.Maintenance.FixAllIssues)
	}

	// 管理端
	admin := v1.Group("/admin")
	{
		admin.GET("/presence/summary", h.Admin.PresenceSummary)
		admin.GET("/activity", h.Admin.ListActivity)
		admin.GET("/devices", h.Admin.ListDevices)
		admin.GET("/devices/:device_id", h.Admin.GetDevice)
		admin.POST("/devices/:device_id/deactivate", h.Admin.DeactivateDevice)
		admin.PUT("/devices/:device_id/presentation", h.Admin.AssignPresentation)
		admin.POST("/devices/:device_id/commands", h.Admin.EnqueueCommand)
		admin.GET("/devices/:device_id/commands", h.Admin.ListCommands)
	}

	return router
}

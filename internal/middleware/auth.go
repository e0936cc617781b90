// Package middleware 提供 HTTP 请求的中间件
// 包括设备身份识别、CORS 跨域、日志记录等
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"signage-server/pkg/jwt"
)

// DeviceIDHeader 设备标识请求头
const DeviceIDHeader = "X-Device-ID"

// 上下文中的键
const (
	ctxDeviceID    = "device_id"
	ctxTokenDevice = "token_device"
)

// DeviceIdentityMiddleware 创建设备身份识别中间件
// 不做强制认证：
//   - 携带有效的设备 Bearer Token 时，以 Token 中的设备 ID 为准
//   - 否则读取 X-Device-ID 请求头
//
// 两者都没有时不写入上下文，由处理器回退到请求体或查询参数
func DeviceIdentityMiddleware(jwtService *jwt.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deviceID, ok := deviceFromBearer(c, jwtService); ok {
			c.Set(ctxDeviceID, deviceID)
			c.Set(ctxTokenDevice, true)
			c.Next()
			return
		}

		if header := strings.TrimSpace(c.GetHeader(DeviceIDHeader)); header != "" {
			c.Set(ctxDeviceID, header)
		}
		c.Next()
	}
}

// deviceFromBearer 解析 Authorization 头中的设备令牌
// Token 缺失、格式错误或校验失败都视为未携带
func deviceFromBearer(c *gin.Context, jwtService *jwt.JWTService) (string, bool) {
	if jwtService == nil {
		return "", false
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	claims, err := jwtService.ValidateDeviceToken(parts[1])
	if err != nil {
		return "", false
	}
	return claims.DeviceID, true
}

// GetDeviceID 从上下文获取设备 ID
// 返回:
//   - string: 设备 ID，未识别时返回空字符串
func GetDeviceID(c *gin.Context) string {
	v, exists := c.Get(ctxDeviceID)
	if !exists {
		return ""
	}
	s, _ := v.(string)
	return s
}

// IsTokenAuthenticated 设备 ID 是否来自有效的令牌
func IsTokenAuthenticated(c *gin.Context) bool {
	return c.GetBool(ctxTokenDevice)
}

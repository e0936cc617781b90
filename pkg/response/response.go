// Package response 提供统一的 HTTP 响应格式
// 成功响应总是包含 success 与 server_time，失败响应只有 error 字段
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ServerTimeFormat server_time 字段的格式
const ServerTimeFormat = time.RFC3339

// ErrorBody 失败响应结构
type ErrorBody struct {
	Error string `json:"error"`
}

// Now 返回服务端当前时间，测试时可替换
var Now = func() time.Time { return time.Now().UTC() }

// envelope 在数据上补充 success 与 server_time
func envelope(data gin.H) gin.H {
	body := gin.H{
		"success":     true,
		"server_time": Now().Format(ServerTimeFormat),
	}
	for k, v := range data {
		body[k] = v
	}
	return body
}

// Success 返回 200 成功响应
// 参数:
//   - c: Gin 上下文
//   - data: 顶层字段，会与 success、server_time 合并
func Success(c *gin.Context, data gin.H) {
	c.JSON(http.StatusOK, envelope(data))
}

// Created 返回 201 创建成功响应
func Created(c *gin.Context, data gin.H) {
	c.JSON(http.StatusCreated, envelope(data))
}

// Error 返回错误响应
// 参数:
//   - c: Gin 上下文
//   - httpCode: HTTP 状态码
//   - message: 错误信息
func Error(c *gin.Context, httpCode int, message string) {
	c.JSON(httpCode, ErrorBody{Error: message})
}

// BadRequest 返回 400 错误（请求参数错误）
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// NotFound 返回 404 错误（资源不存在）
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// MethodNotAllowed 返回 405 错误
func MethodNotAllowed(c *gin.Context) {
	Error(c, http.StatusMethodNotAllowed, "不支持的请求方法")
}

// InternalError 返回 500 错误（服务器内部错误）
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// DeviceNotFound 返回设备不存在错误
func DeviceNotFound(c *gin.Context) {
	NotFound(c, "设备不存在")
}

// CommandNotFound 返回命令不存在错误
func CommandNotFound(c *gin.Context) {
	NotFound(c, "命令不存在")
}

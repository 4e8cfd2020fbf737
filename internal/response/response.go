package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/sharedrop/internal/errors"
	"github.com/weiwangfds/sharedrop/internal/i18n"
	"github.com/weiwangfds/sharedrop/internal/logger"
)

// RequestIDKey gin上下文中请求ID的键
const RequestIDKey = "request_id"

// Response 统一返回值结构体
// @Description API统一响应格式
type Response struct {
	// 状态码，0表示成功，非0表示失败
	Code int `json:"code" example:"0"`
	// 响应消息
	Message string `json:"message" example:"success"`
	// 详细错误信息
	Details string `json:"details,omitempty"`
	// 响应数据
	Data interface{} `json:"data,omitempty"`
	// 请求ID，用于链路追踪
	RequestID string `json:"request_id,omitempty" example:"0b6c5a1e-8d0c-4d59-9a43-0f4d5e3c7a11"`
	// 时间戳
	Timestamp int64 `json:"timestamp" example:"1640995200"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusOK, Response{Code: 0, Message: message, Data: data})
}

// Created 201 创建成功响应
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, Response{Code: 0, Message: "success", Data: data})
}

// Error 按指定HTTP状态码返回错误响应
func Error(c *gin.Context, status int, code apperrors.ErrorCode, message string) {
	write(c, status, Response{Code: int(code), Message: message})
}

// BadRequest 400错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, apperrors.ErrInvalidParams, message)
}

// Unauthorized 401错误响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, apperrors.ErrUnauthorized, message)
}

// Forbidden 403错误响应
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, apperrors.ErrForbidden, message)
}

// NotFound 404错误响应
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, apperrors.ErrNotFound, message)
}

// InternalServerError 500错误响应
func InternalServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, apperrors.ErrInternalServer, message)
}

// FromError 将业务错误渲染为统一错误响应
// 参数:
//   - c: gin上下文
//   - err: 业务错误，非 AppError 一律视为服务器内部错误
//
// 用途:
//   - 状态码由 AppError.HTTPStatus 决定
//   - 消息按请求的 Accept-Language 重新翻译
//   - 5xx 错误的原始信息只写日志，不返回给客户端
func FromError(c *gin.Context, err error) {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		appErr = apperrors.Wrap(apperrors.ErrInternalServer, "", err)
	}

	status := appErr.HTTPStatus()
	lang := i18n.GetInstance().Negotiate(c.GetHeader("Accept-Language"))
	resp := Response{
		Code:    int(appErr.Code),
		Message: apperrors.GetErrorMessageWithLang(appErr.Code, lang),
		Details: appErr.Details,
	}

	if status >= http.StatusInternalServerError {
		logger.WithFields(map[string]interface{}{
			"request_id": getRequestID(c),
			"path":       c.Request.URL.Path,
			"code":       appErr.Code,
		}).WithError(err).Error("请求处理失败")
		resp.Details = ""
	}

	_ = c.Error(err)
	write(c, status, resp)
}

// AbortWithError 渲染错误响应并中止后续处理器，供中间件使用
func AbortWithError(c *gin.Context, err error) {
	FromError(c, err)
	c.Abort()
}

// write 填充请求ID和时间戳后输出JSON
func write(c *gin.Context, status int, resp Response) {
	resp.RequestID = getRequestID(c)
	resp.Timestamp = time.Now().Unix()
	c.JSON(status, resp)
}

// getRequestID 从gin上下文中获取请求ID，用于链路追踪
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}

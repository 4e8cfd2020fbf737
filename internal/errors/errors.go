package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/weiwangfds/sharedrop/internal/i18n"
)

// ErrorCode 错误码类型
type ErrorCode int

// 定义错误码常量
const (
	// 通用错误码 (1000-1999)
	ErrSuccess            ErrorCode = 0    // 成功
	ErrInternalServer     ErrorCode = 1000 // 服务器内部错误
	ErrInvalidParams      ErrorCode = 1001 // 参数错误
	ErrUnauthorized       ErrorCode = 1002 // 未授权
	ErrForbidden          ErrorCode = 1003 // 禁止访问
	ErrNotFound           ErrorCode = 1004 // 资源未找到
	ErrConflict           ErrorCode = 1005 // 资源冲突
	ErrTooManyRequests    ErrorCode = 1006 // 请求过于频繁
	ErrServiceUnavailable ErrorCode = 1007 // 服务不可用

	// 分享相关错误码 (2000-2999)
	ErrShareNotFound        ErrorCode = 2000 // 分享不存在、已过期或已用尽
	ErrAliasTaken           ErrorCode = 2001 // 别名已被占用
	ErrAliasInvalid         ErrorCode = 2002 // 别名不合法
	ErrAliasExhausted       ErrorCode = 2003 // 随机别名重试耗尽
	ErrSharePasswordInvalid ErrorCode = 2004 // 分享密码错误
	ErrFileTooLarge         ErrorCode = 2005 // 文件大小超限
	ErrFileTypeNotAllowed   ErrorCode = 2006 // 文件类型不允许
	ErrFileMissing          ErrorCode = 2007 // 缺少上传文件
	ErrEmailRequired        ErrorCode = 2008 // 缺少邮箱

	// 内容存储相关错误码 (3000-3999)
	ErrContentWrite        ErrorCode = 3000 // 内容写入失败
	ErrContentRead         ErrorCode = 3001 // 内容读取失败
	ErrContentDelete       ErrorCode = 3002 // 内容删除失败
	ErrStorageNotSupported ErrorCode = 3003 // 存储提供商不支持

	// 数据库相关错误码 (4000-4999)
	ErrDatabaseConnection ErrorCode = 4000 // 数据库连接错误
	ErrDatabaseQuery      ErrorCode = 4001 // 数据库查询错误
	ErrDatabaseInsert     ErrorCode = 4002 // 数据库插入错误
	ErrDatabaseUpdate     ErrorCode = 4003 // 数据库更新错误
	ErrDatabaseDelete     ErrorCode = 4004 // 数据库删除错误
	ErrDatabaseTimeout    ErrorCode = 4005 // 数据库操作超时

	// 身份认证相关错误码 (5000-5999)
	ErrTokenInvalid       ErrorCode = 5000 // 令牌无效
	ErrTokenMissing       ErrorCode = 5001 // 缺少令牌
	ErrCredentialsInvalid ErrorCode = 5002 // 用户名或密码错误
	ErrUserExists         ErrorCode = 5003 // 用户已存在
)

// AppError 应用错误结构体
// @Description 应用程序统一错误格式
type AppError struct {
	// 错误码
	Code ErrorCode `json:"code"`
	// 错误消息
	Message string `json:"message"`
	// 详细错误信息
	Details string `json:"details,omitempty"`
	// 原始错误
	OriginalError error `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误，支持 errors.Is / errors.As 沿链查找
func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// Is 按错误码比较，使 errors.Is(err, ErrShareNotFoundError) 对任意同码错误成立
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus 将错误码映射为HTTP状态码
// 返回值:
//   - int: 参数类错误 400，认证类 401，禁止 403，不存在 404，冲突 409，限流 429，其余 500
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrInvalidParams, ErrAliasInvalid, ErrFileTooLarge, ErrFileTypeNotAllowed,
		ErrFileMissing, ErrEmailRequired:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrSharePasswordInvalid, ErrTokenInvalid, ErrTokenMissing,
		ErrCredentialsInvalid:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound, ErrShareNotFound:
		return http.StatusNotFound
	case ErrConflict, ErrAliasTaken, ErrUserExists:
		return http.StatusConflict
	case ErrTooManyRequests:
		return http.StatusTooManyRequests
	case ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable 内部错误可重试，其余错误重试无意义
func (e *AppError) Retryable() bool {
	return e.HTTPStatus() >= http.StatusInternalServerError
}

// WithDetails 添加详细错误信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithOriginalError 添加原始错误
func (e *AppError) WithOriginalError(err error) *AppError {
	e.OriginalError = err
	if e.Details == "" && err != nil {
		e.Details = err.Error()
	}
	return e
}

// New 创建新的应用错误
// 参数:
//   - code: 错误码
//   - message: 错误消息
//
// 返回值:
//   - *AppError: 应用错误实例
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Of 使用默认语言的错误消息创建应用错误
func Of(code ErrorCode) *AppError {
	return New(code, GetErrorMessage(code))
}

// NewWithDetails 创建带详细信息的应用错误
func NewWithDetails(code ErrorCode, message string, details string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Wrap 包装原始错误
// 参数:
//   - code: 错误码
//   - message: 错误消息，为空时使用错误码对应的默认消息
//   - err: 原始错误
//
// 返回值:
//   - *AppError: 应用错误实例
func Wrap(code ErrorCode, message string, err error) *AppError {
	if message == "" {
		message = GetErrorMessage(code)
	}
	appErr := &AppError{
		Code:          code,
		Message:       message,
		OriginalError: err,
	}
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// IsAppError 判断错误链中是否包含应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 从错误链中提取应用错误
// 返回值:
//   - *AppError: 应用错误实例
//   - bool: 是否成功提取
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// 预定义的错误，仅用于 errors.Is 比较，不要在其上调用 WithDetails
var (
	ErrInternalServerError = New(ErrInternalServer, "internal")
	ErrInvalidParameters   = New(ErrInvalidParams, "invalid")
	ErrUnauthorizedAccess  = New(ErrUnauthorized, "unauthorized")
	ErrForbiddenAccess     = New(ErrForbidden, "forbidden")
	ErrResourceNotFound    = New(ErrNotFound, "not found")
	ErrConflictError       = New(ErrConflict, "conflict")

	ErrShareNotFoundError        = New(ErrShareNotFound, "share not found")
	ErrAliasTakenError           = New(ErrAliasTaken, "alias taken")
	ErrAliasInvalidError         = New(ErrAliasInvalid, "alias invalid")
	ErrAliasExhaustedError       = New(ErrAliasExhausted, "alias exhausted")
	ErrSharePasswordInvalidError = New(ErrSharePasswordInvalid, "password invalid")

	ErrTokenInvalidError       = New(ErrTokenInvalid, "token invalid")
	ErrCredentialsInvalidError = New(ErrCredentialsInvalid, "credentials invalid")
	ErrUserExistsError         = New(ErrUserExists, "user exists")
)

// 错误码到i18n键的映射
var errorCodeToKeyMap = map[ErrorCode]string{
	ErrSuccess:            "success",
	ErrInternalServer:     "internal_server_error",
	ErrInvalidParams:      "invalid_params",
	ErrUnauthorized:       "unauthorized",
	ErrForbidden:          "forbidden",
	ErrNotFound:           "not_found",
	ErrConflict:           "conflict",
	ErrTooManyRequests:    "too_many_requests",
	ErrServiceUnavailable: "service_unavailable",

	ErrShareNotFound:        "share_not_found",
	ErrAliasTaken:           "share_alias_taken",
	ErrAliasInvalid:         "share_alias_invalid",
	ErrAliasExhausted:       "share_alias_exhausted",
	ErrSharePasswordInvalid: "share_password_invalid",
	ErrFileTooLarge:         "share_file_too_large",
	ErrFileTypeNotAllowed:   "share_file_type_invalid",
	ErrFileMissing:          "share_file_missing",
	ErrEmailRequired:        "share_email_required",

	ErrContentWrite:        "content_write_failed",
	ErrContentRead:         "content_read_failed",
	ErrContentDelete:       "content_delete_failed",
	ErrStorageNotSupported: "content_provider_unsupported",

	ErrDatabaseConnection: "database_connection",
	ErrDatabaseQuery:      "database_query",
	ErrDatabaseInsert:     "database_insert",
	ErrDatabaseUpdate:     "database_update",
	ErrDatabaseDelete:     "database_delete",
	ErrDatabaseTimeout:    "database_timeout",

	ErrTokenInvalid:       "auth_token_invalid",
	ErrTokenMissing:       "auth_token_missing",
	ErrCredentialsInvalid: "auth_credentials_invalid",
	ErrUserExists:         "auth_user_exists",
}

// GetErrorMessage 根据错误码获取错误消息（使用默认语言）
func GetErrorMessage(code ErrorCode) string {
	return GetErrorMessageWithLang(code, i18n.GetInstance().GetDefaultLanguage())
}

// GetErrorMessageWithLang 根据错误码和语言获取错误消息
// 参数:
//   - code: 错误码
//   - lang: 语言代码，如 zh-CN、en-US
//
// 返回值:
//   - string: 错误消息
func GetErrorMessageWithLang(code ErrorCode, lang string) string {
	key, exists := errorCodeToKeyMap[code]
	if !exists {
		key = "unknown_error"
	}
	return i18n.GetInstance().Translate(key, lang)
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/sharedrop/internal/errors"
	"github.com/weiwangfds/sharedrop/internal/logger"
	"github.com/weiwangfds/sharedrop/internal/response"
)

const identityKey = "identity"

// Authenticator 校验令牌并返回用户ID
type Authenticator interface {
	Authenticate(raw string) (string, error)
}

// Identity 已认证的调用者
type Identity struct {
	UserID string
}

// IdentityFrom 取出当前请求的身份，匿名请求返回 false
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// OptionalAuth 可选认证
// 没有 Authorization 头按匿名处理；头格式错误或令牌无效返回 401，不会降级为匿名
func OptionalAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		if !authenticate(c, auth, header) {
			return
		}
		c.Next()
	}
}

// RequireAuth 必须认证
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.AbortWithError(c, apperrors.Of(apperrors.ErrTokenMissing))
			return
		}
		if !authenticate(c, auth, header) {
			return
		}
		c.Next()
	}
}

// authenticate 解析 Bearer 令牌，失败时已写入响应并中止
func authenticate(c *gin.Context, auth Authenticator, header string) bool {
	raw, ok := bearerToken(header)
	if !ok {
		logger.WithField("request_id", GetRequestID(c)).Warn("Authorization 头格式错误")
		response.AbortWithError(c, apperrors.Of(apperrors.ErrTokenInvalid).WithDetails("malformed authorization header"))
		return false
	}
	userID, err := auth.Authenticate(raw)
	if err != nil {
		logger.WithField("request_id", GetRequestID(c)).WithError(err).Warn("身份令牌校验失败")
		response.AbortWithError(c, err)
		return false
	}
	c.Set(identityKey, Identity{UserID: userID})
	return true
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

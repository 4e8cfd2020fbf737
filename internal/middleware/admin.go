package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/sharedrop/internal/errors"
	"github.com/weiwangfds/sharedrop/internal/response"
)

// AdminTokenHeader 管理令牌请求头
const AdminTokenHeader = "X-Admin-Token"

// AdminToken 管理接口鉴权
// 未配置管理令牌时管理接口全部禁用
func AdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			response.AbortWithError(c, apperrors.Of(apperrors.ErrForbidden).WithDetails("admin api disabled"))
			return
		}
		got := c.GetHeader(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.AbortWithError(c, apperrors.Of(apperrors.ErrForbidden))
			return
		}
		c.Next()
	}
}

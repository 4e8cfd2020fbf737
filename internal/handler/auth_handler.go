package handler

import (
	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/sharedrop/internal/errors"
	"github.com/weiwangfds/sharedrop/internal/response"
	"github.com/weiwangfds/sharedrop/internal/service/auth"
)

// AuthHandler 注册与登录处理器
type AuthHandler struct {
	auth auth.Service
}

// NewAuthHandler 创建注册与登录处理器
func NewAuthHandler(svc auth.Service) *AuthHandler {
	return &AuthHandler{auth: svc}
}

// Register 用户注册
// @Summary 注册用户
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body auth.RegisterRequest true "注册信息"
// @Success 201 {object} response.Response{data=auth.TokenResult}
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperrors.Wrap(apperrors.ErrInvalidParams, "", err))
		return
	}
	res, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, res)
}

// Login 用户登录
// @Summary 登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body auth.LoginRequest true "登录信息(邮箱或用户名)"
// @Success 200 {object} response.Response{data=auth.TokenResult}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperrors.Wrap(apperrors.ErrInvalidParams, "", err))
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, res)
}

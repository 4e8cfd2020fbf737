// Package auth 提供用户注册、登录与身份令牌
// 身份只用于区分分享所有者，未登录用户仍可匿名上传
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/weiwangfds/sharedrop/internal/database"
	apperrors "github.com/weiwangfds/sharedrop/internal/errors"
	"github.com/weiwangfds/sharedrop/internal/logger"
	"github.com/weiwangfds/sharedrop/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// 用户名与密码长度限制
const (
	minUsernameLen = 3
	maxUsernameLen = 64
	minPasswordLen = 6
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest 登录请求
// Email 与 Username 二选一，同时提供时以 Email 为准
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

// TokenResult 登录/注册成功后返回的令牌
type TokenResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
}

// Service 身份服务接口
type Service interface {
	// Register 注册用户并签发令牌
	// 返回:
	//   *TokenResult - 令牌信息
	//   error - 参数错误返回 InvalidParams，用户名或邮箱已存在返回 UserExists
	Register(ctx context.Context, req RegisterRequest) (*TokenResult, error)

	// Login 校验邮箱(或用户名)与密码并签发令牌
	// 两者都未提供返回 InvalidParams，用户不存在与密码错误返回同一个错误
	Login(ctx context.Context, req LoginRequest) (*TokenResult, error)

	// Authenticate 校验令牌，返回用户ID
	Authenticate(raw string) (string, error)
}

type authService struct {
	users  repository.UserRepository
	tokens *TokenManager
	cost   int
}

// NewService 创建身份服务
func NewService(users repository.UserRepository, tokens *TokenManager, bcryptCost int) Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &authService{users: users, tokens: tokens, cost: bcryptCost}
}

// Register 注册用户
func (s *authService) Register(ctx context.Context, req RegisterRequest) (*TokenResult, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return nil, apperrors.Of(apperrors.ErrInvalidParams).WithDetails("username length must be 3-64")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.Of(apperrors.ErrInvalidParams).WithDetails("invalid email")
	}
	if len(req.Password) < minPasswordLen {
		return nil, apperrors.Of(apperrors.ErrInvalidParams).WithDetails("password too short")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperrors.Of(apperrors.ErrInvalidParams).WithDetails("password too long")
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, "", err)
	}

	user := &database.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, apperrors.Of(apperrors.ErrUserExists)
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabaseInsert, "", err)
	}

	logger.WithField("username", username).Info("用户注册成功")
	return s.issue(user)
}

// Login 用户登录
func (s *authService) Login(ctx context.Context, req LoginRequest) (*TokenResult, error) {
	var (
		user *database.User
		err  error
	)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	switch {
	case email != "":
		user, err = s.users.GetByEmail(ctx, email)
	case username != "":
		user, err = s.users.GetByUsername(ctx, username)
	default:
		return nil, apperrors.Of(apperrors.ErrInvalidParams).WithDetails("email or username required")
	}
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperrors.Of(apperrors.ErrCredentialsInvalid)
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, "", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, apperrors.Of(apperrors.ErrCredentialsInvalid)
	}
	return s.issue(user)
}

// Authenticate 校验令牌
func (s *authService) Authenticate(raw string) (string, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrTokenInvalid, "", err)
	}
	return claims.Subject, nil
}

func (s *authService) issue(user *database.User) (*TokenResult, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, "", err)
	}
	return &TokenResult{
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		UserID:    user.ID,
		Username:  user.Username,
	}, nil
}

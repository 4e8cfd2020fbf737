package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/sharedrop/config"
	"github.com/weiwangfds/sharedrop/internal/database"
	apperrors "github.com/weiwangfds/sharedrop/internal/errors"
	"github.com/weiwangfds/sharedrop/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) (Service, *TokenManager) {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	tokens, err := NewTokenManager("test-secret", "sharedrop", time.Hour)
	require.NoError(t, err)
	return NewService(repository.NewUserRepository(db, time.Second), tokens, bcrypt.MinCost), tokens
}

func codeOf(t *testing.T, err error) apperrors.ErrorCode {
	t.Helper()
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Code
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "Alice@Example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Token)
	assert.NotEmpty(t, reg.UserID)

	userID, err := svc.Authenticate(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, userID)

	login, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, login.UserID)

	t.Run("按邮箱登录不区分大小写", func(t *testing.T) {
		byEmail, err := svc.Login(ctx, LoginRequest{Email: " ALICE@example.com", Password: "secret123"})
		require.NoError(t, err)
		assert.Equal(t, reg.UserID, byEmail.UserID)

		_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret123"})
		assert.Equal(t, apperrors.ErrCredentialsInvalid, codeOf(t, err))
	})

	t.Run("缺少邮箱和用户名", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginRequest{Password: "secret123"})
		assert.Equal(t, apperrors.ErrInvalidParams, codeOf(t, err))
	})

	t.Run("重复注册", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{Username: "alice", Email: "other@example.com", Password: "secret123"})
		assert.Equal(t, apperrors.ErrUserExists, codeOf(t, err))
		_, err = svc.Register(ctx, RegisterRequest{Username: "bob", Email: "alice@example.com", Password: "secret123"})
		assert.Equal(t, apperrors.ErrUserExists, codeOf(t, err))
	})

	t.Run("密码错误与用户不存在返回同一错误", func(t *testing.T) {
		_, err := svc.Login(ctx, LoginRequest{Username: "alice", Password: "wrong"})
		assert.Equal(t, apperrors.ErrCredentialsInvalid, codeOf(t, err))
		_, err = svc.Login(ctx, LoginRequest{Username: "nobody", Password: "secret123"})
		assert.Equal(t, apperrors.ErrCredentialsInvalid, codeOf(t, err))
	})
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"用户名过短", RegisterRequest{Username: "ab", Email: "a@b.com", Password: "secret123"}},
		{"邮箱非法", RegisterRequest{Username: "alice", Email: "nope", Password: "secret123"}},
		{"密码过短", RegisterRequest{Username: "alice", Email: "a@b.com", Password: "123"}},
		{"密码过长", RegisterRequest{Username: "alice", Email: "a@b.com", Password: strings.Repeat("x", 80)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.req)
			assert.Equal(t, apperrors.ErrInvalidParams, codeOf(t, err))
		})
	}
}

func TestTokenManager(t *testing.T) {
	m, err := NewTokenManager("secret", "sharedrop", time.Minute)
	require.NoError(t, err)

	t.Run("签发并解析", func(t *testing.T) {
		raw, exp, err := m.Issue("u1", "alice")
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

		claims, err := m.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.Subject)
		assert.Equal(t, "alice", claims.Username)
	})

	t.Run("格式错误", func(t *testing.T) {
		_, err := m.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("密钥不同", func(t *testing.T) {
		other, err := NewTokenManager("other", "sharedrop", time.Minute)
		require.NoError(t, err)
		raw, _, err := other.Issue("u1", "alice")
		require.NoError(t, err)
		_, err = m.Parse(raw)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("已过期", func(t *testing.T) {
		raw, _, err := m.Issue("u1", "alice")
		require.NoError(t, err)
		m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		defer func() { m.now = time.Now }()
		_, err = m.Parse(raw)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("拒绝none算法", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "sharedrop",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.Parse(raw)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("空密钥", func(t *testing.T) {
		_, err := NewTokenManager("", "", 0)
		assert.Error(t, err)
	})
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Authenticate("garbage")
	assert.Equal(t, apperrors.ErrTokenInvalid, codeOf(t, err))
}

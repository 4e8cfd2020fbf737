package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiwangfds/sharedrop/internal/database"
	"gorm.io/gorm"
)

// UserRepository 用户存储接口
type UserRepository interface {
	Create(ctx context.Context, user *database.User) error
	GetByUsername(ctx context.Context, username string) (*database.User, error)
	GetByEmail(ctx context.Context, email string) (*database.User, error)
	GetByID(ctx context.Context, id string) (*database.User, error)
}

// GormUserRepository 基于 gorm 的用户存储
type GormUserRepository struct {
	db        *gorm.DB
	opTimeout time.Duration
}

// NewUserRepository 创建用户存储
func NewUserRepository(db *gorm.DB, opTimeout time.Duration) *GormUserRepository {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &GormUserRepository{db: db, opTimeout: opTimeout}
}

// Create 插入用户，用户名或邮箱冲突返回 ErrUserExists
func (r *GormUserRepository) Create(ctx context.Context, user *database.User) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByUsername 按用户名查询
func (r *GormUserRepository) GetByUsername(ctx context.Context, username string) (*database.User, error) {
	return r.getOne(ctx, "username = ?", username)
}

// GetByEmail 按邮箱查询，邮箱在注册时已统一为小写
func (r *GormUserRepository) GetByEmail(ctx context.Context, email string) (*database.User, error) {
	return r.getOne(ctx, "email = ?", email)
}

// GetByID 按ID查询
func (r *GormUserRepository) GetByID(ctx context.Context, id string) (*database.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *GormUserRepository) getOne(ctx context.Context, query string, arg interface{}) (*database.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	var user database.User
	err := r.db.WithContext(ctx).Where(query, arg).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

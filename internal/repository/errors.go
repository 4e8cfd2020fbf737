// Package repository 封装分享记录与用户的持久化访问
// 所有并发约束(别名唯一、下载次数上限)都由数据库的唯一索引和条件更新保证
package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// 仓储层哨兵错误，调用方使用 errors.Is 判断
var (
	ErrShareNotFound = errors.New("share record not found")
	ErrAliasTaken    = errors.New("alias already taken")
	ErrLimitReached  = errors.New("download limit reached")
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
)

// isUniqueViolation 判断是否为唯一索引冲突
// gorm 开启 TranslateError 后返回 gorm.ErrDuplicatedKey，旧驱动只能匹配错误文本
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

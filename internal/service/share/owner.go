package share

import (
	"strings"

	"github.com/weiwangfds/sharedrop/internal/database"
)

// Owner 分享所有者，只有 Anonymous 与 Registered 两种取值
type Owner interface {
	// Kind 返回持久化使用的所有者类型
	Kind() string
	isOwner()
}

// Anonymous 匿名上传者，可选填写邮箱用于之后查询和删除
type Anonymous struct {
	Email string
}

// Registered 已登录用户
type Registered struct {
	UserID string
}

// Kind 所有者类型
func (Anonymous) Kind() string { return database.OwnerKindAnonymous }

// Kind 所有者类型
func (Registered) Kind() string { return database.OwnerKindRegistered }

func (Anonymous) isOwner()  {}
func (Registered) isOwner() {}

// NormalizeEmail 统一邮箱格式，比较时不区分大小写
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// OwnerOf 从记录还原所有者
func OwnerOf(rec *database.ShareRecord) Owner {
	if rec.OwnerKind == database.OwnerKindRegistered {
		return Registered{UserID: rec.OwnerID}
	}
	return Anonymous{Email: rec.OwnerEmail}
}

// Owns 判断给定所有者是否拥有记录
// 匿名所有者必须提供非空且匹配的邮箱
func Owns(owner Owner, rec *database.ShareRecord) bool {
	switch o := owner.(type) {
	case Registered:
		return o.UserID != "" && rec.OwnerKind == database.OwnerKindRegistered && rec.OwnerID == o.UserID
	case Anonymous:
		email := NormalizeEmail(o.Email)
		return email != "" && rec.OwnerKind == database.OwnerKindAnonymous && rec.OwnerEmail == email
	default:
		return false
	}
}

// applyOwner 将所有者写入记录字段
func applyOwner(rec *database.ShareRecord, owner Owner) {
	rec.OwnerKind = owner.Kind()
	switch o := owner.(type) {
	case Registered:
		rec.OwnerID = o.UserID
	case Anonymous:
		rec.OwnerEmail = NormalizeEmail(o.Email)
	}
}

package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 分享所有者类型
const (
	OwnerKindAnonymous  = "anonymous"
	OwnerKindRegistered = "registered"
)

// ShareRecord 分享记录模型
// 一条记录对应一个可下载的文件链接，过期或次数用尽后被物理删除
// 注意: 不使用软删除，删除后别名立即可被重新分配
type ShareRecord struct {
	// 记录唯一标识符，创建时自动生成UUID
	ID string `gorm:"type:varchar(36);primaryKey" json:"id"`

	// 下载链接中的别名，全局唯一且创建后不可修改
	Alias string `gorm:"type:varchar(64);not null;uniqueIndex:idx_share_records_alias" json:"alias"`

	// 内容存储中的内部键，与别名和原始文件名无关
	StorageKey string `gorm:"type:varchar(255);not null" json:"-"`

	// 上传时的原始文件名(已清洗)
	OriginalName string `gorm:"type:varchar(255);not null" json:"original_name"`

	// 文件大小(字节)
	SizeBytes int64 `gorm:"not null;default:0" json:"size_bytes"`

	// 嗅探得到的MIME类型
	ContentType string `gorm:"type:varchar(128)" json:"content_type"`

	// 内容SHA256校验值
	ContentSHA256 string `gorm:"column:content_sha256;type:varchar(64)" json:"content_sha256"`

	// bcrypt 密码哈希，为空表示公开分享
	PasswordHash string `gorm:"type:varchar(255)" json:"-"`

	// 下载次数上限，创建后不可修改
	DownloadLimit int `gorm:"not null" json:"download_limit"`

	// 已成功下载次数，只能通过条件更新递增
	DownloadCount int `gorm:"not null;default:0" json:"download_count"`

	// 所有者类型: anonymous / registered
	OwnerKind string `gorm:"type:varchar(16);not null;index:idx_share_records_owner,priority:1" json:"owner_kind"`

	// 注册用户ID(弱引用，不建外键)
	OwnerID string `gorm:"type:varchar(36);index:idx_share_records_owner,priority:2" json:"owner_id,omitempty"`

	// 匿名上传时填写的邮箱
	OwnerEmail string `gorm:"type:varchar(255);index" json:"owner_email,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	// 过期时间 = 创建时间 + TTL
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

// TableName 指定表名
func (ShareRecord) TableName() string {
	return "share_records"
}

// BeforeCreate 创建前钩子，补全ID
func (s *ShareRecord) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// IsExpired 判断在给定时间点是否已过期
func (s *ShareRecord) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsExhausted 判断下载次数是否已用尽
func (s *ShareRecord) IsExhausted() bool {
	return s.DownloadCount >= s.DownloadLimit
}

// IsDead 过期或用尽的记录不再提供内容，即使尚未被回收
func (s *ShareRecord) IsDead(now time.Time) bool {
	return s.IsExpired(now) || s.IsExhausted()
}

// HasPassword 是否设置了访问密码
func (s *ShareRecord) HasPassword() bool {
	return s.PasswordHash != ""
}

// RemainingDownloads 剩余可下载次数
func (s *ShareRecord) RemainingDownloads() int {
	if s.IsExhausted() {
		return 0
	}
	return s.DownloadLimit - s.DownloadCount
}

// Package database 提供数据库迁移和初始化功能
package database

import (
	"github.com/weiwangfds/sharedrop/internal/logger"
	"gorm.io/gorm"
)

// Migrate 执行全部表结构迁移
// 参数: db *gorm.DB - GORM数据库连接实例
// 返回值: error - 迁移失败时返回错误信息
// 用途: 创建分享记录表和用户表，并建立回收扫描所需的复合索引
func Migrate(db *gorm.DB) error {
	logger.Debug("开始执行数据库迁移...")

	if err := db.AutoMigrate(
		&ShareRecord{}, // 分享记录表
		&User{},        // 用户表
	); err != nil {
		return err
	}

	if err := createShareIndexes(db); err != nil {
		return err
	}

	logger.Debug("数据库迁移完成")
	return nil
}

// createShareIndexes 创建分享记录表的辅助索引
// 用途: 优化按所有者列表查询和回收扫描
func createShareIndexes(db *gorm.DB) error {
	indexes := []string{
		// 所有者列表按创建时间倒序
		"CREATE INDEX IF NOT EXISTS idx_share_records_owner_created ON share_records(owner_id, created_at DESC)",
		// 邮箱列表按创建时间倒序
		"CREATE INDEX IF NOT EXISTS idx_share_records_email_created ON share_records(owner_email, created_at DESC)",
		// 回收扫描: 用尽条件无法走索引，过期条件按 expires_at 扫描
		"CREATE INDEX IF NOT EXISTS idx_share_records_counts ON share_records(download_count, download_limit)",
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			logger.Errorf("创建索引失败: %s, 错误: %v", indexSQL, err)
			return err
		}
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiwangfds/sharedrop/internal/database"
	"gorm.io/gorm"
)

// DefaultOpTimeout 单次存储操作的默认超时
const DefaultOpTimeout = 5 * time.Second

// ShareRepository 分享记录存储接口
type ShareRepository interface {
	// Create 插入新记录，别名冲突返回 ErrAliasTaken
	Create(ctx context.Context, rec *database.ShareRecord) error
	// GetByAlias 按别名查询，不存在返回 ErrShareNotFound
	GetByAlias(ctx context.Context, alias string) (*database.ShareRecord, error)
	// GetByID 按ID查询，不存在返回 ErrShareNotFound
	GetByID(ctx context.Context, id string) (*database.ShareRecord, error)
	// IncrementDownload 条件递增下载次数并返回递增后的记录
	IncrementDownload(ctx context.Context, id string) (*database.ShareRecord, error)
	// Delete 物理删除记录，返回是否确实删除了一行
	Delete(ctx context.Context, id string) (bool, error)
	// FindExpiredOrExhausted 按 (expires_at, id) 升序查询已过期或已用尽的记录
	// after 非空时只返回排在游标之后的记录
	FindExpiredOrExhausted(ctx context.Context, now time.Time, after *SweepCursor, limit int) ([]database.ShareRecord, error)
	// ListByOwner 列出注册用户的全部分享
	ListByOwner(ctx context.Context, userID string) ([]database.ShareRecord, error)
	// ListByEmail 列出匿名邮箱的全部分享
	ListByEmail(ctx context.Context, email string) ([]database.ShareRecord, error)
	// Stats 统计存活与待回收的记录
	Stats(ctx context.Context, now time.Time) (*ShareStats, error)
}

// ShareStats 分享记录统计
type ShareStats struct {
	LiveCount int64 `json:"live_count"`
	LiveBytes int64 `json:"live_bytes"`
	DeadCount int64 `json:"dead_count"`
	DeadBytes int64 `json:"dead_bytes"`
}

// SweepCursor 回收扫描的分页游标，取上一批最后一条记录
type SweepCursor struct {
	ExpiresAt time.Time
	ID        string
}

// CursorOf 以记录位置生成游标
func CursorOf(rec *database.ShareRecord) *SweepCursor {
	return &SweepCursor{ExpiresAt: rec.ExpiresAt, ID: rec.ID}
}

// GormShareRepository 基于 gorm 的分享记录存储
type GormShareRepository struct {
	db        *gorm.DB
	opTimeout time.Duration
}

// NewShareRepository 创建分享记录存储
// 参数:
//   - db: 数据库连接
//   - opTimeout: 单次操作超时，<=0 时使用 DefaultOpTimeout
func NewShareRepository(db *gorm.DB, opTimeout time.Duration) *GormShareRepository {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &GormShareRepository{db: db, opTimeout: opTimeout}
}

func (r *GormShareRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

// Create 插入新记录
// 插入本身即为别名占用，唯一索引冲突时返回 ErrAliasTaken
func (r *GormShareRepository) Create(ctx context.Context, rec *database.ShareRecord) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrAliasTaken, rec.Alias)
		}
		return fmt.Errorf("insert share record: %w", err)
	}
	return nil
}

// GetByAlias 按别名查询
func (r *GormShareRepository) GetByAlias(ctx context.Context, alias string) (*database.ShareRecord, error) {
	return r.getOne(ctx, "alias = ?", alias)
}

// GetByID 按ID查询
func (r *GormShareRepository) GetByID(ctx context.Context, id string) (*database.ShareRecord, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *GormShareRepository) getOne(ctx context.Context, query string, arg interface{}) (*database.ShareRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rec database.ShareRecord
	err := r.db.WithContext(ctx).Where(query, arg).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get share record: %w", err)
	}
	return &rec, nil
}

// IncrementDownload 条件递增下载次数
// 参数:
//   - id: 记录ID
//
// 返回值:
//   - *database.ShareRecord: 递增后的记录
//   - error: 次数已满返回 ErrLimitReached，记录不存在返回 ErrShareNotFound
//
// 用途:
//   - 递增只通过一条 UPDATE ... WHERE download_count < download_limit 完成，
//     并发请求不会超过上限
func (r *GormShareRepository) IncrementDownload(ctx context.Context, id string) (*database.ShareRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var rec database.ShareRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&database.ShareRecord{}).
			Where("id = ? AND download_count < download_limit", id).
			UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
		if result.Error != nil {
			return fmt.Errorf("increment download count: %w", result.Error)
		}

		if result.RowsAffected == 0 {
			err := tx.Select("id").Where("id = ?", id).Take(&rec).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrShareNotFound
			}
			if err != nil {
				return fmt.Errorf("check share record: %w", err)
			}
			return ErrLimitReached
		}

		return tx.Where("id = ?", id).Take(&rec).Error
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete 物理删除记录
// 记录已不存在时返回 false 且不报错，便于回收流程幂等
func (r *GormShareRepository) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&database.ShareRecord{})
	if result.Error != nil {
		return false, fmt.Errorf("delete share record: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindExpiredOrExhausted 查询待回收记录
// 参数:
//   - now: 判断过期的时间点
//   - after: 分页游标，为 nil 时从头开始
//   - limit: 单次最多返回的条数，<=0 表示不限制
//
// 用途:
//   - 回收失败的记录仍留在表中，按游标翻页可以跳过它们继续处理后面的记录
func (r *GormShareRepository) FindExpiredOrExhausted(ctx context.Context, now time.Time, after *SweepCursor, limit int) ([]database.ShareRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := r.db.WithContext(ctx).
		Where("(expires_at < ? OR download_count >= download_limit)", now.UTC())
	if after != nil {
		at := after.ExpiresAt.UTC()
		query = query.Where("(expires_at > ? OR (expires_at = ? AND id > ?))", at, at, after.ID)
	}
	query = query.Order("expires_at ASC").Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []database.ShareRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("find reclaimable records: %w", err)
	}
	return records, nil
}

// ListByOwner 列出注册用户的分享，按创建时间倒序
func (r *GormShareRepository) ListByOwner(ctx context.Context, userID string) ([]database.ShareRecord, error) {
	return r.list(ctx, "owner_kind = ? AND owner_id = ?", database.OwnerKindRegistered, userID)
}

// ListByEmail 列出匿名邮箱的分享，按创建时间倒序
func (r *GormShareRepository) ListByEmail(ctx context.Context, email string) ([]database.ShareRecord, error) {
	return r.list(ctx, "owner_kind = ? AND owner_email = ?", database.OwnerKindAnonymous, email)
}

func (r *GormShareRepository) list(ctx context.Context, query string, args ...interface{}) ([]database.ShareRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var records []database.ShareRecord
	if err := r.db.WithContext(ctx).Where(query, args...).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list share records: %w", err)
	}
	return records, nil
}

// Stats 统计存活与待回收的记录数和字节数
func (r *GormShareRepository) Stats(ctx context.Context, now time.Time) (*ShareStats, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	type aggregate struct {
		Count int64
		Bytes int64
	}
	const selectAgg = "COUNT(*) AS count, COALESCE(SUM(size_bytes), 0) AS bytes"
	const deadCond = "expires_at < ? OR download_count >= download_limit"

	var dead, total aggregate
	db := r.db.WithContext(ctx)
	if err := db.Model(&database.ShareRecord{}).Select(selectAgg).Where(deadCond, now.UTC()).Scan(&dead).Error; err != nil {
		return nil, fmt.Errorf("share stats: %w", err)
	}
	if err := db.Model(&database.ShareRecord{}).Select(selectAgg).Scan(&total).Error; err != nil {
		return nil, fmt.Errorf("share stats: %w", err)
	}

	return &ShareStats{
		LiveCount: total.Count - dead.Count,
		LiveBytes: total.Bytes - dead.Bytes,
		DeadCount: dead.Count,
		DeadBytes: dead.Bytes,
	}, nil
}

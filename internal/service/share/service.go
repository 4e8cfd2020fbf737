// Package share 实现分享链接的生命周期引擎
// 负责上传、下载计数、过期与次数上限判断以及失效分享的回收
package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/sharedrop/config"
	"github.com/weiwangfds/sharedrop/internal/database"
	apperrors "github.com/weiwangfds/sharedrop/internal/errors"
	"github.com/weiwangfds/sharedrop/internal/logger"
	"github.com/weiwangfds/sharedrop/internal/metrics"
	"github.com/weiwangfds/sharedrop/internal/repository"
	"github.com/weiwangfds/sharedrop/internal/service/alias"
	"github.com/weiwangfds/sharedrop/internal/service/storage"
	"golang.org/x/crypto/bcrypt"
)

// Service 分享服务接口
type Service interface {
	// Upload 上传文件并创建分享
	// 参数:
	//   req - 上传请求，Owner 为 Registered 时忽略邮箱
	// 返回:
	//   *UploadResult - 创建的记录与下载链接
	//   error - 参数错误、别名冲突、存储失败
	// 注意:
	//   - 内容写入后任何步骤失败都会删除已写入的内容
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)

	// Download 校验并打开分享内容
	// 参数:
	//   alias - 链接别名
	//   password - 访问密码，公开分享传空
	// 返回:
	//   *Download - 已计数的记录与内容流，调用方负责关闭
	//   error - 不存在/已失效返回 NotFound，密码错误返回 Unauthorized
	// 注意:
	//   - 本次下载使次数达到上限时不会立即回收，留给下一次访问或扫描
	Download(ctx context.Context, alias, password string) (*Download, error)

	// ListByOwner 列出注册用户的分享
	ListByOwner(ctx context.Context, userID string) ([]ShareView, error)

	// ListByEmail 列出匿名邮箱的分享
	ListByEmail(ctx context.Context, email string) ([]ShareView, error)

	// DeleteOwned 所有者删除分享，非本人的分享按不存在处理
	DeleteOwned(ctx context.Context, id string, owner Owner) error

	// Reclaim 回收分享: 先删除内容再删除记录，可重复调用
	Reclaim(ctx context.Context, rec *database.ShareRecord, trigger string) error

	// Sweep 批量回收已过期或已用尽的分享
	// 返回:
	//   int - 本次实际删除的记录数
	//   error - 查询待回收记录失败，单条回收失败只记录日志
	Sweep(ctx context.Context) (int, error)

	// Stats 统计存活与待回收的分享
	Stats(ctx context.Context) (*repository.ShareStats, error)
}

// Config 分享服务配置
type Config struct {
	BaseURL              string
	TTL                  time.Duration
	DefaultDownloadLimit int
	MaxFileSize          int64
	AllowedExtensions    []string
	SweepBatchSize       int
	StorageTimeout       time.Duration
	UploadTimeout        time.Duration
}

// ConfigFrom 从全局配置提取分享服务配置
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL:              cfg.Server.BaseURL,
		TTL:                  cfg.Share.TTL,
		DefaultDownloadLimit: cfg.Share.DefaultDownloadLimit,
		MaxFileSize:          cfg.Share.MaxFileSize,
		AllowedExtensions:    cfg.Share.AllowedExtensions,
		SweepBatchSize:       cfg.Share.SweepBatchSize,
		StorageTimeout:       cfg.Storage.OpTimeout,
		UploadTimeout:        cfg.Storage.UploadTimeout,
	}
}

// UploadRequest 上传请求
type UploadRequest struct {
	FileName       string
	Content        io.Reader
	PreferredAlias string
	Password       string
	DownloadLimit  string // 表单原始值，非法时使用默认值
	Owner          Owner
}

// UploadResult 上传结果
type UploadResult struct {
	Record *database.ShareRecord
	Link   string
}

// Download 下载结果
type Download struct {
	Record  *database.ShareRecord
	Content io.ReadCloser
}

// ShareView 列表展示用的分享信息，链接中不包含密码
type ShareView struct {
	ID               string    `json:"id"`
	Alias            string    `json:"alias"`
	OriginalFilename string    `json:"original_filename"`
	SizeBytes        int64     `json:"size_bytes"`
	ContentType      string    `json:"content_type"`
	DownloadCount    int       `json:"download_count"`
	DownloadLimit    int       `json:"download_limit"`
	HasPassword      bool      `json:"has_password"`
	State            State     `json:"state"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	DownloadLink     string    `json:"download_link"`
}

// Option 服务选项
type Option func(*shareService)

// WithClock 替换时钟，测试中用于模拟过期
func WithClock(now func() time.Time) Option {
	return func(s *shareService) { s.now = now }
}

// WithMetrics 注入指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *shareService) { s.metrics = m }
}

// WithHasher 替换密码哈希器
func WithHasher(h PasswordHasher) Option {
	return func(s *shareService) { s.hasher = h }
}

// WithAllocator 替换别名分配器
func WithAllocator(a *alias.Allocator) Option {
	return func(s *shareService) { s.allocator = a }
}

// shareService 分享服务实现
type shareService struct {
	repo      repository.ShareRepository
	store     storage.ContentStore
	allocator *alias.Allocator
	hasher    PasswordHasher
	metrics   *metrics.Metrics
	cfg       Config
	now       func() time.Time
}

// NewService 创建分享服务
// 参数:
//   - repo: 分享记录存储
//   - store: 内容存储
//   - cfg: 服务配置，零值字段使用默认值
func NewService(repo repository.ShareRepository, store storage.ContentStore, cfg Config, opts ...Option) Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 72 * time.Hour
	}
	if cfg.DefaultDownloadLimit <= 0 {
		cfg.DefaultDownloadLimit = 10
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 100 << 20
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = config.DefaultAllowedExtensions
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 500
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = 30 * time.Second
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 10 * time.Minute
	}

	s := &shareService{
		repo:      repo,
		store:     store,
		allocator: alias.NewAllocator(),
		hasher:    NewBcryptHasher(bcrypt.DefaultCost),
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload 上传文件并创建分享
func (s *shareService) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	name := SanitizeFileName(req.FileName)
	if name == "" || req.Content == nil {
		return nil, apperrors.Of(apperrors.ErrFileMissing)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !extensionAllowed(ext, s.cfg.AllowedExtensions) {
		return nil, apperrors.Of(apperrors.ErrFileTypeNotAllowed).WithDetails(ext)
	}

	owner := req.Owner
	if owner == nil {
		owner = Anonymous{}
	}
	if anon, ok := owner.(Anonymous); ok && strings.TrimSpace(anon.Email) != "" {
		if _, err := mail.ParseAddress(anon.Email); err != nil {
			return nil, apperrors.Of(apperrors.ErrInvalidParams).WithDetails("invalid email")
		}
	}

	limit := CoerceDownloadLimit(req.DownloadLimit, s.cfg.DefaultDownloadLimit)

	var passwordHash string
	if req.Password != "" {
		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			if errors.Is(err, bcrypt.ErrPasswordTooLong) {
				return nil, apperrors.Of(apperrors.ErrInvalidParams).WithDetails("password too long")
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, "", err)
		}
		passwordHash = hash
	}

	contentType, body, err := sniffContentType(newSizeLimitReader(req.Content, s.cfg.MaxFileSize))
	if err != nil {
		return nil, s.uploadReadError(err)
	}

	putCtx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	put, err := s.store.Put(putCtx, body, ext)
	cancel()
	if err != nil {
		s.metrics.RecordUpload("error", 0)
		return nil, s.uploadReadError(err)
	}

	now := s.now()
	rec := &database.ShareRecord{
		StorageKey:    put.Key,
		OriginalName:  name,
		SizeBytes:     put.Size,
		ContentType:   contentType,
		ContentSHA256: put.SHA256,
		PasswordHash:  passwordHash,
		DownloadLimit: limit,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.TTL),
	}
	applyOwner(rec, owner)

	_, err = s.allocator.Reserve(ctx, req.PreferredAlias, func(ctx context.Context, candidate string) error {
		rec.ID = ""
		rec.Alias = candidate
		if err := s.repo.Create(ctx, rec); err != nil {
			if errors.Is(err, repository.ErrAliasTaken) {
				return fmt.Errorf("%w: %w", alias.ErrTaken, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.discardContent(ctx, put.Key)
		s.metrics.RecordUpload("error", 0)
		return nil, mapAllocError(err)
	}

	s.metrics.RecordUpload("ok", put.Size)
	logger.WithFields(logrus.Fields{
		"alias":          rec.Alias,
		"size":           humanize.IBytes(uint64(put.Size)),
		"content_type":   contentType,
		"download_limit": limit,
		"owner_kind":     rec.OwnerKind,
	}).Info("分享创建成功")

	return &UploadResult{
		Record: rec,
		Link:   BuildLink(s.cfg.BaseURL, rec.Alias, req.Password),
	}, nil
}

// uploadReadError 将读取/写入上传流的错误映射为业务错误
func (s *shareService) uploadReadError(err error) error {
	if errors.Is(err, errFileTooLarge) {
		return apperrors.Of(apperrors.ErrFileTooLarge).
			WithDetails(fmt.Sprintf("limit %s", humanize.IBytes(uint64(s.cfg.MaxFileSize))))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ErrDatabaseTimeout, "", err)
	}
	return apperrors.Wrap(apperrors.ErrContentWrite, "", err)
}

// discardContent 补偿删除已写入但未能登记的内容
// 使用独立上下文，调用方取消后仍需完成清理
func (s *shareService) discardContent(ctx context.Context, key string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StorageTimeout)
	defer cancel()
	if err := s.store.Delete(cctx, key); err != nil {
		logger.WithFields(logrus.Fields{"storage_key": key}).WithError(err).Error("补偿删除内容失败，内容成为孤儿")
	}
}

// mapAllocError 将别名分配错误映射为业务错误
func mapAllocError(err error) error {
	switch {
	case errors.Is(err, alias.ErrInvalid):
		return apperrors.Wrap(apperrors.ErrAliasInvalid, "", err)
	case errors.Is(err, alias.ErrConflict):
		return apperrors.Wrap(apperrors.ErrAliasTaken, "", err)
	case errors.Is(err, alias.ErrExhausted):
		return apperrors.Wrap(apperrors.ErrAliasExhausted, "", err)
	default:
		return mapStoreError(err)
	}
}

// mapStoreError 将存储层错误映射为可重试的内部错误
func mapStoreError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ErrDatabaseTimeout, "", err)
	}
	return apperrors.Wrap(apperrors.ErrDatabaseQuery, "", err)
}

// Download 校验并打开分享内容
// 顺序: 查询 -> 失效判断(失效则回收) -> 校验密码 -> 打开内容 -> 条件递增
func (s *shareService) Download(ctx context.Context, aliasName, password string) (*Download, error) {
	rec, err := s.repo.GetByAlias(ctx, aliasName)
	if err != nil {
		if errors.Is(err, repository.ErrShareNotFound) {
			s.metrics.RecordDownload("not_found")
			return nil, apperrors.Of(apperrors.ErrShareNotFound)
		}
		return nil, mapStoreError(err)
	}

	if rec.IsDead(s.now()) {
		s.reclaimOnAccess(ctx, rec)
		s.metrics.RecordDownload("not_found")
		return nil, apperrors.Of(apperrors.ErrShareNotFound)
	}

	if !s.passwordMatches(rec, password) {
		s.metrics.RecordDownload("unauthorized")
		return nil, apperrors.Of(apperrors.ErrSharePasswordInvalid)
	}

	// 先打开内容再计数: 并发回收删除内容时，已打开的读取流仍然有效
	content, err := s.openContent(ctx, rec.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrContentNotFound) {
			logger.WithField("alias", rec.Alias).Warn("分享记录存在但内容缺失，执行回收")
			s.reclaimOnAccess(ctx, rec)
			s.metrics.RecordDownload("not_found")
			return nil, apperrors.Of(apperrors.ErrShareNotFound)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Wrap(apperrors.ErrDatabaseTimeout, "", err)
		}
		return nil, apperrors.Wrap(apperrors.ErrContentRead, "", err)
	}

	updated, err := s.repo.IncrementDownload(ctx, rec.ID)
	if err != nil {
		content.Close()
		if errors.Is(err, repository.ErrLimitReached) || errors.Is(err, repository.ErrShareNotFound) {
			s.reclaimOnAccess(ctx, rec)
			s.metrics.RecordDownload("not_found")
			return nil, apperrors.Of(apperrors.ErrShareNotFound)
		}
		return nil, mapStoreError(err)
	}

	s.metrics.RecordDownload("ok")
	return &Download{Record: updated, Content: content}, nil
}

// passwordMatches 公开分享只接受空密码，加密分享使用 bcrypt 常量时间比较
func (s *shareService) passwordMatches(rec *database.ShareRecord, password string) bool {
	if !rec.HasPassword() {
		return password == ""
	}
	if password == "" {
		return false
	}
	return s.hasher.Verify(rec.PasswordHash, password)
}

// openContent 打开内容流，超时只约束打开阶段，之后的传输随请求上下文结束
func (s *shareService) openContent(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(s.cfg.StorageTimeout, cancel)

	rc, err := s.store.Get(ctx, key)
	if !timer.Stop() {
		if err == nil {
			rc.Close()
		}
		cancel()
		return nil, fmt.Errorf("open content timed out after %s: %w", s.cfg.StorageTimeout, context.DeadlineExceeded)
	}
	if err != nil {
		cancel()
		return nil, err
	}
	return &cancelOnClose{ReadCloser: rc, cancel: cancel}, nil
}

// cancelOnClose 关闭读取流时释放上下文
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// reclaimOnAccess 访问路径上的回收，失败只记录日志，由扫描重试
func (s *shareService) reclaimOnAccess(ctx context.Context, rec *database.ShareRecord) {
	if _, err := s.reclaim(context.WithoutCancel(ctx), rec, metrics.TriggerAccess); err != nil {
		logger.WithFields(logrus.Fields{"alias": rec.Alias, "id": rec.ID}).
			WithError(err).Warn("访问时回收分享失败，等待扫描重试")
	}
}

// Reclaim 回收分享
func (s *shareService) Reclaim(ctx context.Context, rec *database.ShareRecord, trigger string) error {
	_, err := s.reclaim(ctx, rec, trigger)
	return err
}

// reclaim 先删内容后删记录
// 返回值:
//   - bool: 本次调用是否实际删除了记录
//   - error: 内容删除失败时保留记录，便于之后重试且不会遗留孤儿内容
func (s *shareService) reclaim(ctx context.Context, rec *database.ShareRecord, trigger string) (bool, error) {
	dctx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	err := s.store.Delete(dctx, rec.StorageKey)
	cancel()
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrContentDelete, "", err)
	}

	deleted, err := s.repo.Delete(ctx, rec.ID)
	if err != nil {
		return false, mapStoreError(err)
	}
	if deleted {
		s.metrics.RecordReclaim(trigger)
		logger.WithFields(logrus.Fields{
			"alias":   rec.Alias,
			"trigger": trigger,
		}).Debug("分享已回收")
	}
	return deleted, nil
}

// Sweep 批量回收
// 每批最多 SweepBatchSize 条，按 (expires_at, id) 游标翻页
// 回收失败的记录只记录日志并跳过，本轮继续处理其后的记录，下一轮从头重试
func (s *shareService) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(start)) }()

	now := s.now()
	total, failed := 0, 0
	var cursor *repository.SweepCursor
	for {
		records, err := s.repo.FindExpiredOrExhausted(ctx, now, cursor, s.cfg.SweepBatchSize)
		if err != nil {
			return total, mapStoreError(err)
		}

		for i := range records {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			deleted, err := s.reclaim(ctx, &records[i], metrics.TriggerSweep)
			if err != nil {
				failed++
				logger.WithFields(logrus.Fields{"alias": records[i].Alias, "id": records[i].ID}).
					WithError(err).Warn("扫描回收失败，下轮重试")
				continue
			}
			if deleted {
				total++
			}
		}

		if len(records) < s.cfg.SweepBatchSize {
			if failed > 0 {
				logger.WithFields(logrus.Fields{"reclaimed": total, "failed": failed}).
					Warn("本轮扫描存在回收失败的分享")
			}
			return total, nil
		}
		cursor = repository.CursorOf(&records[len(records)-1])
	}
}

// ListByOwner 列出注册用户的分享
func (s *shareService) ListByOwner(ctx context.Context, userID string) ([]ShareView, error) {
	if userID == "" {
		return nil, apperrors.Of(apperrors.ErrUnauthorized)
	}
	records, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return s.views(records), nil
}

// ListByEmail 列出匿名邮箱的分享
func (s *shareService) ListByEmail(ctx context.Context, email string) ([]ShareView, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperrors.Of(apperrors.ErrEmailRequired)
	}
	records, err := s.repo.ListByEmail(ctx, email)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return s.views(records), nil
}

// DeleteOwned 所有者删除分享
func (s *shareService) DeleteOwned(ctx context.Context, id string, owner Owner) error {
	if anon, ok := owner.(Anonymous); ok && NormalizeEmail(anon.Email) == "" {
		return apperrors.Of(apperrors.ErrEmailRequired)
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrShareNotFound) {
			return apperrors.Of(apperrors.ErrShareNotFound)
		}
		return mapStoreError(err)
	}
	if !Owns(owner, rec) {
		return apperrors.Of(apperrors.ErrShareNotFound)
	}

	_, err = s.reclaim(ctx, rec, metrics.TriggerOwner)
	return err
}

// Stats 统计存活与待回收的分享
func (s *shareService) Stats(ctx context.Context) (*repository.ShareStats, error) {
	stats, err := s.repo.Stats(ctx, s.now())
	if err != nil {
		return nil, mapStoreError(err)
	}
	return stats, nil
}

func (s *shareService) views(records []database.ShareRecord) []ShareView {
	now := s.now()
	views := make([]ShareView, 0, len(records))
	for i := range records {
		rec := &records[i]
		views = append(views, ShareView{
			ID:               rec.ID,
			Alias:            rec.Alias,
			OriginalFilename: rec.OriginalName,
			SizeBytes:        rec.SizeBytes,
			ContentType:      rec.ContentType,
			DownloadCount:    rec.DownloadCount,
			DownloadLimit:    rec.DownloadLimit,
			HasPassword:      rec.HasPassword(),
			State:            StateOf(rec, now),
			CreatedAt:        rec.CreatedAt,
			ExpiresAt:        rec.ExpiresAt,
			DownloadLink:     BuildLink(s.cfg.BaseURL, rec.Alias, ""),
		})
	}
	return views
}

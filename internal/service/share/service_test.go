package share

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/sharedrop/config"
	"github.com/weiwangfds/sharedrop/internal/database"
	apperrors "github.com/weiwangfds/sharedrop/internal/errors"
	"github.com/weiwangfds/sharedrop/internal/logger"
	"github.com/weiwangfds/sharedrop/internal/metrics"
	"github.com/weiwangfds/sharedrop/internal/repository"
	"github.com/weiwangfds/sharedrop/internal/service/storage"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingStore 记录写入过的键，用于检查补偿删除
// failing 中的键删除时返回错误，模拟对象存储拒绝删除
type recordingStore struct {
	storage.ContentStore
	mu      sync.Mutex
	keys    []string
	failing map[string]bool
}

var errDeleteRejected = errors.New("delete rejected by backend")

func (s *recordingStore) failDelete(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = make(map[string]bool, len(keys))
	for _, k := range keys {
		s.failing[k] = true
	}
}

func (s *recordingStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	fail := s.failing[key]
	s.mu.Unlock()
	if fail {
		return errDeleteRejected
	}
	return s.ContentStore.Delete(ctx, key)
}

func (s *recordingStore) Put(ctx context.Context, r io.Reader, ext string) (*storage.PutResult, error) {
	res, err := s.ContentStore.Put(ctx, r, ext)
	if err == nil {
		s.mu.Lock()
		s.keys = append(s.keys, res.Key)
		s.mu.Unlock()
	}
	return res, err
}

type testEnv struct {
	svc     Service
	repo    *repository.GormShareRepository
	fs      afero.Fs
	store   *recordingStore
	clock   *fakeClock
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	fs := afero.NewMemMapFs()
	store := &recordingStore{ContentStore: storage.NewLocalStore(fs)}
	repo := repository.NewShareRepository(db, 5*time.Second)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := metrics.New(prometheus.NewRegistry())

	cfg := Config{
		BaseURL:              "http://localhost:5000",
		TTL:                  time.Hour,
		DefaultDownloadLimit: 10,
		MaxFileSize:          1 << 20,
		AllowedExtensions:    []string{".txt", ".pdf", ".bin"},
		SweepBatchSize:       2,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	svc := NewService(repo, store, cfg,
		WithClock(clock.Now),
		WithMetrics(m),
		WithHasher(NewBcryptHasher(bcrypt.MinCost)),
	)
	return &testEnv{svc: svc, repo: repo, fs: fs, store: store, clock: clock, metrics: m}
}

func (e *testEnv) upload(t *testing.T, req UploadRequest) *UploadResult {
	t.Helper()
	if req.FileName == "" {
		req.FileName = "hello.txt"
	}
	if req.Content == nil {
		req.Content = strings.NewReader("hello world")
	}
	res, err := e.svc.Upload(context.Background(), req)
	require.NoError(t, err)
	return res
}

func (e *testEnv) contentExists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := afero.Exists(e.fs, key)
	require.NoError(t, err)
	return ok
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func readAll(t *testing.T, d *Download) string {
	t.Helper()
	defer d.Content.Close()
	b, err := io.ReadAll(d.Content)
	require.NoError(t, err)
	return string(b)
}

func TestUpload(t *testing.T) {
	t.Run("公开分享生成链接并记录元数据", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.upload(t, UploadRequest{PreferredAlias: "Report 2026!", DownloadLimit: "3"})

		assert.Equal(t, "Report2026", res.Record.Alias)
		assert.Equal(t, "http://localhost:5000/Report2026", res.Link)
		assert.Equal(t, 3, res.Record.DownloadLimit)
		assert.Equal(t, int64(11), res.Record.SizeBytes)
		assert.Equal(t, "hello.txt", res.Record.OriginalName)
		assert.Contains(t, res.Record.ContentType, "text/plain")
		assert.Len(t, res.Record.ContentSHA256, 64)
		assert.Equal(t, env.clock.Now().Add(time.Hour), res.Record.ExpiresAt)
		assert.Equal(t, database.OwnerKindAnonymous, res.Record.OwnerKind)
		assert.True(t, env.contentExists(t, res.Record.StorageKey))
		assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.UploadsTotal.WithLabelValues("ok")))
	})

	t.Run("加密分享的链接附带密码", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.upload(t, UploadRequest{PreferredAlias: "secret", Password: "p@ss word"})
		assert.Equal(t, "http://localhost:5000/secret?password=p%40ss+word", res.Link)
		assert.True(t, res.Record.HasPassword())
		assert.NotEqual(t, "p@ss word", res.Record.PasswordHash)
	})

	t.Run("非法下载次数使用默认值", func(t *testing.T) {
		env := newTestEnv(t)
		for _, raw := range []string{"", "abc", "0", "-5"} {
			res := env.upload(t, UploadRequest{DownloadLimit: raw})
			assert.Equal(t, 10, res.Record.DownloadLimit, "raw=%q", raw)
		}
	})

	t.Run("未指定别名时随机分配", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.upload(t, UploadRequest{})
		assert.Len(t, res.Record.Alias, 8)
	})

	t.Run("注册用户上传忽略邮箱", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.upload(t, UploadRequest{Owner: Registered{UserID: "user-1"}})
		assert.Equal(t, database.OwnerKindRegistered, res.Record.OwnerKind)
		assert.Equal(t, "user-1", res.Record.OwnerID)
		assert.Empty(t, res.Record.OwnerEmail)
	})

	t.Run("匿名邮箱统一小写", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.upload(t, UploadRequest{Owner: Anonymous{Email: " Alice@Example.COM "}})
		assert.Equal(t, "alice@example.com", res.Record.OwnerEmail)
	})
}

func TestUpload_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("缺少文件", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Upload(ctx, UploadRequest{FileName: "", Content: strings.NewReader("x")})
		assertCode(t, err, apperrors.ErrFileMissing)
	})

	t.Run("扩展名不在白名单", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Upload(ctx, UploadRequest{FileName: "run.exe", Content: strings.NewReader("MZ")})
		assertCode(t, err, apperrors.ErrFileTypeNotAllowed)
		assert.Empty(t, env.store.keys)
	})

	t.Run("非法邮箱", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Upload(ctx, UploadRequest{
			FileName: "a.txt", Content: strings.NewReader("x"), Owner: Anonymous{Email: "not-an-email"},
		})
		assertCode(t, err, apperrors.ErrInvalidParams)
	})

	t.Run("超过大小上限不留下内容", func(t *testing.T) {
		env := newTestEnv(t, func(c *Config) { c.MaxFileSize = 10 })
		_, err := env.svc.Upload(ctx, UploadRequest{FileName: "a.txt", Content: strings.NewReader("01234567890")})
		assertCode(t, err, apperrors.ErrFileTooLarge)
		assert.Empty(t, env.store.keys)
	})

	t.Run("恰好等于大小上限可以上传", func(t *testing.T) {
		env := newTestEnv(t, func(c *Config) { c.MaxFileSize = 10 })
		res := env.upload(t, UploadRequest{FileName: "a.txt", Content: strings.NewReader("0123456789")})
		assert.Equal(t, int64(10), res.Record.SizeBytes)
	})

	t.Run("别名冲突时删除已写入的内容", func(t *testing.T) {
		env := newTestEnv(t)
		first := env.upload(t, UploadRequest{PreferredAlias: "dup"})

		_, err := env.svc.Upload(ctx, UploadRequest{
			FileName: "b.txt", Content: strings.NewReader("second"), PreferredAlias: "dup",
		})
		assertCode(t, err, apperrors.ErrAliasTaken)

		require.Len(t, env.store.keys, 2)
		assert.True(t, env.contentExists(t, first.Record.StorageKey))
		assert.False(t, env.contentExists(t, env.store.keys[1]))
	})

	t.Run("保留字别名", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Upload(ctx, UploadRequest{
			FileName: "a.txt", Content: strings.NewReader("x"), PreferredAlias: "api",
		})
		assertCode(t, err, apperrors.ErrAliasTaken)
	})

	t.Run("过长别名", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Upload(ctx, UploadRequest{
			FileName: "a.txt", Content: strings.NewReader("x"), PreferredAlias: strings.Repeat("a", 65),
		})
		assertCode(t, err, apperrors.ErrAliasInvalid)
		assert.Empty(t, env.fsKeys(t))
	})
}

// fsKeys 返回仍存在的已写入内容
func (e *testEnv) fsKeys(t *testing.T) []string {
	t.Helper()
	var keys []string
	for _, k := range e.store.keys {
		if e.contentExists(t, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func TestDownload(t *testing.T) {
	ctx := context.Background()

	t.Run("公开分享下载并计数", func(t *testing.T) {
		env := newTestEnv(t)
		env.upload(t, UploadRequest{PreferredAlias: "pub", DownloadLimit: "5"})

		d, err := env.svc.Download(ctx, "pub", "")
		require.NoError(t, err)
		assert.Equal(t, "hello world", readAll(t, d))
		assert.Equal(t, 1, d.Record.DownloadCount)
		assert.Equal(t, 4, d.Record.RemainingDownloads())
	})

	t.Run("别名不存在", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Download(ctx, "nope", "")
		assertCode(t, err, apperrors.ErrShareNotFound)
	})

	t.Run("密码错误不计数", func(t *testing.T) {
		env := newTestEnv(t)
		env.upload(t, UploadRequest{PreferredAlias: "locked", Password: "right", DownloadLimit: "1"})

		for _, pw := range []string{"", "wrong"} {
			_, err := env.svc.Download(ctx, "locked", pw)
			assertCode(t, err, apperrors.ErrSharePasswordInvalid)
		}
		rec, err := env.repo.GetByAlias(ctx, "locked")
		require.NoError(t, err)
		assert.Equal(t, 0, rec.DownloadCount)

		d, err := env.svc.Download(ctx, "locked", "right")
		require.NoError(t, err)
		assert.Equal(t, "hello world", readAll(t, d))
	})

	t.Run("公开分享带密码访问被拒绝", func(t *testing.T) {
		env := newTestEnv(t)
		env.upload(t, UploadRequest{PreferredAlias: "open"})
		_, err := env.svc.Download(ctx, "open", "anything")
		assertCode(t, err, apperrors.ErrSharePasswordInvalid)
	})

	t.Run("次数用尽后访问回收", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.upload(t, UploadRequest{PreferredAlias: "twice", DownloadLimit: "2"})

		for i := 0; i < 2; i++ {
			d, err := env.svc.Download(ctx, "twice", "")
			require.NoError(t, err)
			readAll(t, d)
		}
		// 最后一次成功下载后不立即回收
		assert.True(t, env.contentExists(t, res.Record.StorageKey))

		_, err := env.svc.Download(ctx, "twice", "")
		assertCode(t, err, apperrors.ErrShareNotFound)

		_, err = env.repo.GetByAlias(ctx, "twice")
		assert.ErrorIs(t, err, repository.ErrShareNotFound)
		assert.False(t, env.contentExists(t, res.Record.StorageKey))
		assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.ReclaimsTotal.WithLabelValues(metrics.TriggerAccess)))
	})

	t.Run("过期后访问回收且别名可复用", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.upload(t, UploadRequest{PreferredAlias: "old"})

		env.clock.Advance(time.Hour)
		d, err := env.svc.Download(ctx, "old", "")
		require.NoError(t, err, "恰好到期时刻仍可下载")
		readAll(t, d)

		env.clock.Advance(time.Second)
		_, err = env.svc.Download(ctx, "old", "")
		assertCode(t, err, apperrors.ErrShareNotFound)
		assert.False(t, env.contentExists(t, res.Record.StorageKey))

		again := env.upload(t, UploadRequest{PreferredAlias: "old"})
		assert.Equal(t, "old", again.Record.Alias)
	})

	t.Run("内容缺失时回收记录", func(t *testing.T) {
		env := newTestEnv(t)
		res := env.upload(t, UploadRequest{PreferredAlias: "ghost"})
		require.NoError(t, env.fs.Remove(res.Record.StorageKey))

		_, err := env.svc.Download(ctx, "ghost", "")
		assertCode(t, err, apperrors.ErrShareNotFound)
		_, err = env.repo.GetByAlias(ctx, "ghost")
		assert.ErrorIs(t, err, repository.ErrShareNotFound)
	})

	t.Run("已打开的内容在回收后仍可读完", func(t *testing.T) {
		env := newTestEnv(t)
		env.upload(t, UploadRequest{PreferredAlias: "last", DownloadLimit: "1"})

		d, err := env.svc.Download(ctx, "last", "")
		require.NoError(t, err)

		n, err := env.svc.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		assert.Equal(t, "hello world", readAll(t, d))
	})
}

func TestDownload_ConcurrentLimit(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, UploadRequest{PreferredAlias: "race", DownloadLimit: "3"})

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		notFound  atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := env.svc.Download(context.Background(), "race", "")
			if err != nil {
				if appErr, ok := apperrors.GetAppError(err); ok && appErr.Code == apperrors.ErrShareNotFound {
					notFound.Add(1)
				}
				return
			}
			successes.Add(1)
			d.Content.Close()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), successes.Load())
	assert.Equal(t, int32(17), notFound.Load())
}

func TestUpload_ConcurrentSameAlias(t *testing.T) {
	env := newTestEnv(t)

	var (
		wg       sync.WaitGroup
		ok       atomic.Int32
		conflict atomic.Int32
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.Upload(context.Background(), UploadRequest{
				FileName:       "same.txt",
				Content:        strings.NewReader(strings.Repeat("x", i+1)),
				PreferredAlias: "same",
			})
			if err == nil {
				ok.Add(1)
				return
			}
			if appErr, isApp := apperrors.GetAppError(err); isApp && appErr.Code == apperrors.ErrAliasTaken {
				conflict.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(1), conflict.Load())
	// 失败一方写入的内容已被删除
	assert.Len(t, env.fsKeys(t), 1)
}

func TestDownload_SingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, UploadRequest{PreferredAlias: "once", DownloadLimit: "1"})
	ctx := context.Background()

	d, err := env.svc.Download(ctx, "once", "")
	require.NoError(t, err)
	assert.Equal(t, "hello world", readAll(t, d))
	assert.Equal(t, 0, d.Record.RemainingDownloads())

	_, err = env.svc.Download(ctx, "once", "")
	assertCode(t, err, apperrors.ErrShareNotFound)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	var expired []*UploadResult
	for i := 0; i < 3; i++ {
		expired = append(expired, env.upload(t, UploadRequest{}))
	}
	env.clock.Advance(30 * time.Minute)
	live := env.upload(t, UploadRequest{PreferredAlias: "live"})
	exhausted := env.upload(t, UploadRequest{PreferredAlias: "spent", DownloadLimit: "1"})
	d, err := env.svc.Download(ctx, "spent", "")
	require.NoError(t, err)
	readAll(t, d)

	env.clock.Advance(31 * time.Minute)

	stats, err := env.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.DeadCount)
	assert.Equal(t, int64(1), stats.LiveCount)

	// 批大小为 2，需要多批才能扫完
	n, err := env.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	for _, r := range append(expired, exhausted) {
		assert.False(t, env.contentExists(t, r.Record.StorageKey))
		_, err := env.repo.GetByID(ctx, r.Record.ID)
		assert.ErrorIs(t, err, repository.ErrShareNotFound)
	}
	assert.True(t, env.contentExists(t, live.Record.StorageKey))

	n, err = env.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, float64(4), testutil.ToFloat64(env.metrics.ReclaimsTotal.WithLabelValues(metrics.TriggerSweep)))
}

// captureLogs 将日志输出重定向到缓冲区
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })
	return &buf
}

func TestSweep_ContentDeleteFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	logs := captureLogs(t)

	// 两条失败记录排在最前面，恰好占满一批
	bad1 := env.upload(t, UploadRequest{PreferredAlias: "bad1"})
	bad2 := env.upload(t, UploadRequest{PreferredAlias: "bad2"})
	env.clock.Advance(10 * time.Minute)
	good := env.upload(t, UploadRequest{PreferredAlias: "good"})
	env.clock.Advance(2 * time.Hour)

	env.store.failDelete(bad1.Record.StorageKey, bad2.Record.StorageKey)

	n, err := env.svc.Sweep(ctx)
	require.NoError(t, err, "单条回收失败不影响整轮扫描")
	assert.Equal(t, 1, n)
	assert.Contains(t, logs.String(), "扫描回收失败")

	_, err = env.repo.GetByID(ctx, good.Record.ID)
	assert.ErrorIs(t, err, repository.ErrShareNotFound)
	assert.False(t, env.contentExists(t, good.Record.StorageKey))

	// 内容删除失败时保留记录，不留下无记录的内容
	for _, r := range []*UploadResult{bad1, bad2} {
		_, err := env.repo.GetByID(ctx, r.Record.ID)
		require.NoError(t, err)
		assert.True(t, env.contentExists(t, r.Record.StorageKey))
	}

	n, err = env.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// 存储恢复后下一轮完成回收
	env.store.failDelete()
	n, err = env.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, r := range []*UploadResult{bad1, bad2} {
		_, err := env.repo.GetByID(ctx, r.Record.ID)
		assert.ErrorIs(t, err, repository.ErrShareNotFound)
		assert.False(t, env.contentExists(t, r.Record.StorageKey))
	}
}

func TestDownload_ReclaimFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	logs := captureLogs(t)

	res := env.upload(t, UploadRequest{PreferredAlias: "stuck", DownloadLimit: "1"})
	d, err := env.svc.Download(ctx, "stuck", "")
	require.NoError(t, err)
	readAll(t, d)

	env.store.failDelete(res.Record.StorageKey)
	_, err = env.svc.Download(ctx, "stuck", "")
	assertCode(t, err, apperrors.ErrShareNotFound)
	assert.Contains(t, logs.String(), "访问时回收分享失败")

	_, err = env.repo.GetByID(ctx, res.Record.ID)
	require.NoError(t, err)
	assert.True(t, env.contentExists(t, res.Record.StorageKey))

	err = env.svc.Reclaim(ctx, res.Record, metrics.TriggerSweep)
	assertCode(t, err, apperrors.ErrContentDelete)

	env.store.failDelete()
	n, err := env.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, env.contentExists(t, res.Record.StorageKey))
}

func TestReclaim_Idempotent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	res := env.upload(t, UploadRequest{})

	require.NoError(t, env.svc.Reclaim(ctx, res.Record, metrics.TriggerSweep))
	require.NoError(t, env.svc.Reclaim(ctx, res.Record, metrics.TriggerSweep))
	assert.False(t, env.contentExists(t, res.Record.StorageKey))
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.ReclaimsTotal.WithLabelValues(metrics.TriggerSweep)))
}

func TestListAndDeleteOwned(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	mine := env.upload(t, UploadRequest{PreferredAlias: "mine", Password: "pw", Owner: Registered{UserID: "u1"}})
	env.clock.Advance(time.Minute)
	env.upload(t, UploadRequest{PreferredAlias: "mine_2", Owner: Registered{UserID: "u1"}})
	env.upload(t, UploadRequest{PreferredAlias: "theirs", Owner: Registered{UserID: "u2"}})
	anon := env.upload(t, UploadRequest{PreferredAlias: "anon", Owner: Anonymous{Email: "a@example.com"}})

	t.Run("按用户列出并倒序", func(t *testing.T) {
		views, err := env.svc.ListByOwner(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "mine_2", views[0].Alias)
		assert.Equal(t, "mine", views[1].Alias)
		assert.Equal(t, StateActive, views[1].State)
		assert.True(t, views[1].HasPassword)
		assert.Equal(t, "http://localhost:5000/mine", views[1].DownloadLink)
	})

	t.Run("按邮箱列出不区分大小写", func(t *testing.T) {
		views, err := env.svc.ListByEmail(ctx, "A@Example.com")
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, "anon", views[0].Alias)
	})

	t.Run("缺少邮箱", func(t *testing.T) {
		_, err := env.svc.ListByEmail(ctx, "  ")
		assertCode(t, err, apperrors.ErrEmailRequired)
	})

	t.Run("非所有者删除按不存在处理", func(t *testing.T) {
		err := env.svc.DeleteOwned(ctx, mine.Record.ID, Registered{UserID: "u2"})
		assertCode(t, err, apperrors.ErrShareNotFound)
		err = env.svc.DeleteOwned(ctx, anon.Record.ID, Anonymous{Email: "b@example.com"})
		assertCode(t, err, apperrors.ErrShareNotFound)
		err = env.svc.DeleteOwned(ctx, anon.Record.ID, Anonymous{})
		assertCode(t, err, apperrors.ErrEmailRequired)
	})

	t.Run("所有者删除", func(t *testing.T) {
		require.NoError(t, env.svc.DeleteOwned(ctx, mine.Record.ID, Registered{UserID: "u1"}))
		assert.False(t, env.contentExists(t, mine.Record.StorageKey))

		require.NoError(t, env.svc.DeleteOwned(ctx, anon.Record.ID, Anonymous{Email: "A@example.com"}))
		_, err := env.svc.Download(ctx, "anon", "")
		assertCode(t, err, apperrors.ErrShareNotFound)

		err = env.svc.DeleteOwned(ctx, mine.Record.ID, Registered{UserID: "u1"})
		assertCode(t, err, apperrors.ErrShareNotFound)
	})
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/weiwangfds/sharedrop/internal/logger"
)

// LocalStore 基于 afero 文件系统的本地内容存储
// 生产环境使用以 local_path 为根的 BasePathFs，测试使用内存文件系统
type LocalStore struct {
	fs afero.Fs
}

// NewLocalStore 使用给定文件系统创建本地存储
func NewLocalStore(fs afero.Fs) *LocalStore {
	return &LocalStore{fs: fs}
}

// NewLocalStoreAt 以指定目录为根创建本地存储，目录不存在时自动创建
func NewLocalStoreAt(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "uploads"
	}
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	logger.Infof("本地内容存储目录: %s", dir)
	return NewLocalStore(afero.NewBasePathFs(osFs, dir)), nil
}

// Name 提供商名称
func (s *LocalStore) Name() string {
	return ProviderLocal
}

// Put 写入内容
// 先写入 <key>.part 临时文件，完整写入后再重命名，读取方不会看到半写入的内容
func (s *LocalStore) Put(ctx context.Context, r io.Reader, ext string) (*PutResult, error) {
	key := newKey("", ext)
	partName := key + ".part"

	f, err := s.fs.OpenFile(partName, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("create content file: %w", err)
	}

	hr := newHashingReader(ctxReader{ctx: ctx, r: r})
	_, copyErr := io.Copy(f, hr)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		s.fs.Remove(partName)
		if copyErr != nil {
			return nil, copyErr
		}
		return nil, fmt.Errorf("close content file: %w", closeErr)
	}

	if err := s.fs.Rename(partName, key); err != nil {
		s.fs.Remove(partName)
		return nil, fmt.Errorf("commit content file: %w", err)
	}
	return hr.result(key), nil
}

// Get 打开内容读取流
// 已打开的文件句柄在内容被删除后仍可读完
func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("open content file: %w", err)
	}
	return f, nil
}

// Delete 删除内容，不存在视为成功
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.Remove(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove content file: %w", err)
	}
	return nil
}

// Ping 检查根目录是否可访问
func (s *LocalStore) Ping(ctx context.Context) error {
	_, err := s.fs.Stat("/")
	return err
}

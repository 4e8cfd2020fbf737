// Package storage 提供分享文件内容的存储实现
// 内容以内部键存放，键与别名和原始文件名无关，由上层分享记录引用
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/weiwangfds/sharedrop/config"
)

// 支持的存储提供商
const (
	ProviderLocal   = "local"
	ProviderAliyun  = "aliyun"
	ProviderTencent = "tencent"
	ProviderQiniu   = "qiniu"
)

var (
	// ErrContentNotFound 内容不存在
	ErrContentNotFound = errors.New("content not found")
	// ErrProviderNotSupported 不支持的存储提供商
	ErrProviderNotSupported = errors.New("storage provider not supported")
)

// PutResult 写入结果
type PutResult struct {
	Key    string // 内部存储键
	Size   int64  // 实际写入字节数
	SHA256 string // 内容SHA256(十六进制)
}

// ContentStore 内容存储接口
type ContentStore interface {
	// Put 写入内容并返回生成的内部键，ext 为带点的扩展名
	Put(ctx context.Context, r io.Reader, ext string) (*PutResult, error)
	// Get 打开内容读取流，内容不存在返回 ErrContentNotFound
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除内容，内容已不存在视为成功
	Delete(ctx context.Context, key string) error
	// Ping 检查存储是否可用
	Ping(ctx context.Context) error
	// Name 提供商名称
	Name() string
}

// NewContentStore 根据配置创建内容存储
// 参数:
//   - cfg: 存储配置，Provider 为空时使用本地存储
//
// 返回值:
//   - ContentStore: 内容存储实例
//   - error: 配置无效或远端初始化失败
func NewContentStore(cfg config.StorageConfig) (ContentStore, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderLocal, "":
		return NewLocalStoreAt(cfg.LocalPath)
	case ProviderAliyun:
		return NewAliyunStore(cfg)
	case ProviderTencent:
		return NewTencentStore(cfg)
	case ProviderQiniu:
		return NewQiniuStore(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrProviderNotSupported, cfg.Provider)
	}
}

// newKey 生成内部存储键: [prefix/]<uuid><ext>
func newKey(prefix, ext string) string {
	name := uuid.New().String() + strings.ToLower(ext)
	if prefix == "" {
		return name
	}
	return path.Join(strings.Trim(prefix, "/"), name)
}

// hashingReader 边读边计算大小和SHA256
type hashingReader struct {
	r    io.Reader
	h    hash.Hash
	size int64
}

func newHashingReader(r io.Reader) *hashingReader {
	return &hashingReader{r: r, h: sha256.New()}
}

func (hr *hashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		hr.h.Write(p[:n])
		hr.size += int64(n)
	}
	return n, err
}

func (hr *hashingReader) result(key string) *PutResult {
	return &PutResult{Key: key, Size: hr.size, SHA256: hex.EncodeToString(hr.h.Sum(nil))}
}

// ctxReader 在上下文取消后中断读取，避免写入超时后仍继续消费上传流
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// spooledFile 远端上传前落地的临时文件
type spooledFile struct {
	fs   afero.Fs
	file afero.File
	*PutResult
}

// spool 将上传流写入临时文件，得到确定的长度和校验值后再上传到对象存储
func spool(ctx context.Context, r io.Reader, key string) (*spooledFile, error) {
	fs := afero.NewOsFs()
	tmp, err := afero.TempFile(fs, "", "sharedrop-*.part")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	hr := newHashingReader(ctxReader{ctx: ctx, r: r})
	if _, err := io.Copy(tmp, hr); err != nil {
		tmp.Close()
		fs.Remove(tmp.Name())
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		fs.Remove(tmp.Name())
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	return &spooledFile{fs: fs, file: tmp, PutResult: hr.result(key)}, nil
}

// Close 关闭并删除临时文件
func (s *spooledFile) Close() error {
	err := s.file.Close()
	if rmErr := s.fs.Remove(s.file.Name()); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// presignTTL 私有下载链接有效期
const presignTTL = time.Hour

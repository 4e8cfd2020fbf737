package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tencentyun/cos-go-sdk-v5"
	"github.com/weiwangfds/sharedrop/config"
	"github.com/weiwangfds/sharedrop/internal/logger"
)

// TencentStore 腾讯云COS内容存储
type TencentStore struct {
	client *cos.Client
	prefix string
}

// NewTencentStore 创建腾讯云COS内容存储
func NewTencentStore(cfg config.StorageConfig) (*TencentStore, error) {
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		bucketURL = cfg.Endpoint
	}

	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}
	logger.Infof("[腾讯云COS] 初始化内容存储, 存储桶地址: %s", u.Host)

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		},
	})

	return &TencentStore{client: client, prefix: cfg.Prefix}, nil
}

// Name 提供商名称
func (s *TencentStore) Name() string {
	return ProviderTencent
}

// Put 先落地临时文件再上传
func (s *TencentStore) Put(ctx context.Context, r io.Reader, ext string) (*PutResult, error) {
	spooled, err := spool(ctx, r, newKey(s.prefix, ext))
	if err != nil {
		return nil, err
	}
	defer spooled.Close()

	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentLength: spooled.Size,
		},
	}
	if _, err := s.client.Object.Put(ctx, spooled.Key, spooled.file, opt); err != nil {
		logger.Errorf("[腾讯云COS] 上传失败, 对象键: %s, 错误: %v", spooled.Key, err)
		return nil, fmt.Errorf("failed to upload content to tencent cos: %w", err)
	}
	return spooled.PutResult, nil
}

// Get 打开对象读取流
func (s *TencentStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.Object.Get(ctx, key, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to download content from tencent cos: %w", err)
	}
	return resp.Body, nil
}

// Delete 删除对象，不存在视为成功
func (s *TencentStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Object.Delete(ctx, key); err != nil && !cos.IsNotFoundError(err) {
		return fmt.Errorf("failed to delete content from tencent cos: %w", err)
	}
	return nil
}

// Ping 检查存储桶是否可访问
func (s *TencentStore) Ping(ctx context.Context) error {
	if _, err := s.client.Bucket.Head(ctx); err != nil {
		return fmt.Errorf("failed to test tencent cos connection: %w", err)
	}
	return nil
}

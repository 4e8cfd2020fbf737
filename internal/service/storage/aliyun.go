package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/weiwangfds/sharedrop/config"
	"github.com/weiwangfds/sharedrop/internal/logger"
)

// AliyunStore 阿里云OSS内容存储
type AliyunStore struct {
	client *oss.Client
	bucket *oss.Bucket
	name   string
	prefix string
}

// NewAliyunStore 创建阿里云OSS内容存储
// 参数:
//   - cfg: 存储配置，Endpoint 为空时按 Region 生成默认域名
//
// 返回:
//   - *AliyunStore: 初始化完成的存储实例
//   - error: 客户端或存储桶初始化失败
func NewAliyunStore(cfg config.StorageConfig) (*AliyunStore, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", cfg.Region)
	}
	logger.Infof("[阿里云OSS] 初始化内容存储, 域名: %s, 存储桶: %s", endpoint, cfg.Bucket)

	client, err := oss.New(endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun oss client: %w", err)
	}

	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", cfg.Bucket, err)
	}

	return &AliyunStore{
		client: client,
		bucket: bucket,
		name:   cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Name 提供商名称
func (s *AliyunStore) Name() string {
	return ProviderAliyun
}

// Put 先落地临时文件再上传，保证上传长度确定且能得到校验值
func (s *AliyunStore) Put(ctx context.Context, r io.Reader, ext string) (*PutResult, error) {
	spooled, err := spool(ctx, r, newKey(s.prefix, ext))
	if err != nil {
		return nil, err
	}
	defer spooled.Close()

	err = s.bucket.PutObject(spooled.Key, spooled.file,
		oss.WithContext(ctx),
		oss.ContentLength(spooled.Size),
	)
	if err != nil {
		logger.Errorf("[阿里云OSS] 上传失败, 对象键: %s, 错误: %v", spooled.Key, err)
		return nil, fmt.Errorf("failed to upload content to aliyun oss: %w", err)
	}
	return spooled.PutResult, nil
}

// Get 打开对象读取流
func (s *AliyunStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		if isAliyunNotFound(err) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to download content from aliyun oss: %w", err)
	}
	return body, nil
}

// Delete 删除对象，OSS 删除不存在的对象同样返回成功
func (s *AliyunStore) Delete(ctx context.Context, key string) error {
	if err := s.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil && !isAliyunNotFound(err) {
		return fmt.Errorf("failed to delete content from aliyun oss: %w", err)
	}
	return nil
}

// Ping 通过获取存储桶信息检查连接
func (s *AliyunStore) Ping(ctx context.Context) error {
	if _, err := s.client.GetBucketInfo(s.name, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to test aliyun oss connection: %w", err)
	}
	return nil
}

func isAliyunNotFound(err error) bool {
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode == http.StatusNotFound
	}
	return false
}

package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	qiniustorage "github.com/qiniu/go-sdk/v7/storage"
	"github.com/weiwangfds/sharedrop/config"
	"github.com/weiwangfds/sharedrop/internal/logger"
)

// QiniuStore 七牛云Kodo内容存储
// 下载通过私有链接走HTTP，删除和探测通过 BucketManager
type QiniuStore struct {
	mac          *qbox.Mac
	bucketName   string
	bucketDomain string
	prefix       string
	manager      *qiniustorage.BucketManager
	uploader     *qiniustorage.FormUploader
	httpClient   *http.Client
}

// NewQiniuStore 创建七牛云Kodo内容存储
// 参数:
//   - cfg: 存储配置，Endpoint 为绑定到存储桶的下载域名，缺少协议时按 https 处理
func NewQiniuStore(cfg config.StorageConfig) (*QiniuStore, error) {
	bucketDomain, err := qiniuDownloadBase(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	mac := qbox.NewMac(cfg.AccessKey, cfg.SecretKey)

	region, err := qiniustorage.GetRegion(cfg.AccessKey, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get qiniu region: %w", err)
	}

	logger.Infof("[七牛云Kodo] 初始化内容存储, 存储桶: %s, 域名: %s", cfg.Bucket, bucketDomain)

	qcfg := &qiniustorage.Config{
		Region:        region,
		UseHTTPS:      true,
		UseCdnDomains: false,
	}

	return &QiniuStore{
		mac:          mac,
		bucketName:   cfg.Bucket,
		bucketDomain: bucketDomain,
		prefix:       cfg.Prefix,
		manager:      qiniustorage.NewBucketManager(mac, qcfg),
		uploader:     qiniustorage.NewFormUploader(qcfg),
		httpClient:   &http.Client{},
	}, nil
}

// qiniuDownloadBase 规范化下载域名
// RsHost 等管理域名不提供对象下载，因此必须显式配置
func qiniuDownloadBase(endpoint string) (string, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return "", fmt.Errorf("qiniu requires storage.endpoint (bucket download domain)")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	return endpoint, nil
}

// Name 提供商名称
func (s *QiniuStore) Name() string {
	return ProviderQiniu
}

// Put 先落地临时文件再表单上传
func (s *QiniuStore) Put(ctx context.Context, r io.Reader, ext string) (*PutResult, error) {
	spooled, err := spool(ctx, r, newKey(s.prefix, ext))
	if err != nil {
		return nil, err
	}
	defer spooled.Close()

	putPolicy := qiniustorage.PutPolicy{
		Scope: fmt.Sprintf("%s:%s", s.bucketName, spooled.Key),
	}
	upToken := putPolicy.UploadToken(s.mac)

	ret := qiniustorage.PutRet{}
	putExtra := qiniustorage.PutExtra{}
	if err := s.uploader.Put(ctx, &ret, upToken, spooled.Key, spooled.file, spooled.Size, &putExtra); err != nil {
		logger.Errorf("[七牛云Kodo] 上传失败: 对象键=%s, 错误=%v", spooled.Key, err)
		return nil, fmt.Errorf("failed to upload content to qiniu kodo: %w", err)
	}
	return spooled.PutResult, nil
}

// Get 生成私有下载链接并返回响应体
func (s *QiniuStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	deadline := time.Now().Add(presignTTL).Unix()
	privateURL := qiniustorage.MakePrivateURL(s.mac, s.bucketDomain, key, deadline)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, privateURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build qiniu download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download content from qiniu kodo: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrContentNotFound
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download content from qiniu kodo, status: %s", resp.Status)
	}
}

// Delete 删除对象，不存在视为成功
func (s *QiniuStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.manager.Delete(s.bucketName, key); err != nil && !isQiniuNotFound(err) {
		return fmt.Errorf("failed to delete content from qiniu kodo: %w", err)
	}
	return nil
}

// Ping 尝试列出一个对象检查连接和认证
func (s *QiniuStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, _, _, err := s.manager.ListFiles(s.bucketName, "", "", "", 1); err != nil {
		return fmt.Errorf("failed to test qiniu kodo connection: %w", err)
	}
	return nil
}

func isQiniuNotFound(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

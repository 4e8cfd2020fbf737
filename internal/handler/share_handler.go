package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	apperrors "github.com/weiwangfds/sharedrop/internal/errors"
	"github.com/weiwangfds/sharedrop/internal/logger"
	"github.com/weiwangfds/sharedrop/internal/metrics"
	"github.com/weiwangfds/sharedrop/internal/middleware"
	"github.com/weiwangfds/sharedrop/internal/response"
	"github.com/weiwangfds/sharedrop/internal/service/share"
)

// multipartOverhead multipart 表单中除文件外其他字段与边界的预留大小
const multipartOverhead = 1 << 20

// ShareHandler 分享处理器
// @Description 上传、下载与所有者管理相关的HTTP处理器
type ShareHandler struct {
	shares      share.Service
	metrics     *metrics.Metrics
	maxFileSize int64
}

// NewShareHandler 创建分享处理器实例
func NewShareHandler(shares share.Service, m *metrics.Metrics, maxFileSize int64) *ShareHandler {
	return &ShareHandler{
		shares:      shares,
		metrics:     m,
		maxFileSize: maxFileSize,
	}
}

// UploadResponse 上传成功响应
type UploadResponse struct {
	ID               string    `json:"id"`
	Alias            string    `json:"alias"`
	DownloadLink     string    `json:"download_link"`
	OriginalFilename string    `json:"original_filename"`
	SizeBytes        int64     `json:"size_bytes"`
	DownloadLimit    int       `json:"download_limit"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Upload 上传文件
// @Summary 上传文件并创建分享
// @Tags 分享
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "要分享的文件"
// @Param alias formData string false "自定义别名"
// @Param password formData string false "访问密码"
// @Param downloadLimit formData int false "下载次数上限"
// @Param email formData string false "匿名上传者邮箱"
// @Success 201 {object} response.Response{data=UploadResponse}
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/upload [post]
func (h *ShareHandler) Upload(c *gin.Context) {
	if h.maxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize+multipartOverhead)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.FromError(c, apperrors.Of(apperrors.ErrFileTooLarge))
			return
		}
		response.FromError(c, apperrors.Wrap(apperrors.ErrFileMissing, "", err))
		return
	}

	src, err := fh.Open()
	if err != nil {
		response.FromError(c, apperrors.Wrap(apperrors.ErrContentRead, "", err))
		return
	}
	defer src.Close()

	var owner share.Owner = share.Anonymous{Email: c.PostForm("email")}
	if id, ok := middleware.IdentityFrom(c); ok {
		owner = share.Registered{UserID: id.UserID}
	}

	res, err := h.shares.Upload(c.Request.Context(), share.UploadRequest{
		FileName:       fh.Filename,
		Content:        src,
		PreferredAlias: c.PostForm("alias"),
		Password:       c.PostForm("password"),
		DownloadLimit:  c.PostForm("downloadLimit"),
		Owner:          owner,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, UploadResponse{
		ID:               res.Record.ID,
		Alias:            res.Record.Alias,
		DownloadLink:     res.Link,
		OriginalFilename: res.Record.OriginalName,
		SizeBytes:        res.Record.SizeBytes,
		DownloadLimit:    res.Record.DownloadLimit,
		ExpiresAt:        res.Record.ExpiresAt,
	})
}

// Download 下载分享内容
// @Summary 通过别名下载文件
// @Tags 分享
// @Produce application/octet-stream
// @Param alias path string true "分享别名"
// @Param password query string false "访问密码"
// @Success 200 {file} file "文件内容"
// @Failure 401 {object} response.Response "密码错误"
// @Failure 404 {object} response.Response "不存在、已过期或次数用尽"
// @Router /{alias} [get]
func (h *ShareHandler) Download(c *gin.Context) {
	d, err := h.shares.Download(c.Request.Context(), c.Param("alias"), c.Query("password"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	defer d.Content.Close()

	rec := d.Record
	contentType := rec.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": rec.OriginalName})
	if disposition == "" {
		disposition = "attachment"
	}

	counter := &countingReader{r: d.Content}
	c.DataFromReader(http.StatusOK, rec.SizeBytes, contentType, counter, map[string]string{
		"Content-Disposition":    disposition,
		"Cache-Control":          "no-store",
		"X-Content-Type-Options": "nosniff",
		"X-Downloads-Remaining":  strconv.Itoa(rec.RemainingDownloads()),
	})
	h.metrics.RecordServed(counter.n)

	if counter.n != rec.SizeBytes {
		logger.WithFields(logrus.Fields{
			"alias":    rec.Alias,
			"expected": rec.SizeBytes,
			"sent":     counter.n,
		}).Warn("下载传输未完成")
	}
}

// countingReader 统计实际读出的字节数
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// MyUploads 列出当前用户的分享
// @Summary 我的分享
// @Tags 分享
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/v1/my-uploads [get]
func (h *ShareHandler) MyUploads(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)
	views, err := h.shares.ListByOwner(c.Request.Context(), id.UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"items": views, "total": len(views)})
}

// DeleteMyUpload 删除当前用户的分享
// @Summary 删除我的分享
// @Tags 分享
// @Security BearerAuth
// @Param id path string true "分享ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/my-uploads/{id} [delete]
func (h *ShareHandler) DeleteMyUpload(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)
	if err := h.shares.DeleteOwned(c.Request.Context(), c.Param("id"), share.Registered{UserID: id.UserID}); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "deleted", gin.H{"id": c.Param("id")})
}

// FilesByEmail 按邮箱列出匿名分享
// @Summary 按邮箱查询分享
// @Tags 分享
// @Param email query string true "上传时填写的邮箱"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/v1/files-by-email [get]
func (h *ShareHandler) FilesByEmail(c *gin.Context) {
	views, err := h.shares.ListByEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"items": views, "total": len(views)})
}

// DeleteByEmail 按邮箱删除匿名分享
// @Summary 按邮箱删除分享
// @Tags 分享
// @Param id path string true "分享ID"
// @Param email query string true "上传时填写的邮箱"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/delete-by-email/{id} [delete]
func (h *ShareHandler) DeleteByEmail(c *gin.Context) {
	owner := share.Anonymous{Email: c.Query("email")}
	if err := h.shares.DeleteOwned(c.Request.Context(), c.Param("id"), owner); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "deleted", gin.H{"id": c.Param("id")})
}

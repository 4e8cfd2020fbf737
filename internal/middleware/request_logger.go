package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/sharedrop/internal/logger"
)

// 日志中需要隐藏的字段与请求头
var (
	sensitiveFields  = map[string]struct{}{"password": {}, "token": {}}
	sensitiveHeaders = map[string]struct{}{"Authorization": {}, "X-Admin-Token": {}, "Cookie": {}}
)

const redacted = "***"

// RequestLogEntry 请求日志条目
type RequestLogEntry struct {
	RequestID    string                 `json:"request_id"`
	Method       string                 `json:"method"`
	Path         string                 `json:"path"`
	Route        string                 `json:"route"`
	Query        map[string]interface{} `json:"query"`
	Headers      map[string]string      `json:"headers,omitempty"`
	Body         interface{}            `json:"body,omitempty"`
	ClientIP     string                 `json:"client_ip"`
	UserAgent    string                 `json:"user_agent"`
	StatusCode   int                    `json:"status_code"`
	ResponseBody interface{}            `json:"response_body,omitempty"`
	ResponseSize int                    `json:"response_size"`
	StartTime    string                 `json:"start_time"`
	DurationMs   int64                  `json:"duration_ms"`
	Error        string                 `json:"error,omitempty"`
}

// responseWriter 捕获 JSON 响应体，文件下载等其他类型只统计大小
type responseWriter struct {
	gin.ResponseWriter
	body    *bytes.Buffer
	maxBody int
}

// Write 实现io.Writer接口
func (w *responseWriter) Write(b []byte) (int, error) {
	if w.capturable() && w.body.Len() < w.maxBody {
		remain := w.maxBody - w.body.Len()
		if len(b) < remain {
			remain = len(b)
		}
		w.body.Write(b[:remain])
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) capturable() bool {
	return strings.HasPrefix(w.Header().Get("Content-Type"), "application/json")
}

// RequestLoggerConfig 请求日志中间件配置
type RequestLoggerConfig struct {
	Enabled         bool     `json:"enabled"`          // 是否启用
	SkipPaths       []string `json:"skip_paths"`       // 跳过记录的路径
	MaxBodySize     int      `json:"max_body_size"`    // 记录的最大请求/响应体大小（字节）
	IncludeHeaders  bool     `json:"include_headers"`  // 是否包含请求头
	IncludeBody     bool     `json:"include_body"`     // 是否包含请求体(仅 JSON)
	IncludeResponse bool     `json:"include_response"` // 是否包含响应体(仅 JSON)
}

// DefaultRequestLoggerConfig 默认配置
// 参数:
//   - mode: gin 运行模式，只有 debug 模式默认启用详细日志
func DefaultRequestLoggerConfig(mode string) *RequestLoggerConfig {
	return &RequestLoggerConfig{
		Enabled:         mode == "" || mode == gin.DebugMode,
		SkipPaths:       []string{"/health", "/metrics", "/favicon.ico"},
		MaxBodySize:     64 * 1024,
		IncludeHeaders:  true,
		IncludeBody:     true,
		IncludeResponse: true,
	}
}

// RequestLogger 创建详细请求日志中间件
// 注意:
//   - password、token 等查询参数与 JSON 字段会被替换为 ***
//   - multipart 上传与文件下载不会读取或缓存内容
func RequestLogger(cfg *RequestLoggerConfig) gin.HandlerFunc {
	if cfg == nil {
		cfg = DefaultRequestLoggerConfig(gin.Mode())
	}
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
			maxBody:        cfg.MaxBodySize,
		}
		c.Writer = writer

		var requestBody interface{}
		if cfg.IncludeBody && isJSONRequest(c) {
			requestBody = readRequestBody(c, cfg.MaxBodySize)
		}

		c.Next()

		entry := &RequestLogEntry{
			RequestID:    GetRequestID(c),
			Method:       c.Request.Method,
			Path:         c.Request.URL.Path,
			Route:        c.FullPath(),
			Query:        parseQueryParams(c.Request.URL.RawQuery),
			ClientIP:     c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			StatusCode:   writer.Status(),
			ResponseSize: writer.Size(),
			StartTime:    start.Format(time.RFC3339),
			DurationMs:   time.Since(start).Milliseconds(),
			Body:         requestBody,
		}
		if cfg.IncludeHeaders {
			entry.Headers = extractHeaders(c.Request.Header)
		}
		if cfg.IncludeResponse && writer.body.Len() > 0 {
			entry.ResponseBody = parseJSONBody(writer.body.Bytes())
		}
		if len(c.Errors) > 0 {
			entry.Error = c.Errors.String()
		}

		logRequestEntry(entry)
	}
}

func isJSONRequest(c *gin.Context) bool {
	return c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json")
}

// readRequestBody 读取请求体后放回，供后续处理器继续读取
func readRequestBody(c *gin.Context, maxSize int) interface{} {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(maxSize)+1))
	if err != nil {
		return map[string]string{"error": "failed to read request body"}
	}
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))
	if len(body) > maxSize {
		return fmt.Sprintf("<%d+ bytes omitted>", maxSize)
	}
	return parseJSONBody(body)
}

// parseQueryParams 解析查询参数并隐藏敏感值
func parseQueryParams(rawQuery string) map[string]interface{} {
	params := make(map[string]interface{})
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		params["_raw"] = "<unparseable>"
		return params
	}
	for key, vals := range values {
		if _, ok := sensitiveFields[strings.ToLower(key)]; ok {
			params[key] = redacted
			continue
		}
		if len(vals) == 1 {
			params[key] = vals[0]
		} else {
			params[key] = vals
		}
	}
	return params
}

// extractHeaders 提取请求头，认证相关请求头只记录是否存在
func extractHeaders(headers map[string][]string) map[string]string {
	headerMap := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		if _, ok := sensitiveHeaders[key]; ok {
			headerMap[key] = redacted
			continue
		}
		headerMap[key] = values[0]
	}
	return headerMap
}

// parseJSONBody 解析 JSON 并隐藏敏感字段，非 JSON 原样返回字符串
func parseJSONBody(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return redactJSON(v)
}

func redactJSON(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			if _, ok := sensitiveFields[strings.ToLower(k)]; ok {
				t[k] = redacted
				continue
			}
			t[k] = redactJSON(val)
		}
		return t
	case []interface{}:
		for i := range t {
			t[i] = redactJSON(t[i])
		}
		return t
	default:
		return v
	}
}

// logRequestEntry 按状态码选择日志级别
func logRequestEntry(entry *RequestLogEntry) {
	message := fmt.Sprintf("[REQUEST_LOG] %s %s - %d (%dms)",
		entry.Method, entry.Path, entry.StatusCode, entry.DurationMs)

	logJSON, err := json.Marshal(entry)
	if err != nil {
		logger.Errorf("Failed to marshal request log: %v", err)
		return
	}

	log := logger.WithFields(logrus.Fields{"type": "request_log", "request_id": entry.RequestID})
	switch {
	case entry.StatusCode >= 500:
		log.Errorf("%s | %s", message, logJSON)
	case entry.StatusCode >= 400:
		log.Warnf("%s | %s", message, logJSON)
	default:
		log.Infof("%s | %s", message, logJSON)
	}
}

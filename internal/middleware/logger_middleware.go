package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/sharedrop/internal/logger"
)

// LoggerMiddleware 访问日志中间件
type LoggerMiddleware struct {
	logger *logrus.Logger
}

// NewLoggerMiddleware 创建访问日志中间件实例
// 参数:
//   - l: 日志实例，为 nil 时使用全局日志
func NewLoggerMiddleware(l *logrus.Logger) *LoggerMiddleware {
	if l == nil {
		l = logger.GetLogger()
	}
	return &LoggerMiddleware{logger: l}
}

// AccessLog 每个请求一行访问日志
// 查询参数不写入访问日志，下载链接中的密码不会落盘
func (m *LoggerMiddleware) AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := m.logger.WithFields(logrus.Fields{
			"request_id": GetRequestID(c),
			"status":     status,
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"route":      c.FullPath(),
			"bytes":      c.Writer.Size(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("error", c.Errors.String())
		}

		switch {
		case status >= 500:
			entry.Error("HTTP Request")
		case status >= 400:
			entry.Warn("HTTP Request")
		default:
			entry.Info("HTTP Request")
		}
	}
}

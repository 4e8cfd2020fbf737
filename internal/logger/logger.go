// Package logger 提供进程级 logrus 日志实例
// 分享密码、令牌等敏感字段在写出前统一替换，调用方无需自行处理
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger 全局日志实例
var Logger *logrus.Logger

// Config 日志配置
type Config struct {
	// Level 日志级别 (debug, info, warn, error)
	Level string `json:"level"`
	// Format 日志格式 (json, text)
	Format string `json:"format"`
	// Output 输出方式 (console, file, both)
	Output string `json:"output"`
	// FilePath 日志文件路径，Output 为 file/both 时使用
	FilePath string `json:"file_path"`
}

// DefaultConfig 返回默认日志配置
func DefaultConfig() *Config {
	return &Config{
		Level:    "info",
		Format:   "text",
		Output:   "console",
		FilePath: "logs/sharedrop.log",
	}
}

// Redacted 敏感字段替换后的值
const Redacted = "***"

// sensitiveKeys 日志字段名(小写)命中即替换
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"token":         {},
	"authorization": {},
	"jwt_secret":    {},
}

// Init 初始化日志系统
// 参数:
//   - config: 日志配置，如果为nil则使用默认配置
//
// 返回值:
//   - error: 日志文件无法打开
func Init(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	l := logrus.New()
	l.AddHook(redactHook{})

	var warnings []string
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
		warnings = append(warnings, fmt.Sprintf("无效的日志级别 '%s'，使用默认级别 'info'", config.Level))
	}
	l.SetLevel(level)

	formatter, ok := newFormatter(config.Format)
	if !ok {
		warnings = append(warnings, fmt.Sprintf("无效的日志格式 '%s'，使用默认格式 'text'", config.Format))
	}
	l.SetFormatter(formatter)

	out, ok, err := openOutput(config)
	if err != nil {
		return fmt.Errorf("open log output: %w", err)
	}
	if !ok {
		warnings = append(warnings, fmt.Sprintf("无效的输出方式 '%s'，使用默认方式 'console'", config.Output))
	}
	l.SetOutput(out)

	Logger = l
	gin.DefaultWriter = NewGinWriter(l)
	gin.DefaultErrorWriter = gin.DefaultWriter

	for _, w := range warnings {
		l.Warn(w)
	}
	l.Debug("日志系统初始化完成")
	return nil
}

// newFormatter 按名称创建格式化器，未知名称回退到 text
func newFormatter(format string) (logrus.Formatter, bool) {
	switch strings.ToLower(format) {
	case "json":
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"}, true
	case "text", "":
		return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"}, true
	default:
		return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"}, false
	}
}

// openOutput 按配置打开输出目标
// 返回值:
//   - io.Writer: 输出目标
//   - bool: 输出方式是否有效，无效时回退到控制台
//   - error: 日志文件无法创建
func openOutput(config *Config) (io.Writer, bool, error) {
	switch config.Output {
	case "console", "":
		return os.Stdout, true, nil
	case "file", "both":
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, false, err
		}
		f, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, false, err
		}
		if config.Output == "file" {
			return f, true, nil
		}
		return io.MultiWriter(os.Stdout, f), true, nil
	default:
		return os.Stdout, false, nil
	}
}

// redactHook 在写出前替换敏感字段
type redactHook struct{}

// Levels 对全部级别生效
func (redactHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire 替换命中的字段值
func (redactHook) Fire(entry *logrus.Entry) error {
	for k := range entry.Data {
		if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
			entry.Data[k] = Redacted
		}
	}
	return nil
}

// GinWriter 将 gin 的调试输出转为 info 日志
type GinWriter struct {
	logger *logrus.Logger
}

// NewGinWriter 创建 gin 日志桥接
func NewGinWriter(l *logrus.Logger) *GinWriter {
	return &GinWriter{logger: l}
}

// Write 实现io.Writer接口
func (w *GinWriter) Write(p []byte) (n int, err error) {
	w.logger.WithField("component", "gin").Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// SetOutput 替换日志输出目标，主要供测试捕获日志
func SetOutput(w io.Writer) {
	GetLogger().SetOutput(w)
}

// GetLogger 获取日志实例，未初始化时使用默认配置
func GetLogger() *logrus.Logger {
	if Logger == nil {
		if err := Init(nil); err != nil {
			logrus.Error("日志初始化失败，使用默认日志")
			return logrus.StandardLogger()
		}
	}
	return Logger
}

// Debug 记录调试级别日志
func Debug(args ...interface{}) {
	GetLogger().Debug(args...)
}

// Info 记录信息级别日志
func Info(args ...interface{}) {
	GetLogger().Info(args...)
}

// Infof 记录格式化信息级别日志
func Infof(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

// Warn 记录警告级别日志
func Warn(args ...interface{}) {
	GetLogger().Warn(args...)
}

// Warnf 记录格式化警告级别日志
func Warnf(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

// Error 记录错误级别日志
func Error(args ...interface{}) {
	GetLogger().Error(args...)
}

// Errorf 记录格式化错误级别日志
func Errorf(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}

// WithField 添加字段到日志条目
func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

// WithFields 添加多个字段到日志条目
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

// WithError 添加错误字段到日志条目
func WithError(err error) *logrus.Entry {
	return GetLogger().WithError(err)
}

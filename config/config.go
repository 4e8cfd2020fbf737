// Package config 负责加载服务配置
// 配置来源优先级: 环境变量(SHAREDROP_前缀) > 配置文件(config.toml) > 默认值
// 启动时会先尝试加载当前目录下的 .env 文件
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 SHAREDROP_SERVER_PORT
const EnvPrefix = "SHAREDROP"

// Config 服务总配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Share     ShareConfig     `mapstructure:"share"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	BaseURL      string   `mapstructure:"base_url"`      // 生成下载链接使用的外部地址
	Mode         string   `mapstructure:"mode"`          // gin 运行模式: debug/release/test
	ReadTimeout  int      `mapstructure:"read_timeout"`  // 秒
	WriteTimeout int      `mapstructure:"write_timeout"` // 秒，需覆盖大文件传输时间
	EnableHTTPS  bool     `mapstructure:"enable_https"`
	EnableHTTP2  bool     `mapstructure:"enable_http2"`
	TLSCertFile  string   `mapstructure:"tls_cert_file"`
	TLSKeyFile   string   `mapstructure:"tls_key_file"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

// DatabaseConfig 分享记录存储配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite / postgres
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime int           `mapstructure:"conn_max_lifetime"` // 秒
	OpTimeout       time.Duration `mapstructure:"op_timeout"`        // 单次存储操作超时
	LogLevel        string        `mapstructure:"log_level"`         // silent/error/warn/info
}

// StorageConfig 文件内容存储配置
type StorageConfig struct {
	Provider      string        `mapstructure:"provider"` // local / aliyun / tencent / qiniu
	LocalPath     string        `mapstructure:"local_path"`
	Prefix        string        `mapstructure:"prefix"` // 对象存储中的键前缀
	Region        string        `mapstructure:"region"`
	Bucket        string        `mapstructure:"bucket"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Endpoint      string        `mapstructure:"endpoint"`
	OpTimeout     time.Duration `mapstructure:"op_timeout"`     // 打开/删除内容的超时
	UploadTimeout time.Duration `mapstructure:"upload_timeout"` // 单次上传写入的超时
}

// ShareConfig 分享生命周期配置
type ShareConfig struct {
	TTL                  time.Duration `mapstructure:"ttl"`
	DefaultDownloadLimit int           `mapstructure:"default_download_limit"`
	MaxFileSize          int64         `mapstructure:"max_file_size"`
	AllowedExtensions    []string      `mapstructure:"allowed_extensions"`
	SweepInterval        time.Duration `mapstructure:"sweep_interval"`
	SweepTimeout         time.Duration `mapstructure:"sweep_timeout"`
	SweepBatchSize       int           `mapstructure:"sweep_batch_size"`
	AliasLength          int           `mapstructure:"alias_length"`
	AliasMaxAttempts     int           `mapstructure:"alias_max_attempts"`
	PasswordCost         int           `mapstructure:"password_cost"` // bcrypt cost
}

// AuthConfig 身份令牌配置
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// AdminConfig 管理接口配置，Token 为空时管理接口全部拒绝
type AdminConfig struct {
	Token string `mapstructure:"token"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// RateLimitConfig 按客户端IP限流配置
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// DefaultAllowedExtensions 默认允许上传的扩展名
var DefaultAllowedExtensions = []string{
	".txt", ".pdf", ".png", ".jpg", ".jpeg", ".gif",
	".doc", ".docx", ".xls", ".xlsx", ".zip", ".rar",
}

// setDefaults 注册全部配置项默认值
// 注意: viper 的 AutomaticEnv 只会覆盖已知的键，所以每个配置项都需要在这里出现
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.base_url", "http://localhost:5000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 60)
	v.SetDefault("server.write_timeout", 600)
	v.SetDefault("server.enable_https", false)
	v.SetDefault("server.enable_http2", true)
	v.SetDefault("server.tls_cert_file", "")
	v.SetDefault("server.tls_key_file", "")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/sharedrop.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.op_timeout", "5s")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("storage.prefix", "shares")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.op_timeout", "30s")
	v.SetDefault("storage.upload_timeout", "10m")

	v.SetDefault("share.ttl", "72h")
	v.SetDefault("share.default_download_limit", 10)
	v.SetDefault("share.max_file_size", 100<<20)
	v.SetDefault("share.allowed_extensions", DefaultAllowedExtensions)
	v.SetDefault("share.sweep_interval", "10m")
	v.SetDefault("share.sweep_timeout", "2m")
	v.SetDefault("share.sweep_batch_size", 500)
	v.SetDefault("share.alias_length", 8)
	v.SetDefault("share.alias_max_attempts", 32)
	v.SetDefault("share.password_cost", 10)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "sharedrop")
	v.SetDefault("auth.token_ttl", "1h")

	v.SetDefault("admin.token", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/sharedrop.log")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_second", 5)
	v.SetDefault("ratelimit.burst", 20)
}

// Load 加载配置
// 参数:
//   - path: 配置文件路径，为空时在当前目录和 ./config 下查找 config.toml
//
// 返回值:
//   - *Config: 合并默认值、配置文件与环境变量后的配置
//   - error: 配置文件解析失败或校验不通过
func Load(path string) (*Config, error) {
	// .env 不存在是正常情况
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize 统一扩展名格式(小写且带点)并去掉 BaseURL 尾部斜杠
func (c *Config) normalize() {
	exts := make([]string, 0, len(c.Share.AllowedExtensions))
	for _, ext := range c.Share.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if ext != "*" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	c.Share.AllowedExtensions = exts
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	c.Storage.Provider = strings.ToLower(c.Storage.Provider)
	c.Database.Driver = strings.ToLower(c.Database.Driver)
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	switch {
	case c.Share.TTL <= 0:
		return errors.New("share.ttl must be positive")
	case c.Share.DefaultDownloadLimit <= 0:
		return errors.New("share.default_download_limit must be positive")
	case c.Share.MaxFileSize <= 0:
		return errors.New("share.max_file_size must be positive")
	case c.Share.AliasLength < 4:
		return errors.New("share.alias_length must be at least 4")
	case c.Share.AliasMaxAttempts <= 0:
		return errors.New("share.alias_max_attempts must be positive")
	case c.Database.OpTimeout <= 0:
		return errors.New("database.op_timeout must be positive")
	case c.Auth.JWTSecret == "":
		return errors.New("auth.jwt_secret is required (set SHAREDROP_AUTH_JWT_SECRET)")
	case c.Server.EnableHTTPS && (c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == ""):
		return errors.New("server.tls_cert_file and server.tls_key_file are required when https is enabled")
	case c.Storage.Provider == "qiniu" && strings.TrimSpace(c.Storage.Endpoint) == "":
		return errors.New("storage.endpoint (bucket download domain) is required for qiniu")
	}
	return nil
}

// Addr 返回HTTP监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

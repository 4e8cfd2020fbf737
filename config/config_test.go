package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SHAREDROP_AUTH_JWT_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 72*time.Hour, cfg.Share.TTL)
	assert.Equal(t, 10, cfg.Share.DefaultDownloadLimit)
	assert.Equal(t, int64(100<<20), cfg.Share.MaxFileSize)
	assert.Equal(t, 8, cfg.Share.AliasLength)
	assert.Equal(t, 32, cfg.Share.AliasMaxAttempts)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.OpTimeout)
	assert.Contains(t, cfg.Share.AllowedExtensions, ".pdf")
	assert.Equal(t, "http://localhost:5000", cfg.Server.BaseURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SHAREDROP_AUTH_JWT_SECRET", "test-secret")
	t.Setenv("SHAREDROP_SHARE_TTL", "24h")
	t.Setenv("SHAREDROP_SERVER_BASE_URL", "https://drop.example.com/")
	t.Setenv("SHAREDROP_SHARE_ALLOWED_EXTENSIONS", "PDF,.Txt")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Share.TTL)
	assert.Equal(t, "https://drop.example.com", cfg.Server.BaseURL)
	assert.Equal(t, []string{".pdf", ".txt"}, cfg.Share.AllowedExtensions)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("SHAREDROP_AUTH_JWT_SECRET", "test-secret")

	content := `
[server]
port = 8080

[share]
default_download_limit = 3
sweep_interval = "1m"

[storage]
provider = "Aliyun"
bucket = "drops"
`
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Share.DefaultDownloadLimit)
	assert.Equal(t, time.Minute, cfg.Share.SweepInterval)
	assert.Equal(t, "aliyun", cfg.Storage.Provider)
	assert.Equal(t, "drops", cfg.Storage.Bucket)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("SHAREDROP_AUTH_JWT_SECRET", "test-secret")

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Share: ShareConfig{
				TTL:                  time.Hour,
				DefaultDownloadLimit: 10,
				MaxFileSize:          1024,
				AliasLength:          8,
				AliasMaxAttempts:     32,
			},
			Database: DatabaseConfig{OpTimeout: time.Second},
			Auth:     AuthConfig{JWTSecret: "s"},
		}
	}

	require.NoError(t, valid().Validate())

	qiniu := valid()
	qiniu.Storage.Provider = "qiniu"
	qiniu.Storage.Endpoint = "dl.example.com"
	assert.NoError(t, qiniu.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"零TTL", func(c *Config) { c.Share.TTL = 0 }},
		{"非正默认下载次数", func(c *Config) { c.Share.DefaultDownloadLimit = 0 }},
		{"别名过短", func(c *Config) { c.Share.AliasLength = 2 }},
		{"缺少JWT密钥", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"HTTPS缺少证书", func(c *Config) { c.Server.EnableHTTPS = true }},
		{"七牛缺少下载域名", func(c *Config) { c.Storage.Provider = "qiniu" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

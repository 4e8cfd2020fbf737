package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/weiwangfds/sharedrop/config"
	"github.com/weiwangfds/sharedrop/internal/database"
	"github.com/weiwangfds/sharedrop/internal/logger"
	"github.com/weiwangfds/sharedrop/internal/metrics"
	"github.com/weiwangfds/sharedrop/internal/repository"
	"github.com/weiwangfds/sharedrop/internal/service/alias"
	"github.com/weiwangfds/sharedrop/internal/service/auth"
	"github.com/weiwangfds/sharedrop/internal/service/share"
	"github.com/weiwangfds/sharedrop/internal/service/storage"
	"github.com/weiwangfds/sharedrop/internal/service/sweeper"
	"gorm.io/gorm"
)

// app 进程内共享的组件
type app struct {
	cfg      *config.Config
	db       *gorm.DB
	store    storage.ContentStore
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	shares   share.Service
	auth     auth.Service
	sweeper  sweeper.Sweeper
}

// bootstrap 加载配置并按依赖顺序创建组件
func bootstrap(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(&logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewContentStore(cfg.Storage)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to initialize content store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	shares := share.NewService(
		repository.NewShareRepository(db, cfg.Database.OpTimeout),
		store,
		share.ConfigFrom(cfg),
		share.WithMetrics(m),
		share.WithHasher(share.NewBcryptHasher(cfg.Share.PasswordCost)),
		share.WithAllocator(alias.NewAllocator(
			alias.WithLength(cfg.Share.AliasLength),
			alias.WithMaxAttempts(cfg.Share.AliasMaxAttempts),
		)),
	)

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	logger.Infof("内容存储: %s, 数据库驱动: %s", store.Name(), cfg.Database.Driver)

	return &app{
		cfg:      cfg,
		db:       db,
		store:    store,
		registry: registry,
		metrics:  m,
		shares:   shares,
		auth:     auth.NewService(repository.NewUserRepository(db, cfg.Database.OpTimeout), tokens, cfg.Share.PasswordCost),
		sweeper:  sweeper.New(shares, cfg.Share.SweepInterval, cfg.Share.SweepTimeout),
	}, nil
}

// Close 释放数据库连接
func (a *app) Close() {
	if err := database.Close(a.db); err != nil {
		logger.WithError(err).Warn("关闭数据库失败")
	}
}

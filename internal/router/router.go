package router

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weiwangfds/sharedrop/config"
	"github.com/weiwangfds/sharedrop/internal/handler"
	"github.com/weiwangfds/sharedrop/internal/logger"
	"github.com/weiwangfds/sharedrop/internal/metrics"
	"github.com/weiwangfds/sharedrop/internal/middleware"
	"github.com/weiwangfds/sharedrop/internal/service/auth"
	"github.com/weiwangfds/sharedrop/internal/service/share"
	"github.com/weiwangfds/sharedrop/internal/service/storage"
	"github.com/weiwangfds/sharedrop/internal/service/sweeper"
	"gorm.io/gorm"
)

// Deps 路由依赖
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Shares   share.Service
	Auth     auth.Service
	Sweeper  sweeper.Sweeper
	Store    storage.ContentStore
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Router 路由配置
type Router struct {
	engine *gin.Engine
	db     *gorm.DB
}

// NewRouter 创建路由实例
// 注意:
//   - 下载路由 /:alias 位于根路径，/health、/metrics、/api 等静态路由优先匹配
//   - 内容存储目录不会被路由暴露
func NewRouter(deps Deps) *Router {
	cfg := deps.Config
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	engine := gin.New()
	engine.MaxMultipartMemory = 8 << 20

	shareHandler := handler.NewShareHandler(deps.Shares, deps.Metrics, cfg.Share.MaxFileSize)
	authHandler := handler.NewAuthHandler(deps.Auth)
	adminHandler := handler.NewAdminHandler(deps.Sweeper, deps.Shares)
	healthHandler := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := deps.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"storage": deps.Store.Ping,
	})

	loggerMiddleware := middleware.NewLoggerMiddleware(logger.GetLogger())

	// 使用中间件
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Metrics(deps.Metrics))
	engine.Use(loggerMiddleware.AccessLog())
	engine.Use(middleware.RequestLogger(middleware.DefaultRequestLoggerConfig(gin.Mode())))
	engine.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	var limiter *middleware.IPRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	rateLimit := middleware.RateLimit(limiter)

	// 健康检查与指标
	engine.GET("/health", healthHandler.Health)
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// 下载
	engine.GET("/:alias", rateLimit, shareHandler.Download)

	// API路由组
	api := engine.Group("/api/v1")
	{
		api.POST("/upload", middleware.OptionalAuth(deps.Auth), shareHandler.Upload)

		api.GET("/files-by-email", rateLimit, shareHandler.FilesByEmail)
		api.DELETE("/delete-by-email/:id", rateLimit, shareHandler.DeleteByEmail)

		// 注册用户的分享管理
		mine := api.Group("/my-uploads", middleware.RequireAuth(deps.Auth))
		{
			mine.GET("", shareHandler.MyUploads)
			mine.DELETE("/:id", shareHandler.DeleteMyUpload)
		}

		authGroup := api.Group("/auth", rateLimit)
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		admin := api.Group("/admin", middleware.AdminToken(cfg.Admin.Token))
		{
			admin.POST("/sweep", adminHandler.Sweep)
			admin.GET("/stats", adminHandler.Stats)
		}
	}

	return &Router{
		engine: engine,
		db:     deps.DB,
	}
}

// corsConfig 根据允许的来源生成 CORS 配置
// 包含 "*" 时允许所有来源且不携带凭证
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.AdminTokenHeader, middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader, "X-Downloads-Remaining"},
		MaxAge:        86400,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// GetDB 获取数据库连接
func (r *Router) GetDB() *gorm.DB {
	return r.db
}

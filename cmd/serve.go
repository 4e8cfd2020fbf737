package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/weiwangfds/sharedrop/internal/logger"
	"github.com/weiwangfds/sharedrop/internal/router"
	"golang.org/x/net/http2"
)

const shutdownTimeout = 30 * time.Second

// NewServeCommand 启动HTTP服务与后台回收扫描
func NewServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the background sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	r := router.NewRouter(router.Deps{
		Config:   cfg,
		DB:       a.db,
		Shares:   a.shares,
		Auth:     a.auth,
		Sweeper:  a.sweeper,
		Store:    a.store,
		Metrics:  a.metrics,
		Gatherer: a.registry,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           r.GetEngine(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	if cfg.Server.EnableHTTPS {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			NextProtos: []string{"h2", "http/1.1"},
		}
		// 如果启用HTTP/2，配置HTTP/2支持
		if cfg.Server.EnableHTTP2 {
			if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
				return fmt.Errorf("配置HTTP/2失败: %w", err)
			}
		}
	}

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	if err := a.sweeper.Start(sweepCtx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP服务启动于 %s (HTTPS: %v, HTTP/2: %v)",
			srv.Addr, cfg.Server.EnableHTTPS, cfg.Server.EnableHTTPS && cfg.Server.EnableHTTP2)
		var err error
		if cfg.Server.EnableHTTPS {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("正在关闭服务器...")
	case serveErr = <-errCh:
		logger.WithError(serveErr).Error("HTTP服务异常退出")
	}

	cancelSweep()
	if err := a.sweeper.Stop(); err != nil {
		logger.WithError(err).Warn("停止回收扫描器失败")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}

	logger.Info("服务器已退出")
	return serveErr
}

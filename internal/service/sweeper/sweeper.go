// Package sweeper 周期性回收已过期或已用尽的分享
// 访问路径上的回收只覆盖被再次访问的分享，无人访问的分享由扫描器清理
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/sharedrop/internal/logger"
)

// 默认参数
const (
	DefaultInterval = 10 * time.Minute
	DefaultTimeout  = 2 * time.Minute
)

// Reclaimer 执行一次批量回收，返回删除的记录数
type Reclaimer interface {
	Sweep(ctx context.Context) (int, error)
}

// Sweeper 回收扫描器接口
type Sweeper interface {
	// Start 启动后台扫描
	// 参数:
	//   ctx - 上下文，取消后扫描协程退出
	// 返回:
	//   error - 已在运行时返回错误
	// 功能:
	//   - 启动后立即执行一轮，之后按间隔执行
	Start(ctx context.Context) error

	// Stop 停止后台扫描并等待进行中的一轮结束
	Stop() error

	// RunOnce 同步执行一轮扫描，供管理接口和命令行使用
	RunOnce(ctx context.Context) (int, error)
}

type sweeper struct {
	reclaimer Reclaimer
	interval  time.Duration
	timeout   time.Duration

	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// 同一时刻只允许一轮扫描，后台与手动触发互斥
	runMu sync.Mutex
}

// New 创建扫描器
// 参数:
//
//	reclaimer - 回收执行者，一般为分享服务
//	interval - 扫描间隔，<=0 时使用默认值
//	timeout - 单轮扫描超时，<=0 时使用默认值
func New(reclaimer Reclaimer, interval, timeout time.Duration) Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &sweeper{
		reclaimer: reclaimer,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start 启动后台扫描
func (s *sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("sweeper is already running")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx, s.stopChan)

	logger.WithFields(logrus.Fields{
		"interval": s.interval.String(),
		"timeout":  s.timeout.String(),
	}).Info("回收扫描器已启动")
	return nil
}

// Stop 停止后台扫描
func (s *sweeper) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is not running")
	}
	s.isRunning = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	logger.Info("回收扫描器已停止")
	return nil
}

// RunOnce 同步执行一轮扫描
func (s *sweeper) RunOnce(ctx context.Context) (int, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	n, err := s.reclaimer.Sweep(cctx)
	if err != nil {
		return n, err
	}
	if n > 0 {
		logger.WithFields(logrus.Fields{
			"reclaimed": n,
			"elapsed":   time.Since(start).String(),
		}).Info("回收扫描完成")
	}
	return n, nil
}

func (s *sweeper) loop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick 后台执行一轮，关闭或超时导致的取消不记为错误
func (s *sweeper) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		logger.WithError(err).Error("回收扫描失败")
	}
}

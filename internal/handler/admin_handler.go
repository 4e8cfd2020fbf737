package handler

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/sharedrop/internal/repository"
	"github.com/weiwangfds/sharedrop/internal/response"
)

// SweepRunner 同步执行一轮回收
type SweepRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

// StatsProvider 提供分享统计
type StatsProvider interface {
	Stats(ctx context.Context) (*repository.ShareStats, error)
}

// AdminHandler 管理接口处理器
type AdminHandler struct {
	sweeper SweepRunner
	stats   StatsProvider
}

// NewAdminHandler 创建管理接口处理器
func NewAdminHandler(sweeper SweepRunner, stats StatsProvider) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, stats: stats}
}

// Sweep 立即执行一轮回收
// @Summary 手动回收
// @Tags 管理
// @Param X-Admin-Token header string true "管理令牌"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /api/v1/admin/sweep [post]
func (h *AdminHandler) Sweep(c *gin.Context) {
	n, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"reclaimed": n})
}

// Stats 分享统计
// @Summary 分享统计
// @Tags 管理
// @Param X-Admin-Token header string true "管理令牌"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{
		"live_count":       stats.LiveCount,
		"live_bytes":       stats.LiveBytes,
		"live_bytes_human": humanize.IBytes(uint64(stats.LiveBytes)),
		"dead_count":       stats.DeadCount,
		"dead_bytes":       stats.DeadBytes,
		"dead_bytes_human": humanize.IBytes(uint64(stats.DeadBytes)),
	})
}

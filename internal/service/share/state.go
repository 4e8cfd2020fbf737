package share

import (
	"time"

	"github.com/weiwangfds/sharedrop/internal/database"
)

// State 分享生命周期状态
// Active -> Exhausted | Expired -> Reclaimed
type State string

const (
	StateActive    State = "active"
	StateExhausted State = "exhausted"
	StateExpired   State = "expired"
	StateReclaimed State = "reclaimed"
)

// StateOf 计算记录在给定时间点的状态
// 记录已被删除(nil)即为 Reclaimed，同时过期且用尽时报告 Expired
func StateOf(rec *database.ShareRecord, now time.Time) State {
	switch {
	case rec == nil:
		return StateReclaimed
	case rec.IsExpired(now):
		return StateExpired
	case rec.IsExhausted():
		return StateExhausted
	default:
		return StateActive
	}
}

// Servable 只有 Active 状态可以提供内容
func (s State) Servable() bool {
	return s == StateActive
}

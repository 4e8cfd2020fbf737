package sweeper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReclaimer struct {
	calls   atomic.Int32
	running atomic.Int32
	overlap atomic.Bool
	result  int
	err     error
	delay   time.Duration
}

func (f *fakeReclaimer) Sweep(ctx context.Context) (int, error) {
	if f.running.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.running.Add(-1)
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.result, f.err
}

func TestRunOnce(t *testing.T) {
	t.Run("返回回收数量", func(t *testing.T) {
		r := &fakeReclaimer{result: 7}
		n, err := New(r, time.Hour, time.Second).RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 7, n)
	})

	t.Run("透传错误", func(t *testing.T) {
		boom := errors.New("boom")
		r := &fakeReclaimer{err: boom}
		_, err := New(r, time.Hour, time.Second).RunOnce(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("单轮超时", func(t *testing.T) {
		r := &fakeReclaimer{delay: time.Second}
		_, err := New(r, time.Hour, 20*time.Millisecond).RunOnce(context.Background())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("并发触发串行执行", func(t *testing.T) {
		r := &fakeReclaimer{delay: 10 * time.Millisecond}
		s := New(r, time.Hour, time.Second)
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.RunOnce(context.Background())
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(5), r.calls.Load())
		assert.False(t, r.overlap.Load())
	})
}

func TestStartStop(t *testing.T) {
	r := &fakeReclaimer{}
	s := New(r, 10*time.Millisecond, time.Second)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "重复启动应报错")

	assert.Eventually(t, func() bool { return r.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	calls := r.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, r.calls.Load(), "停止后不再扫描")

	assert.Error(t, s.Stop(), "未运行时停止应报错")

	// 停止后可以再次启动
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
}

func TestStart_RunsImmediately(t *testing.T) {
	r := &fakeReclaimer{}
	s := New(r, time.Hour, time.Second)
	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestStart_ContextCancelStopsLoop(t *testing.T) {
	r := &fakeReclaimer{}
	ctx, cancel := context.WithCancel(context.Background())
	s := New(r, 5*time.Millisecond, time.Second)
	require.NoError(t, s.Start(ctx))
	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	cancel()
	// Stop 仍需调用以复位运行状态，不应阻塞
	require.NoError(t, s.Stop())
}

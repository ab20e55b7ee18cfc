package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"amara-go/internal/scheduler"

	"github.com/stretchr/testify/require"
)

func TestTickRunsJob(t *testing.T) {
	var runs int32
	s := scheduler.New(time.Hour, func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
	})

	s.Tick(context.Background())
	s.Tick(context.Background())

	require.Equal(t, int32(2), atomic.LoadInt32(&runs))
}

func TestTickSkipsWhileRunning(t *testing.T) {
	var runs int32
	started := make(chan struct{})
	release := make(chan struct{})

	s := scheduler.New(time.Hour, func(ctx context.Context) {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(started)
		}
		<-release
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Tick(context.Background())
	}()

	<-started
	// 上一轮还在排空，这个 tick 必须被丢弃
	s.Tick(context.Background())
	require.Equal(t, int32(1), atomic.LoadInt32(&runs))

	close(release)
	wg.Wait()

	// 排空完成后恢复正常
	s.Tick(context.Background())
	require.Equal(t, int32(2), atomic.LoadInt32(&runs))
}

func TestStartStopsOnContextCancel(t *testing.T) {
	var runs int32
	s := scheduler.New(5*time.Millisecond, func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 2
	}, time.Second, time.Millisecond, "调度器应按间隔持续触发")

	cancel()
	time.Sleep(20 * time.Millisecond)
	after := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, atomic.LoadInt32(&runs), "取消后不应再触发")
}

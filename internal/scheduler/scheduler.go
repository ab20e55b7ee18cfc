// Package scheduler 提供固定间隔的后台任务驱动。
package scheduler

import (
	"context"
	"sync"
	"time"

	"amara-go/pkg/log"
)

// Job 是一轮调度要执行的任务体。
type Job func(ctx context.Context)

// Scheduler 以固定的墙钟间隔驱动一个任务。
// 重叠策略为 skip-if-running：上一轮还在排空时新到的 tick 被丢弃，
// 下一轮会重新枚举全部目标，不会漏掉任何配对。
type Scheduler struct {
	interval time.Duration
	job      Job
	mu       sync.Mutex
}

// New 创建一个新的 Scheduler 实例。
func New(interval time.Duration, job Job) *Scheduler {
	return &Scheduler{
		interval: interval,
		job:      job,
	}
}

// Start 启动后台循环，直到 ctx 取消。
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		log.Infof("调度器已启动，间隔 %s", s.interval)
		for {
			select {
			case <-ctx.Done():
				log.Info("调度器已停止")
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Tick 执行一轮任务。导出以便测试无需真实时间即可驱动。
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.mu.TryLock() {
		log.Warnf("上一轮任务仍在执行，跳过本次 tick")
		return
	}
	defer s.mu.Unlock()

	s.job(ctx)
}

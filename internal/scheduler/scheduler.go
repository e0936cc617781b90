// Package scheduler 按 cron 表达式周期执行批量状态修复
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule 默认每分钟执行一次
const DefaultSchedule = "@every 1m"

// runTimeout 单次修复的超时时间
const runTimeout = 30 * time.Second

// Reconciler 批量修复接口
type Reconciler interface {
	FixAll(ctx context.Context, sourceAddr string) (int64, error)
}

// Scheduler 周期修复任务
// 上一次执行未结束时跳过本次
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	schedule   string
	source     string
	log        zerolog.Logger

	mu      sync.Mutex
	runs    int
	fixed   int64
	lastErr error
}

// New 创建 Scheduler 实例
// source 写入活动日志，用于区分定时任务与人工修复
func New(reconciler Reconciler, schedule, source string, log zerolog.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		reconciler: reconciler,
		schedule:   schedule,
		source:     source,
		log:        log.With().Str("component", "scheduler").Logger(),
	}
}

// Start 注册任务并启动调度
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.RunOnce); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Msg("reconcile scheduler started")
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("reconcile scheduler stopped")
}

// RunOnce 执行一次批量修复
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	n, err := s.reconciler.FixAll(ctx, s.source)

	s.mu.Lock()
	s.runs++
	s.lastErr = err
	if err == nil {
		s.fixed += n
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Msg("scheduled reconcile failed")
		return
	}
	s.log.Info().Int64("fixed", n).Msg("scheduled reconcile finished")
}

// Stats 返回累计执行次数、修复数量与最近一次错误
func (s *Scheduler) Stats() (runs int, fixed int64, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.fixed, s.lastErr
}

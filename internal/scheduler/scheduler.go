// Package scheduler runs periodic housekeeping: analytics refresh and idle
// widget eviction.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Refresher recomputes live analytics.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Evictor closes widgets idle longer than maxIdle and reports how many.
type Evictor interface {
	EvictIdle(maxIdle time.Duration) int
}

// Options 调度配置
type Options struct {
	RefreshSpec string
	EvictSpec   string
	MaxIdle     time.Duration
}

// Scheduler wraps a UTC cron runner.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	evictor   Evictor
	opts      Options
}

// New 创建调度器，任一依赖为空时跳过对应任务
func New(refresher Refresher, evictor Evictor, opts Options) *Scheduler {
	if opts.RefreshSpec == "" {
		opts.RefreshSpec = "@every 10s"
	}
	if opts.EvictSpec == "" {
		opts.EvictSpec = "@every 5m"
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = 30 * time.Minute
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		refresher: refresher,
		evictor:   evictor,
		opts:      opts,
	}
}

// Start registers the jobs and starts the runner.
func (s *Scheduler) Start() error {
	if s.refresher != nil {
		if _, err := s.cron.AddFunc(s.opts.RefreshSpec, s.refreshAnalytics); err != nil {
			return fmt.Errorf("register analytics refresh job: %w", err)
		}
	}
	if s.evictor != nil {
		if _, err := s.cron.AddFunc(s.opts.EvictSpec, s.evictIdleWidgets); err != nil {
			return fmt.Errorf("register widget eviction job: %w", err)
		}
	}
	s.cron.Start()
	zap.S().Infow("[scheduler] started", "refresh", s.opts.RefreshSpec, "evict", s.opts.EvictSpec)
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	zap.S().Info("[scheduler] stopped")
}

// Entries reports the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) refreshAnalytics() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.refresher.Refresh(ctx)
}

func (s *Scheduler) evictIdleWidgets() {
	if n := s.evictor.EvictIdle(s.opts.MaxIdle); n > 0 {
		zap.S().Infow("[scheduler] evicted idle widgets", "count", n)
	}
}

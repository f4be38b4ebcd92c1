package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lager_lending_tool/logger"
	"lager_lending_tool/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// Job is a unit of scheduled maintenance work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

const defaultLockTTL = 30 * time.Minute

// Scheduler runs jobs on cron specs (with seconds). A redis lock per job keeps
// several service instances from running the same job at once.
type Scheduler struct {
	cron    *cron.Cron
	log     *logger.Logger
	metrics *metrics.Lending
	rdb     *redis.Client
	lockTTL time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

type SchedulerParams struct {
	Logger  *logger.Logger
	Metrics *metrics.Lending
	// Redis is optional; without it jobs run unlocked.
	Redis   *redis.Client
	LockTTL time.Duration
}

func NewScheduler(p SchedulerParams) *Scheduler {
	log := p.Logger
	if log == nil {
		log = logger.Nop()
	}
	ttl := p.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		log:     log,
		metrics: p.Metrics,
		rdb:     p.Redis,
		lockTTL: ttl,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under a six-field cron spec.
func (s *Scheduler) Add(spec string, job Job) error {
	if job == nil {
		return errors.New("job required")
	}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.RunJob(s.ctx, job) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name(), spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.log.Info(s.ctx, "job scheduler started")
	s.cron.Start()
}

// Stop prevents new runs and waits for running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()
	select {
	case <-done.Done():
		s.log.Info(ctx, "job scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

// RunJob runs one job now, with locking, logging and metrics.
func (s *Scheduler) RunJob(ctx context.Context, job Job) error {
	jobCtx := s.log.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})

	release, locked, err := s.acquire(jobCtx, job.Name())
	if err != nil {
		s.log.Error(jobCtx, "job lock failed", err)
		return err
	}
	if !locked {
		s.log.Info(jobCtx, "job already running elsewhere; skipping")
		return nil
	}
	defer release()

	s.log.Info(jobCtx, "job start")
	start := time.Now()
	err = job.Run(jobCtx)
	elapsed := time.Since(start)
	s.metrics.JobRun(job.Name(), elapsed, err)

	jobCtx = s.log.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.log.Error(jobCtx, "job failed", err)
		return err
	}
	s.log.Info(jobCtx, "job completed")
	return nil
}

func lockKey(job string) string { return "lager:jobs:lock:" + job }

func (s *Scheduler) acquire(ctx context.Context, job string) (func(), bool, error) {
	if s.rdb == nil {
		return func() {}, true, nil
	}
	owner := uuid.NewString()
	key := lockKey(job)
	ok, err := s.rdb.SetNX(ctx, key, owner, s.lockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("setnx %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// only drop the lock if it is still ours
		v, err := s.rdb.Get(context.WithoutCancel(ctx), key).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				s.log.Error(ctx, "read job lock", err)
			}
			return
		}
		if v == owner {
			if err := s.rdb.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
				s.log.Error(ctx, "release job lock", err)
			}
		}
	}
	return release, true, nil
}

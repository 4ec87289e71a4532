package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/persiashop/storefront-backend/pkg/logger"
	"github.com/persiashop/storefront-backend/pkg/metrics"
	"github.com/persiashop/storefront-backend/pkg/redis"
)

type ServiceParams struct {
	Logger   *logger.Logger
	Schedule *Schedule
	Lock     redis.Lock
	Metrics  *metrics.CronJobMetrics
}

// Service runs due jobs every schedule tick. A cycle only runs on the
// instance holding the maintenance lock.
type Service struct {
	logg     *logger.Logger
	schedule *Schedule
	lock     redis.Lock
	metrics  *metrics.CronJobMetrics
	lastRun  map[string]time.Time
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	schedule := params.Schedule
	if schedule == nil {
		schedule = NewSchedule(0)
	}
	return &Service{
		logg:     params.Logger,
		schedule: schedule,
		lock:     params.Lock,
		metrics:  params.Metrics,
		lastRun:  make(map[string]time.Time),
		now:      time.Now,
	}, nil
}

// Run ticks until ctx is canceled. The first cycle runs immediately.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.schedule.Tick())
	defer ticker.Stop()
	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "maintenance cycle failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	now := s.now()
	due := s.schedule.Due(now, s.lastRun)
	if len(due) == 0 {
		return nil
	}

	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire maintenance lock: %w", err)
	}
	if !held {
		s.logg.Debug(ctx, "maintenance lock held by another worker")
		for _, job := range due {
			s.metrics.IncSkipped(job.Name())
		}
		return nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "failed to release maintenance lock", err)
		}
	}()

	failed := 0
	for _, job := range due {
		if err := s.runJob(ctx, job); err != nil {
			failed++
		}
		// Failures wait for the next period too; the next run retries the same work.
		s.lastRun[job.Name()] = now
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":   len(due),
		"failed": failed,
	}), "maintenance cycle complete")
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	ctx = s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})
	started := s.now()
	err := job.Run(ctx)
	elapsed := s.now().Sub(started)
	s.metrics.ObserveDuration(name, elapsed)

	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.metrics.IncFailure(name)
		s.logg.Error(ctx, "job failed", err)
		return err
	}
	s.metrics.IncSuccess(name)
	s.logg.Info(ctx, "job completed")
	return nil
}

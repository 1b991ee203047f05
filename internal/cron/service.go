package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/campuscart/marketplace-backend/pkg/logger"
	"github.com/campuscart/marketplace-backend/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// JobTimeout bounds a single job run; zero means one interval.
	JobTimeout time.Duration
}

// Service runs every registered job once per interval while holding the
// cluster-wide lock. Jobs run in registration order and a failed or panicking
// job never stops the ones after it.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	var errs error
	if params.Logger == nil {
		errs = multierr.Append(errs, errors.New("logger required"))
	}
	if params.Lock == nil {
		errs = multierr.Append(errs, errors.New("lock required"))
	}
	if errs != nil {
		return nil, errs
	}

	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if s.registry == nil {
		s.registry = &Registry{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = s.interval
	}
	return s, nil
}

// cycleReport summarizes one pass over the registry.
type cycleReport struct {
	skipped bool
	failed  []string
	ran     int
}

// RunOnce executes a single locked cycle of every registered job.
func (s *Service) RunOnce(ctx context.Context) error {
	_, err := s.cycle(ctx)
	return err
}

// Run fires a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"interval": s.interval.String(),
		"jobs":     s.registry.Names(),
	}), "cron service started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.cycle(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) cycle(ctx context.Context) (cycleReport, error) {
	var report cycleReport
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return report, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		report.skipped = true
		s.metrics.IncSkipped()
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return report, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "failed to release cron lock", err)
		}
	}()

	for _, job := range s.registry.Jobs() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.ran++
		if err := s.runJob(ctx, job); err != nil {
			report.failed = append(report.failed, job.Name())
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs_run":    report.ran,
		"jobs_failed": report.failed,
	}), "scheduled run complete")
	return report, nil
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	ctx = s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	started := time.Now()
	panicked, err := s.guard(ctx, job)
	took := time.Since(started)
	s.metrics.ObserveRun(job.Name(), took, err, panicked)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		return err
	}
	s.logg.Debug(ctx, "job completed")
	return nil
}

// guard runs job under the per-job deadline and turns a panic into an error.
func (s *Service) guard(ctx context.Context, job Job) (panicked bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			panicked, err = true, fmt.Errorf("job %s panicked: %v", job.Name(), r)
		}
	}()
	return false, job.Run(ctx)
}

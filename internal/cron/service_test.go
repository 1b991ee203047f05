package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/campuscart/marketplace-backend/pkg/logger"
	"github.com/campuscart/marketplace-backend/pkg/metrics"
)

type fakeLock struct {
	acquired bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	registry, err := NewRegistry(&testJob{name: "success"}, &testJob{name: "fail", err: errors.New("boom")})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     &fakeLock{},
		Interval: 0,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	report, err := service.cycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if report.ran != 2 || len(report.failed) != 1 || report.failed[0] != "fail" {
		t.Fatalf("unexpected report %+v", report)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if success, ok := jobs[0].(*testJob); ok {
		if success.runs != 1 {
			t.Fatalf("expected success job to run once, ran %d", success.runs)
		}
	} else {
		t.Fatalf("first job type mismatch")
	}
	if failure, ok := jobs[1].(*testJob); ok {
		if failure.runs != 1 {
			t.Fatalf("expected failure job to run once, ran %d", failure.runs)
		}
	} else {
		t.Fatalf("second job type mismatch")
	}
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "order-ttl"}
	registry, err := NewRegistry(job)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	lock := &fakeLock{acquired: true}
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: registry, Lock: lock})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	report, err := service.cycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if !report.skipped || job.runs != 0 {
		t.Fatalf("expected job to be skipped, ran %d", job.runs)
	}
}

func TestNewServiceRequiresLoggerAndLock(t *testing.T) {
	_, err := NewService(ServiceParams{})
	if err == nil {
		t.Fatal("expected error without dependencies")
	}
	for _, want := range []string{"logger required", "lock required"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

type panicJob struct{}

func (panicJob) Name() string { return "exploding" }

func (panicJob) Run(context.Context) error { panic("nil map") }

type deadlineJob struct{ sawDeadline bool }

func (d *deadlineJob) Name() string { return "deadline" }

func (d *deadlineJob) Run(ctx context.Context) error {
	_, d.sawDeadline = ctx.Deadline()
	return nil
}

func TestServiceRecoversPanickingJob(t *testing.T) {
	after := &testJob{name: "after"}
	registry, err := NewRegistry(panicJob{}, after)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	reg := prometheus.NewRegistry()
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: registry,
		Lock:     &fakeLock{},
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if after.runs != 1 {
		t.Fatalf("job after a panic should still run, ran %d", after.runs)
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() != "cron_job_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["job"] == "exploding" && labels["outcome"] == "panic" && m.GetCounter().GetValue() == 1 {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected panic outcome recorded for exploding job")
	}
}

func TestServiceBoundsJobWithTimeout(t *testing.T) {
	job := &deadlineJob{}
	registry, err := NewRegistry(job)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: registry, Lock: &fakeLock{}, JobTimeout: time.Minute})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !job.sawDeadline {
		t.Fatalf("expected job context to carry a deadline")
	}
}

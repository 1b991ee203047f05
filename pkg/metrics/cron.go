package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomePanic   = "panic"
)

// CronJobMetrics records scheduled job runs and skipped cycles.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	skipped  prometheus.Counter
}

// NewCronJobMetrics registers the cron metrics on reg. A nil registerer yields
// a recorder that drops everything.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Duration of cron jobs in seconds.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Cron job executions by outcome.",
	}, []string{"job", "outcome"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cron_cycles_skipped_total",
		Help: "Cycles skipped because another instance held the lock.",
	})
	reg.MustRegister(duration, runs, skipped)
	return &CronJobMetrics{
		duration: duration,
		runs:     runs,
		skipped:  skipped,
	}
}

// ObserveRun records one execution of job. panicked wins over err.
func (c *CronJobMetrics) ObserveRun(job string, took time.Duration, err error, panicked bool) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	outcome := outcomeSuccess
	switch {
	case panicked:
		outcome = outcomePanic
	case err != nil:
		outcome = outcomeFailure
	}
	c.runs.WithLabelValues(job, outcome).Inc()
}

func (c *CronJobMetrics) IncSkipped() {
	if c == nil || c.skipped == nil {
		return
	}
	c.skipped.Inc()
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}

package cron

import (
	"context"
	"fmt"
	"slices"

	"gorm.io/gorm"
)

// Job is one scheduled maintenance task. Name must be unique per registry and
// is used as the metrics label.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Registry keeps jobs in registration order.
type Registry struct {
	jobs []Job
}

// NewRegistry skips nil jobs and rejects duplicate names.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	if slices.Contains(r.Names(), job.Name()) {
		return fmt.Errorf("cron job %q registered twice", job.Name())
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}

package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/campuscart/marketplace-backend/pkg/logger"
)

// pruneFunc deletes rows older than cutoff inside tx and returns the count.
type pruneFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

// pruneJob removes rows that aged past a retention window in one transaction.
type pruneJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	prune     pruneFunc
	retention time.Duration
	fields    map[string]any
	now       func() time.Time
}

func newPruneJob(name string, logg *logger.Logger, db txRunner, retention, fallback time.Duration, prune pruneFunc) (*pruneJob, error) {
	switch {
	case logg == nil:
		return nil, fmt.Errorf("%s: logger required", name)
	case db == nil:
		return nil, fmt.Errorf("%s: db runner required", name)
	case prune == nil:
		return nil, errors.New(name + ": repository required")
	}
	if retention <= 0 {
		retention = fallback
	}
	return &pruneJob{
		name:      name,
		logg:      logg,
		db:        db,
		prune:     prune,
		retention: retention,
		fields:    map[string]any{},
		now:       time.Now,
	}, nil
}

func (j *pruneJob) Name() string { return j.name }

func (j *pruneJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.prune(ctx, tx, cutoff)
		deleted = n
		return err
	}); err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}

	ctx = j.logg.WithFields(ctx, j.fields)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "prune complete")
	return nil
}

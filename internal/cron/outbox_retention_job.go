package cron

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/campuscart/marketplace-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultOutboxAttempts  = 10
)

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	Retention  time.Duration
	// MaxAttempts is the publisher's terminal attempt count. Unpublished rows
	// at or above it already have a dead-letter copy.
	MaxAttempts int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

// NewOutboxRetentionJob drops published outbox rows, and dead-lettered ones,
// once they are older than Retention.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultOutboxAttempts
	}
	var prune pruneFunc
	if params.Repository != nil {
		repo := params.Repository
		prune = func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			return repo.DeletePublishedBefore(ctx, tx, cutoff, attempts)
		}
	}
	job, err := newPruneJob("outbox-retention", params.Logger, params.DB, params.Retention, defaultOutboxRetention, prune)
	if err != nil {
		return nil, err
	}
	job.fields["max_attempts"] = attempts
	return job, nil
}

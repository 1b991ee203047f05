package cron

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/campuscart/marketplace-backend/pkg/logger"
)

const defaultNotificationRetention = 90 * 24 * time.Hour

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationsCleanupRepo
	Retention  time.Duration
}

type notificationsCleanupRepo interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewNotificationCleanupJob deletes read notifications older than Retention.
// Unread ones are kept however old they are.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	var prune pruneFunc
	if params.Repository != nil {
		prune = params.Repository.DeleteOlderThan
	}
	return newPruneJob("notification-cleanup", params.Logger, params.DB, params.Retention, defaultNotificationRetention, prune)
}

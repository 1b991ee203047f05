package cron

import (
	"context"
	"fmt"

	"github.com/campuscart/marketplace-backend/pkg/logger"
)

const defaultRefundBatch = 25

// RefundRetryJobParams configure the job that re-drives stalled cancellations.
type RefundRetryJobParams struct {
	Logger    *logger.Logger
	Orders    pendingRefundRetrier
	BatchSize int
}

type pendingRefundRetrier interface {
	RetryPendingRefunds(ctx context.Context, limit int) (int, error)
}

func NewRefundRetryJob(params RefundRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultRefundBatch
	}
	return &refundRetryJob{logg: params.Logger, orders: params.Orders, batch: batch}, nil
}

type refundRetryJob struct {
	logg   *logger.Logger
	orders pendingRefundRetrier
	batch  int
}

func (j *refundRetryJob) Name() string { return "refund-retry" }

func (j *refundRetryJob) Run(ctx context.Context) error {
	refunded, err := j.orders.RetryPendingRefunds(ctx, j.batch)
	if err != nil {
		j.logg.Warn(j.logg.WithField(ctx, "refunded", refunded), "some refunds are still failing")
		return fmt.Errorf("retry pending refunds: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "refunded", refunded), "refund retry loop complete")
	return nil
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/campuscart/marketplace-backend/pkg/logger"
)

const (
	defaultUnpaidTTL  = 24 * time.Hour
	defaultOrderBatch = 100
)

// OrderTTLJobParams configure the unpaid order expiry job.
type OrderTTLJobParams struct {
	Logger    *logger.Logger
	Orders    unpaidOrderExpirer
	UnpaidTTL time.Duration
	BatchSize int
}

type unpaidOrderExpirer interface {
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// NewOrderTTLJob builds the job that cancels orders whose payment never arrived.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.UnpaidTTL
	if ttl <= 0 {
		ttl = defaultUnpaidTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultOrderBatch
	}
	return &orderTTLJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type orderTTLJob struct {
	logg   *logger.Logger
	orders unpaidOrderExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.orders.ExpireUnpaid(ctx, cutoff, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": expired,
	})
	if err != nil {
		return fmt.Errorf("expire unpaid orders: %w", err)
	}
	j.logg.Info(logCtx, "order expiration loop complete")
	return nil
}

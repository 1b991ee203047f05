package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campuscart/marketplace-backend/pkg/logger"
)

type fakeOrders struct {
	cutoff     time.Time
	limit      int
	retryLimit int
	err        error
}

func (f *fakeOrders) ExpireUnpaid(_ context.Context, cutoff time.Time, limit int) (int, error) {
	f.cutoff = cutoff
	f.limit = limit
	return 2, f.err
}

func (f *fakeOrders) RetryPendingRefunds(_ context.Context, limit int) (int, error) {
	f.retryLimit = limit
	return 1, f.err
}

func TestOrderTTLJobExpiresPastCutoff(t *testing.T) {
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	orders := &fakeOrders{}
	jobIface, err := NewOrderTTLJob(OrderTTLJobParams{Logger: logger.Nop(), Orders: orders, UnpaidTTL: 6 * time.Hour, BatchSize: 10})
	if err != nil {
		t.Fatalf("NewOrderTTLJob: %v", err)
	}
	job := jobIface.(*orderTTLJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-6 * time.Hour); !orders.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, orders.cutoff)
	}
	if orders.limit != 10 {
		t.Fatalf("expected limit 10, got %d", orders.limit)
	}
}

func TestOrderTTLJobDefaults(t *testing.T) {
	jobIface, err := NewOrderTTLJob(OrderTTLJobParams{Logger: logger.Nop(), Orders: &fakeOrders{}})
	if err != nil {
		t.Fatalf("NewOrderTTLJob: %v", err)
	}
	job := jobIface.(*orderTTLJob)
	if job.ttl != defaultUnpaidTTL || job.batch != defaultOrderBatch {
		t.Fatalf("unexpected defaults ttl=%s batch=%d", job.ttl, job.batch)
	}
	if _, err := NewOrderTTLJob(OrderTTLJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected error without orders service")
	}
}

func TestOrderTTLJobPropagatesErrors(t *testing.T) {
	job, err := NewOrderTTLJob(OrderTTLJobParams{Logger: logger.Nop(), Orders: &fakeOrders{err: errors.New("boom")}})
	if err != nil {
		t.Fatalf("NewOrderTTLJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRefundRetryJob(t *testing.T) {
	orders := &fakeOrders{}
	job, err := NewRefundRetryJob(RefundRetryJobParams{Logger: logger.Nop(), Orders: orders})
	if err != nil {
		t.Fatalf("NewRefundRetryJob: %v", err)
	}
	if job.Name() != "refund-retry" {
		t.Fatalf("unexpected name %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if orders.retryLimit != defaultRefundBatch {
		t.Fatalf("expected limit %d, got %d", defaultRefundBatch, orders.retryLimit)
	}

	orders.err = errors.New("gateway down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

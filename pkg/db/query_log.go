package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/campuscart/marketplace-backend/pkg/logger"
)

const maxLoggedSQL = 512

// queryLog routes gorm's statement tracing into the service logger. Only
// failed statements and those slower than slow are reported; record-not-found
// is a normal lookup miss and stays quiet.
type queryLog struct {
	logg *logger.Logger
	slow time.Duration
}

func newQueryLog(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &queryLog{logg: logg, slow: slow}
}

func (q *queryLog) LogMode(gormlogger.LogLevel) gormlogger.Interface { return q }

func (q *queryLog) Info(ctx context.Context, msg string, args ...any) {
	q.logg.Debug(ctx, fmt.Sprintf(msg, args...))
}

func (q *queryLog) Warn(ctx context.Context, msg string, args ...any) {
	q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
}

func (q *queryLog) Error(ctx context.Context, msg string, args ...any) {
	q.logg.Error(ctx, "gorm", fmt.Errorf(msg, args...))
}

func (q *queryLog) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := q.slow > 0 && elapsed > q.slow
	if !failed && !slow {
		return
	}

	statement, rows := fc()
	if len(statement) > maxLoggedSQL {
		statement = statement[:maxLoggedSQL] + "..."
	}
	ctx = q.logg.WithFields(ctx, map[string]any{
		"sql":         statement,
		"rows":        rows,
		"duration_ms": elapsed.Milliseconds(),
	})
	if failed {
		q.logg.Warn(q.logg.WithField(ctx, "error", err.Error()), "sql statement failed")
		return
	}
	q.logg.Warn(ctx, "slow sql statement")
}

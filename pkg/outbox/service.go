package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

const emitSavepoint = "outbox_emit"

type inserter interface {
	Insert(tx *gorm.DB, event models.OutboxEvent) error
}

// Service writes domain events to the outbox table inside the caller's
// transaction. The publisher process moves them to the broker later.
type Service struct {
	repo inserter
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit fails when tx is nil: an event written outside the state change's
// transaction could outlive a rollback.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if err := event.validate(); err != nil {
		return err
	}
	env, payload, err := seal(event, s.now())
	if err != nil {
		return err
	}

	if err := s.repo.Insert(tx, models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}); err != nil {
		return err
	}
	s.trace(ctx, event, "event_id", env.EventID).Info("outbox event queued")
	return nil
}

// EmitBestEffort emits inside a savepoint. A failed insert is rolled back to
// the savepoint and logged, and the caller's transaction carries on.
func (s *Service) EmitBestEffort(ctx context.Context, tx *gorm.DB, event DomainEvent) {
	if tx == nil {
		return
	}
	err := tx.SavePoint(emitSavepoint).Error
	if err == nil {
		if err = s.Emit(ctx, tx, event); err != nil {
			err = errors.Join(err, tx.RollbackTo(emitSavepoint).Error)
		}
	}
	if err != nil {
		s.trace(ctx, event, "error", err.Error()).Warn("outbox event dropped")
	}
}

// eventLog binds a logger to one event's fields; a nil logger discards.
type eventLog struct {
	logg *logger.Logger
	ctx  context.Context
}

func (s *Service) trace(ctx context.Context, event DomainEvent, key string, value any) eventLog {
	if s.logg == nil {
		return eventLog{}
	}
	return eventLog{logg: s.logg, ctx: s.logg.WithFields(ctx, map[string]any{
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		key:              value,
	})}
}

func (l eventLog) Info(msg string) {
	if l.logg != nil {
		l.logg.Info(l.ctx, msg)
	}
}

func (l eventLog) Warn(msg string) {
	if l.logg != nil {
		l.logg.Warn(l.ctx, msg)
	}
}

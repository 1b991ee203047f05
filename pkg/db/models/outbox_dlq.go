package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/enums"
)

// OutboxDLQ is the dead-letter copy of an outbox event that will not be
// retried. One row per event.
type OutboxDLQ struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	EventID       uuid.UUID                  `gorm:"column:event_id;type:uuid;not null;uniqueIndex:ux_outbox_dlq_event_id"`
	EventType     enums.OutboxEventType      `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType  `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                  `gorm:"column:aggregate_id;type:uuid;not null"`
	Topic         *string                    `gorm:"column:topic"`
	Payload       json.RawMessage            `gorm:"column:payload;type:jsonb;not null"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"column:error_reason;type:outbox_dlq_error_reason_enum;not null"`
	ErrorMessage  *string                    `gorm:"column:error_message"`
	AttemptCount  int                        `gorm:"column:attempt_count;not null;default:0"`
	FailedAt      time.Time                  `gorm:"column:failed_at;not null"`
}

func (OutboxDLQ) TableName() string {
	return "outbox_dlq"
}

// DeadLetter copies event into a dead-letter row stamped with failedAt.
func DeadLetter(event OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, topic string, failedAt time.Time) OutboxDLQ {
	row := OutboxDLQ{
		ID:            uuid.New(),
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		AttemptCount:  event.AttemptCount,
		FailedAt:      failedAt.UTC(),
	}
	if topic != "" {
		row.Topic = &topic
	}
	if cause != nil {
		msg := cause.Error()
		row.ErrorMessage = &msg
	}
	return row
}

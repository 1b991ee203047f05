package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/enums"
)

// OutboxEvent is a domain event written in the same transaction as the state
// change it describes and published later by the outbox publisher.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:event_type_enum;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
}

// PartitionKey groups events of one aggregate so transports keep their order.
func (e OutboxEvent) PartitionKey() string {
	return e.AggregateID.String()
}

func (e OutboxEvent) Published() bool {
	return e.PublishedAt != nil
}

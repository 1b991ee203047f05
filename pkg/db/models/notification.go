package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to users.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID              `gorm:"type:uuid;not null;index;uniqueIndex:ux_notifications_user_event,priority:1"`
	EventID   uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:ux_notifications_user_event,priority:2"`
	Type      enums.NotificationType `gorm:"type:notification_type;not null"`
	Title     string                 `gorm:"type:text;not null"`
	Message   string                 `gorm:"type:text;not null"`
	Link      *string                `gorm:"type:text"`
	ReadAt    *time.Time
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

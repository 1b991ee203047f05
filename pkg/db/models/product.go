package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/enums"
)

// Product is a single-unit listing owned by a seller.
type Product struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SellerID   uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	Title      string              `gorm:"column:title;not null"`
	PriceCents int64               `gorm:"column:price_cents;not null"`
	Currency   string              `gorm:"column:currency;not null"`
	Status     enums.ProductStatus `gorm:"column:status;type:product_status;not null"`
	ViewCount  int64               `gorm:"column:view_count;not null;default:0"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

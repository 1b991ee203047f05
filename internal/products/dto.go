package product

import (
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	"github.com/campuscart/marketplace-backend/pkg/money"
)

// ProductDTO is the API representation of a listing.
type ProductDTO struct {
	ID           uuid.UUID           `json:"id"`
	SellerID     uuid.UUID           `json:"seller_id"`
	Title        string              `json:"title"`
	Price        money.Amount        `json:"price"`
	PriceDisplay string              `json:"price_display"`
	Status       enums.ProductStatus `json:"status"`
	ViewCount    int64               `json:"view_count"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func NewProductDTO(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	price := money.New(p.PriceCents, p.Currency)
	return &ProductDTO{
		ID:           p.ID,
		SellerID:     p.SellerID,
		Title:        p.Title,
		Price:        price,
		PriceDisplay: price.Display(),
		Status:       p.Status,
		ViewCount:    p.ViewCount,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

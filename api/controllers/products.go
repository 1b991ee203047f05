package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/api/middleware"
	"github.com/campuscart/marketplace-backend/api/responses"
	"github.com/campuscart/marketplace-backend/api/validators"
	product "github.com/campuscart/marketplace-backend/internal/products"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

const maxTitleLength = 140

type ProductService interface {
	Create(ctx context.Context, sellerID uuid.UUID, input product.CreateProductInput) (*product.ProductDTO, error)
	Get(ctx context.Context, productID uuid.UUID) (*product.ProductDTO, error)
	Remove(ctx context.Context, actorID uuid.UUID, role enums.UserRole, productID uuid.UUID) (*product.ProductDTO, error)
}

type createProductRequest struct {
	Title      string `json:"title" validate:"required,max=140"`
	PriceCents int64  `json:"price_cents" validate:"gt=0"`
}

// CreateProduct lists a new product with the caller as seller.
func CreateProduct(svc ProductService, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, "product", svc != nil, true, func(w http.ResponseWriter, r *http.Request, sellerID uuid.UUID) error {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return err
		}
		title := validators.SanitizeString(payload.Title, maxTitleLength)
		if title == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
		}
		created, err := svc.Create(r.Context(), sellerID, product.CreateProductInput{Title: title, PriceCents: payload.PriceCents})
		if err != nil {
			return err
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
		return nil
	})
}

func GetProduct(svc ProductService, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, "product", svc != nil, false, func(w http.ResponseWriter, r *http.Request, _ uuid.UUID) error {
		productID, err := validators.ParsePathUUID(r, "productId")
		if err != nil {
			return err
		}
		found, err := svc.Get(logg.WithProductID(r.Context(), productID.String()), productID)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, found)
		return nil
	})
}

// RemoveProduct withdraws a listing. Sellers remove their own, admins any.
func RemoveProduct(svc ProductService, logg *logger.Logger) http.HandlerFunc {
	return serve(logg, "product", svc != nil, true, func(w http.ResponseWriter, r *http.Request, actorID uuid.UUID) error {
		productID, err := validators.ParsePathUUID(r, "productId")
		if err != nil {
			return err
		}
		ctx := logg.WithProductID(r.Context(), productID.String())
		removed, err := svc.Remove(ctx, actorID, middleware.RoleFromContext(r.Context()), productID)
		if err != nil {
			return err
		}
		responses.WriteSuccess(w, removed)
		return nil
	})
}

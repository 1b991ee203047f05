package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
	"github.com/campuscart/marketplace-backend/pkg/outbox"
	"github.com/campuscart/marketplace-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitBestEffort(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent)
}

// CreateProductInput holds the validated payload to create a listing.
type CreateProductInput struct {
	Title      string
	PriceCents int64
}

type ServiceParams struct {
	Repository *Repository
	DB         txRunner
	Outbox     outboxEmitter
	Logger     *logger.Logger
	Currency   string
}

// Service is the product availability store plus the seller listing surface.
type Service struct {
	repo     *Repository
	tx       txRunner
	outbox   outboxEmitter
	logg     *logger.Logger
	currency string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		return nil, fmt.Errorf("currency required")
	}
	return &Service{
		repo:     params.Repository,
		tx:       params.DB,
		outbox:   params.Outbox,
		logg:     params.Logger,
		currency: currency,
	}, nil
}

func (s *Service) Create(ctx context.Context, sellerID uuid.UUID, input CreateProductInput) (*ProductDTO, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	product := &models.Product{
		ID:         uuid.New(),
		SellerID:   sellerID,
		Title:      title,
		PriceCents: input.PriceCents,
		Currency:   s.currency,
		Status:     enums.ProductStatusActive,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
	}
	s.logg.Info(s.logg.WithProductID(ctx, product.ID.String()), "product listed")
	return NewProductDTO(product), nil
}

// Get returns the listing and counts the view.
func (s *Service) Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	found, err := s.repo.IncrementViews(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment product views")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	product, err := s.load(ctx, s.repo, productID)
	if err != nil {
		return nil, err
	}
	return NewProductDTO(product), nil
}

// Remove withdraws an active listing. Only the seller or an admin may remove it,
// and never while a sale is in flight or done.
func (s *Service) Remove(ctx context.Context, actorID uuid.UUID, role enums.UserRole, productID uuid.UUID) (*ProductDTO, error) {
	var removed *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := s.load(ctx, repo, productID)
		if err != nil {
			return err
		}
		if product.SellerID != actorID && role != enums.UserRoleAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "product does not belong to user")
		}
		switch product.Status {
		case enums.ProductStatusRemoved:
			removed = product
			return nil
		case enums.ProductStatusPending, enums.ProductStatusSold:
			return pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("product is %s", product.Status))
		}
		ok, err := repo.CompareAndSetStatus(ctx, productID, enums.ProductStatusActive, enums.ProductStatusRemoved)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove product")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "product changed concurrently")
		}
		product.Status = enums.ProductStatusRemoved
		removed = product
		s.outbox.EmitBestEffort(ctx, tx, StatusChangedEvent(product, enums.ProductStatusActive, enums.ProductStatusRemoved, nil, actorID, string(role)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewProductDTO(removed), nil
}

// Find loads a product using tx when provided.
func (s *Service) Find(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	return s.load(ctx, s.repo.WithTx(tx), productID)
}

// Reserve atomically moves an active product to pending. Losing the race
// yields Conflict.
func (s *Service) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	return s.transition(ctx, tx, productID, enums.ProductStatusActive, enums.ProductStatusPending, pkgerrors.CodeConflict)
}

// Release returns a pending product to active.
func (s *Service) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	return s.transition(ctx, tx, productID, enums.ProductStatusPending, enums.ProductStatusActive, pkgerrors.CodeInvalidState)
}

// Finalize marks a pending product as sold.
func (s *Service) Finalize(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	return s.transition(ctx, tx, productID, enums.ProductStatusPending, enums.ProductStatusSold, pkgerrors.CodeInvalidState)
}

func (s *Service) transition(ctx context.Context, tx *gorm.DB, productID uuid.UUID, from, to enums.ProductStatus, lostCode pkgerrors.Code) error {
	repo := s.repo.WithTx(tx)
	ok, err := repo.CompareAndSetStatus(ctx, productID, from, to)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("product %s -> %s", from, to))
	}
	if ok {
		return nil
	}
	current, err := s.load(ctx, repo, productID)
	if err != nil {
		return err
	}
	return pkgerrors.New(lostCode, fmt.Sprintf("product is %s, expected %s", current.Status, from)).
		WithDetails(map[string]any{"product_id": productID, "status": current.Status})
}

func (s *Service) load(ctx context.Context, repo *Repository, productID uuid.UUID) (*models.Product, error) {
	product, err := repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// StatusChangedEvent builds the product.statusChanged outbox event.
func StatusChangedEvent(p *models.Product, from, to enums.ProductStatus, orderID *uuid.UUID, actorID uuid.UUID, role string) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventProductStatusChanged,
		AggregateType: enums.AggregateProduct,
		AggregateID:   p.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: actorID, Role: role},
		Data: payloads.ProductStatusChangedEvent{
			ProductID: p.ID,
			SellerID:  p.SellerID,
			OrderID:   orderID,
			From:      from,
			To:        to,
			ChangedAt: time.Now().UTC(),
		},
	}
}

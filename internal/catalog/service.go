package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dfrestrepo/mercaflow-backend/internal/pricing"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
)

// PricedProduct combines a product with its live price and winning promotion.
type PricedProduct struct {
	Product        models.Product
	PriceHistoryID uuid.UUID
	UnitPriceCents int
	Promotion      *models.Promotion
	Promotions     []models.Promotion
}

type catalogReader interface {
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	CurrentPrice(ctx context.Context, productID uuid.UUID) (*models.PriceHistory, error)
	ActivePromotions(ctx context.Context, productID uuid.UUID) ([]models.Promotion, error)
}

// Service exposes catalog reads used by cart and checkout flows.
type Service interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	GetPricedProduct(ctx context.Context, productID uuid.UUID) (*PricedProduct, error)
}

type service struct {
	repo catalogReader
	logg *logger.Logger
	now  func() time.Time
}

// NewService wires the catalog service.
func NewService(repo catalogReader, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.New("catalog repository is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return s.repo.FindProduct(ctx, productID)
}

func (s *service) GetPricedProduct(ctx context.Context, productID uuid.UUID) (*PricedProduct, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	price, err := s.repo.CurrentPrice(ctx, productID)
	if err != nil {
		return nil, err
	}

	promos, err := s.repo.ActivePromotions(ctx, productID)
	if err != nil {
		return nil, err
	}

	winner := pricing.ResolvePromotion(promos, price.UnitPriceCents, s.now())

	return &PricedProduct{
		Product:        *product,
		PriceHistoryID: price.ID,
		UnitPriceCents: price.UnitPriceCents,
		Promotion:      winner,
		Promotions:     promos,
	}, nil
}

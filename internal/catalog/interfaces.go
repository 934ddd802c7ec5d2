package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
)

// CatalogRepository defines the catalog persistence surface shared with the
// order freeze transaction.
type CatalogRepository interface {
	WithTx(tx *gorm.DB) CatalogRepository
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	FindProductForUpdate(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	CurrentPrice(ctx context.Context, productID uuid.UUID) (*models.PriceHistory, error)
	FindPrice(ctx context.Context, priceID uuid.UUID) (*models.PriceHistory, error)
	ActivePromotions(ctx context.Context, productID uuid.UUID) ([]models.Promotion, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error
}

package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
)

// Repository reads the catalog slice this core depends on: products, the
// append-only price history, and promotions.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) CatalogRepository {
	return &Repository{db: tx}
}

// FindProduct loads a product by ID.
func (r *Repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	return &product, nil
}

// FindProductForUpdate loads a product under a row lock inside a transaction.
func (r *Repository) FindProductForUpdate(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", productID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locking product")
	}
	return &product, nil
}

// CurrentPrice returns the latest price history row for the product.
func (r *Repository) CurrentPrice(ctx context.Context, productID uuid.UUID) (*models.PriceHistory, error) {
	var price models.PriceHistory
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		First(&price).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product has no price")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading current price")
	}
	return &price, nil
}

// FindPrice loads a specific price history row.
func (r *Repository) FindPrice(ctx context.Context, priceID uuid.UUID) (*models.PriceHistory, error) {
	var price models.PriceHistory
	err := r.db.WithContext(ctx).First(&price, "id = ?", priceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "price not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading price")
	}
	return &price, nil
}

// ActivePromotions returns the active promotions attached to a product.
// Window filtering happens in the pricing resolver, not here.
func (r *Repository) ActivePromotions(ctx context.Context, productID uuid.UUID) ([]models.Promotion, error) {
	var promos []models.Promotion
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND state = ?", productID, enums.PromotionStateActive).
		Find(&promos).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading promotions")
	}
	return promos, nil
}

// DecrementStock subtracts quantity from live stock, guarding against going
// negative.
func (r *Repository) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "decrementing stock")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")
	}
	return nil
}

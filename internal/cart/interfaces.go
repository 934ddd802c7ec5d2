package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	FindByIDForUpdate(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindActiveBySession(ctx context.Context, sessionID string) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	UpdateStatus(ctx context.Context, cartID uuid.UUID, status enums.CartStatus) error
	Touch(ctx context.Context, cartID uuid.UUID, expiresAt time.Time) error
	Reparent(ctx context.Context, cartID, userID uuid.UUID) error
	FindLineForUpdate(ctx context.Context, cartID, productID uuid.UUID) (*models.CartLine, error)
	CreateLine(ctx context.Context, line *models.CartLine) error
	SetLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error
	IncrementLineQuantity(ctx context.Context, cartID, productID uuid.UUID, delta int) error
	DeleteLine(ctx context.Context, lineID uuid.UUID) error
	CountLines(ctx context.Context, cartID uuid.UUID) (int64, error)
}

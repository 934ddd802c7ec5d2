package models

import (
	"time"

	"github.com/google/uuid"
)

// CartLine is one product entry inside a cart. The (cart_id, product_id)
// unique constraint is the correctness backstop for concurrent add-line calls:
// one insert wins, the loser falls back to a quantity increment.
// PriceHistoryID is captured when the line is first added and never refreshed.
type CartLine struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID         uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_cart_lines_cart_product"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_cart_lines_cart_product"`
	Quantity       int       `gorm:"column:quantity;not null"`
	PriceHistoryID uuid.UUID `gorm:"column:price_history_id;type:uuid;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

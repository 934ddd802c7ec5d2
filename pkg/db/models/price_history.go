package models

import (
	"time"

	"github.com/google/uuid"
)

// PriceHistory is an append-only unit price record for a product. The most
// recent row is the product's current price; rows are never updated.
type PriceHistory struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

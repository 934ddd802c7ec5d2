package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderPriceHistory is the immutable per-line snapshot written at order
// freeze. Rows are never updated; refunds and adjustments are modeled as new
// records elsewhere.
type OrderPriceHistory struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	PriceHistoryID uuid.UUID  `gorm:"column:price_history_id;type:uuid;not null"`
	PromotionID    *uuid.UUID `gorm:"column:promotion_id;type:uuid"`
	Quantity       int        `gorm:"column:quantity;not null"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	SubtotalCents  int        `gorm:"column:subtotal_cents;not null"`
	DiscountCents  int        `gorm:"column:discount_cents;not null;default:0"`
	FinalCents     int        `gorm:"column:final_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

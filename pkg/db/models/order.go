package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	"github.com/dfrestrepo/mercaflow-backend/pkg/types"
)

// Order is the immutable result of freezing a cart. Monetary totals are
// snapshotted at creation and never recomputed from live prices.
// LastPaymentID is a lookup convenience; Payment owns the relationship
// through its order_id column.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	CartID            uuid.UUID           `gorm:"column:cart_id;type:uuid;not null;unique"`
	Status            enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	Currency          enums.Currency      `gorm:"column:currency;not null;default:'COP'"`
	SubtotalCents     int                 `gorm:"column:subtotal_cents;not null"`
	DiscountCents     int                 `gorm:"column:discount_cents;not null;default:0"`
	ShippingCents     int                 `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents          int                 `gorm:"column:tax_cents;not null;default:0"`
	TotalCents        int                 `gorm:"column:total_cents;not null"`
	DeliveryType      enums.DeliveryType  `gorm:"column:delivery_type;not null"`
	DeliveryAddressID *uuid.UUID          `gorm:"column:delivery_address_id;type:uuid"`
	DeliveryAddress   *types.AddressSnapshot `gorm:"column:delivery_address;type:jsonb"`
	PickupAgencyID    *uuid.UUID          `gorm:"column:pickup_agency_id;type:uuid"`
	PaymentMethodID   uuid.UUID           `gorm:"column:payment_method_id;type:uuid;not null"`
	LastPaymentID     *uuid.UUID          `gorm:"column:last_payment_id;type:uuid"`
	Lines             []OrderPriceHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

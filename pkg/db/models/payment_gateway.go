package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PaymentGatewayConfig is one row per provider in the routing table. A payment
// method type resolves to the enabled default gateway supporting it, filtered
// by amount range and currency.
type PaymentGatewayConfig struct {
	ID                  uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code                string         `gorm:"column:code;not null;unique"`
	DisplayName         string         `gorm:"column:display_name;not null"`
	Enabled             bool           `gorm:"column:enabled;not null;default:true"`
	IsDefault           bool           `gorm:"column:is_default;not null;default:false"`
	SupportedMethods    pq.StringArray `gorm:"column:supported_methods;type:text[];not null"`
	SupportedCurrencies pq.StringArray `gorm:"column:supported_currencies;type:text[];not null"`
	MinAmountCents      *int           `gorm:"column:min_amount_cents"`
	MaxAmountCents      *int           `gorm:"column:max_amount_cents"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the table aligned with the seeded routing rows.
func (PaymentGatewayConfig) TableName() string { return "payment_gateways" }

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
)

// PaymentMethod is a shopper-selectable way to pay, with optional order total
// bounds enforced at checkout validation time.
type PaymentMethod struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string                  `gorm:"column:name;not null"`
	Type           enums.PaymentMethodType `gorm:"column:type;not null"`
	Active         bool                    `gorm:"column:active;not null;default:true"`
	MinAmountCents *int                    `gorm:"column:min_amount_cents"`
	MaxAmountCents *int                    `gorm:"column:max_amount_cents"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
)

// Payment is one attempt at paying an order, not one row per order. Raw
// provider payloads land in GatewayResponse/Metadata for audit and are never
// parsed back into business logic beyond the mapped fields.
type Payment struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	GatewayCode     string                  `gorm:"column:gateway_code;not null"`
	MethodType      enums.PaymentMethodType `gorm:"column:method_type;not null"`
	State           enums.PaymentState      `gorm:"column:state;not null;default:'pending'"`
	AmountCents     int                     `gorm:"column:amount_cents;not null"`
	Currency        enums.Currency          `gorm:"column:currency;not null;default:'COP'"`
	TransactionID   *string                 `gorm:"column:transaction_id;uniqueIndex:ux_payments_transaction,where:transaction_id IS NOT NULL"`
	Attempts        int                     `gorm:"column:attempts;not null;default:1"`
	LastAttemptAt   time.Time               `gorm:"column:last_attempt_at;not null"`
	Description     *string                 `gorm:"column:description"`
	FailureReason   *string                 `gorm:"column:failure_reason"`
	GatewayResponse json.RawMessage         `gorm:"column:gateway_response;type:jsonb"`
	Metadata        json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

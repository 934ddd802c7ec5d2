package payloads

import (
	"time"

	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	"github.com/google/uuid"
)

// OrderCreatedEvent signals that a cart was frozen into an order.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID          `json:"order_id"`
	CartID       uuid.UUID          `json:"cart_id"`
	UserID       uuid.UUID          `json:"user_id"`
	TotalCents   int                `json:"total_cents"`
	Currency     enums.Currency     `json:"currency"`
	DeliveryType enums.DeliveryType `json:"delivery_type"`
}

// OrderStateChangedEvent is emitted on every order status transition.
type OrderStateChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
	Reason  string            `json:"reason,omitempty"`
}

// OrderCancelledEvent is emitted when a buyer or operator cancels an order.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// PaymentStateChangedEvent surfaces payment attempt transitions to downstream consumers.
type PaymentStateChangedEvent struct {
	PaymentID     uuid.UUID               `json:"payment_id"`
	OrderID       uuid.UUID               `json:"order_id"`
	GatewayCode   string                  `json:"gateway_code"`
	MethodType    enums.PaymentMethodType `json:"method_type"`
	From          enums.PaymentState      `json:"from"`
	To            enums.PaymentState      `json:"to"`
	TransactionID *string                 `json:"transaction_id,omitempty"`
	AmountCents   int                     `json:"amount_cents"`
}

// CartOrderedEvent marks the cart terminal transition at checkout.
type CartOrderedEvent struct {
	CartID  uuid.UUID `json:"cart_id"`
	OrderID uuid.UUID `json:"order_id"`
	UserID  uuid.UUID `json:"user_id"`
}

package enums

import "fmt"

// OrderStatus tracks an order from creation through payment and fulfillment.
type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "pending"
	OrderStatusPaymentPending    OrderStatus = "payment_pending"
	OrderStatusPaymentProcessing OrderStatus = "payment_processing"
	OrderStatusPaymentCompleted  OrderStatus = "payment_completed"
	OrderStatusPaymentFailed     OrderStatus = "payment_failed"
	OrderStatusProcessing        OrderStatus = "processing"
	OrderStatusReadyForPickup    OrderStatus = "ready_for_pickup"
	OrderStatusShipping          OrderStatus = "shipping"
	OrderStatusDelivered         OrderStatus = "delivered"
	OrderStatusCancelled         OrderStatus = "cancelled"
	OrderStatusRefunded          OrderStatus = "refunded"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaymentPending,
	OrderStatusPaymentProcessing,
	OrderStatusPaymentCompleted,
	OrderStatusPaymentFailed,
	OrderStatusProcessing,
	OrderStatusReadyForPickup,
	OrderStatusShipping,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusCancelled || o == OrderStatusRefunded
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

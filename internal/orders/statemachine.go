package orders

import (
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
)

// orderTransitions lists every permitted order status transition. Anything
// absent from this table is rejected, never silently applied.
var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusPaymentPending,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaymentPending: {
		enums.OrderStatusPaymentProcessing,
		enums.OrderStatusPaymentCompleted,
		enums.OrderStatusPaymentFailed,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaymentProcessing: {
		enums.OrderStatusPaymentCompleted,
		enums.OrderStatusPaymentFailed,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaymentCompleted: {
		enums.OrderStatusProcessing,
		enums.OrderStatusRefunded,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaymentFailed: {
		enums.OrderStatusPaymentPending,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusProcessing: {
		enums.OrderStatusReadyForPickup,
		enums.OrderStatusShipping,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusReadyForPickup: {
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusShipping: {
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusDelivered: {
		enums.OrderStatusRefunded,
	},
	enums.OrderStatusCancelled: {},
	enums.OrderStatusRefunded:  {},
}

// CanTransition reports whether the order status change is permitted.
func CanTransition(from, to enums.OrderStatus) bool {
	if from == to {
		return true
	}
	for _, candidate := range orderTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// EnsureTransition returns a state-conflict error when the transition is not
// in the table. Same-status transitions pass so replayed webhooks stay
// idempotent.
func EnsureTransition(from, to enums.OrderStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order state transition not permitted").
		WithDetails(map[string]string{
			"from": from.String(),
			"to":   to.String(),
		})
}

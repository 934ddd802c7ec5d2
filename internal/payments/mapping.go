package payments

import "github.com/dfrestrepo/mercaflow-backend/pkg/enums"

// OrderStatusForPaymentState maps a normalized payment state to the order
// status it drives. The orchestrator and the webhook reconcilers share this
// table so synchronous results and callbacks agree.
func OrderStatusForPaymentState(state enums.PaymentState) (enums.OrderStatus, bool) {
	switch state {
	case enums.PaymentStatePending:
		return enums.OrderStatusPaymentPending, true
	case enums.PaymentStateProcessing:
		return enums.OrderStatusPaymentProcessing, true
	case enums.PaymentStateApproved:
		return enums.OrderStatusPaymentCompleted, true
	case enums.PaymentStateRejected, enums.PaymentStateFailed:
		return enums.OrderStatusPaymentFailed, true
	case enums.PaymentStateCancelled:
		return enums.OrderStatusCancelled, true
	case enums.PaymentStateRefunded:
		return enums.OrderStatusRefunded, true
	default:
		return "", false
	}
}

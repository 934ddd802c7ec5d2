package enums

import "fmt"

// PaymentState is the normalized payment lifecycle shared by every gateway.
// Each provider maps its vendor-specific status vocabulary into this enum so
// the orchestrator and webhook reconciler can share one mapping table.
type PaymentState string

const (
	PaymentStatePending    PaymentState = "pending"
	PaymentStateProcessing PaymentState = "processing"
	PaymentStateApproved   PaymentState = "approved"
	PaymentStateRejected   PaymentState = "rejected"
	PaymentStateFailed     PaymentState = "failed"
	PaymentStateCancelled  PaymentState = "cancelled"
	PaymentStateRefunded   PaymentState = "refunded"
)

var validPaymentStates = []PaymentState{
	PaymentStatePending,
	PaymentStateProcessing,
	PaymentStateApproved,
	PaymentStateRejected,
	PaymentStateFailed,
	PaymentStateCancelled,
	PaymentStateRefunded,
}

// String implements fmt.Stringer.
func (p PaymentState) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentState.
func (p PaymentState) IsValid() bool {
	for _, candidate := range validPaymentStates {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a payment attempt can still change state.
func (p PaymentState) IsTerminal() bool {
	switch p {
	case PaymentStateApproved, PaymentStateRejected, PaymentStateFailed,
		PaymentStateCancelled, PaymentStateRefunded:
		return true
	}
	return false
}

// ParsePaymentState converts raw input into a PaymentState.
func ParsePaymentState(value string) (PaymentState, error) {
	for _, candidate := range validPaymentStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment state %q", value)
}

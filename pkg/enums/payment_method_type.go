package enums

import "fmt"

// PaymentMethodType describes how a shopper intends to settle an order.
type PaymentMethodType string

const (
	PaymentMethodTypePSE        PaymentMethodType = "pse"
	PaymentMethodTypeCreditCard PaymentMethodType = "credit_card"
	PaymentMethodTypeDebitCard  PaymentMethodType = "debit_card"
	PaymentMethodTypeTransfer   PaymentMethodType = "transfer"
	PaymentMethodTypeCash       PaymentMethodType = "cash"
)

var validPaymentMethodTypes = []PaymentMethodType{
	PaymentMethodTypePSE,
	PaymentMethodTypeCreditCard,
	PaymentMethodTypeDebitCard,
	PaymentMethodTypeTransfer,
	PaymentMethodTypeCash,
}

// String implements fmt.Stringer.
func (p PaymentMethodType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethodType.
func (p PaymentMethodType) IsValid() bool {
	for _, candidate := range validPaymentMethodTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsCard reports whether the method settles through a card network.
func (p PaymentMethodType) IsCard() bool {
	return p == PaymentMethodTypeCreditCard || p == PaymentMethodTypeDebitCard
}

// ParsePaymentMethodType converts raw input into a PaymentMethodType.
func ParsePaymentMethodType(value string) (PaymentMethodType, error) {
	for _, candidate := range validPaymentMethodTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method type %q", value)
}

package gateway

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
)

// CardPaymentRequest carries a tokenized card charge.
type CardPaymentRequest struct {
	PaymentID   uuid.UUID
	OrderID     uuid.UUID
	AmountCents int
	Currency    enums.Currency
	CardToken   string
	Description string
}

// PSEPaymentRequest starts a bank-redirect payment.
type PSEPaymentRequest struct {
	PaymentID   uuid.UUID
	OrderID     uuid.UUID
	AmountCents int
	Currency    enums.Currency
	BankCode    string
	Description string
}

// OfflinePaymentRequest records an out-of-band settlement intent.
type OfflinePaymentRequest struct {
	PaymentID   uuid.UUID
	OrderID     uuid.UUID
	AmountCents int
	Currency    enums.Currency
	MethodType  enums.PaymentMethodType
	Description string
}

// Result is a provider response normalized into the shared payment state.
type Result struct {
	TransactionID string
	State         enums.PaymentState
	RedirectURL   string
	FailureReason string
	Raw           json.RawMessage
}

// Bank is one entry in a redirect provider's bank directory.
type Bank struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Info describes a provider for the admin surface.
type Info struct {
	Code        string                    `json:"code"`
	DisplayName string                    `json:"display_name"`
	Environment string                    `json:"environment"`
	Methods     []enums.PaymentMethodType `json:"methods"`
}

// Gateway is the uniform capability set every provider implements. Providers
// return an unsupported-operation error for capabilities they do not have.
type Gateway interface {
	Code() string
	ProcessCardPayment(ctx context.Context, req CardPaymentRequest) (*Result, error)
	ProcessPSEPayment(ctx context.Context, req PSEPaymentRequest) (*Result, error)
	ProcessOfflinePayment(ctx context.Context, req OfflinePaymentRequest) (*Result, error)
	VerifyTransaction(ctx context.Context, transactionID string) (*Result, error)
	RefundTransaction(ctx context.Context, transactionID string, amountCents int) (*Result, error)
	GetBanks(ctx context.Context) ([]Bank, error)
	TestConnection(ctx context.Context) error
	Info() Info
}

// ErrUnsupported builds the error providers return for capabilities outside
// their method set.
func ErrUnsupported(code, operation string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "operation not supported by gateway").
		WithDetails(map[string]string{
			"gateway":   code,
			"operation": operation,
		})
}

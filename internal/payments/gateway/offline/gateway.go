package offline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dfrestrepo/mercaflow-backend/internal/payments/gateway"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
)

// Code is the routing-table identifier for this provider.
const Code = "offline"

// Gateway records cash and bank-transfer intents. There is no external call;
// the payment stays pending until an operator settles it.
type Gateway struct {
	logg *logger.Logger
	now  func() time.Time
}

// New builds the offline gateway.
func New(logg *logger.Logger) (*Gateway, error) {
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Gateway{logg: logg, now: time.Now}, nil
}

// Code implements gateway.Gateway.
func (g *Gateway) Code() string { return Code }

// ProcessCardPayment is not an offline capability.
func (g *Gateway) ProcessCardPayment(ctx context.Context, req gateway.CardPaymentRequest) (*gateway.Result, error) {
	return nil, gateway.ErrUnsupported(Code, "card")
}

// ProcessPSEPayment is not an offline capability.
func (g *Gateway) ProcessPSEPayment(ctx context.Context, req gateway.PSEPaymentRequest) (*gateway.Result, error) {
	return nil, gateway.ErrUnsupported(Code, "pse")
}

// ProcessOfflinePayment issues a local reference and leaves the payment
// pending for manual settlement.
func (g *Gateway) ProcessOfflinePayment(ctx context.Context, req gateway.OfflinePaymentRequest) (*gateway.Result, error) {
	switch req.MethodType {
	case enums.PaymentMethodTypeCash, enums.PaymentMethodTypeTransfer:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "method cannot settle offline").
			WithDetails(map[string]string{"method": req.MethodType.String()})
	}

	receipt := struct {
		Method      string    `json:"method"`
		AmountCents int       `json:"amount_cents"`
		Currency    string    `json:"currency"`
		IssuedAt    time.Time `json:"issued_at"`
	}{
		Method:      req.MethodType.String(),
		AmountCents: req.AmountCents,
		Currency:    req.Currency.String(),
		IssuedAt:    g.now().UTC(),
	}
	raw, _ := json.Marshal(receipt)

	return &gateway.Result{
		TransactionID: "off_" + uuid.NewString(),
		State:         enums.PaymentStatePending,
		Raw:           raw,
	}, nil
}

// VerifyTransaction has no remote source of truth to consult.
func (g *Gateway) VerifyTransaction(ctx context.Context, transactionID string) (*gateway.Result, error) {
	return nil, gateway.ErrUnsupported(Code, "verify")
}

// RefundTransaction happens out of band for offline settlements.
func (g *Gateway) RefundTransaction(ctx context.Context, transactionID string, amountCents int) (*gateway.Result, error) {
	return nil, gateway.ErrUnsupported(Code, "refund")
}

// GetBanks is not an offline capability.
func (g *Gateway) GetBanks(ctx context.Context) ([]gateway.Bank, error) {
	return nil, gateway.ErrUnsupported(Code, "banks")
}

// TestConnection always succeeds; there is nothing to reach.
func (g *Gateway) TestConnection(ctx context.Context) error { return nil }

// Info implements gateway.Gateway.
func (g *Gateway) Info() gateway.Info {
	return gateway.Info{
		Code:        Code,
		DisplayName: "Offline settlement",
		Environment: "n/a",
		Methods: []enums.PaymentMethodType{
			enums.PaymentMethodTypeCash,
			enums.PaymentMethodTypeTransfer,
		},
	}
}

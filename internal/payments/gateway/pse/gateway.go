package pse

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dfrestrepo/mercaflow-backend/internal/payments/gateway"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	pkgpse "github.com/dfrestrepo/mercaflow-backend/pkg/pse"
)

// Code is the routing-table identifier for this provider.
const Code = "pse"

// AggregatorAPI exposes the subset of aggregator operations the gateway uses.
type AggregatorAPI interface {
	CreateTransaction(ctx context.Context, req pkgpse.TransactionRequest) (*pkgpse.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*pkgpse.Transaction, error)
	ListBanks(ctx context.Context) ([]pkgpse.Bank, error)
}

// Gateway starts bank-redirect payments through the PSE aggregator.
type Gateway struct {
	api         AggregatorAPI
	environment string
	logg        *logger.Logger
}

// New builds the PSE gateway over an initialized aggregator client.
func New(api AggregatorAPI, environment string, logg *logger.Logger) (*Gateway, error) {
	if api == nil {
		return nil, errors.New("pse client is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Gateway{api: api, environment: environment, logg: logg}, nil
}

// Code implements gateway.Gateway.
func (g *Gateway) Code() string { return Code }

// ProcessCardPayment is not a PSE capability.
func (g *Gateway) ProcessCardPayment(ctx context.Context, req gateway.CardPaymentRequest) (*gateway.Result, error) {
	return nil, gateway.ErrUnsupported(Code, "card")
}

// ProcessPSEPayment starts a bank redirect. The returned state stays pending
// until the shopper completes the bank flow and the aggregator calls back.
func (g *Gateway) ProcessPSEPayment(ctx context.Context, req gateway.PSEPaymentRequest) (*gateway.Result, error) {
	if strings.TrimSpace(req.BankCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank code is required")
	}

	tx, err := g.api.CreateTransaction(ctx, pkgpse.TransactionRequest{
		Reference:   req.PaymentID.String(),
		AmountCents: req.AmountCents,
		Currency:    req.Currency.String(),
		BankCode:    req.BankCode,
		Description: req.Description,
	})
	if err != nil {
		return nil, err
	}
	return resultFromTransaction(tx), nil
}

// ProcessOfflinePayment is not a PSE capability.
func (g *Gateway) ProcessOfflinePayment(ctx context.Context, req gateway.OfflinePaymentRequest) (*gateway.Result, error) {
	return nil, gateway.ErrUnsupported(Code, "offline")
}

// VerifyTransaction re-reads the aggregator transaction.
func (g *Gateway) VerifyTransaction(ctx context.Context, transactionID string) (*gateway.Result, error) {
	tx, err := g.api.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return resultFromTransaction(tx), nil
}

// RefundTransaction is not offered by the aggregator. Refunds for PSE happen
// out of band through the bank.
func (g *Gateway) RefundTransaction(ctx context.Context, transactionID string, amountCents int) (*gateway.Result, error) {
	return nil, gateway.ErrUnsupported(Code, "refund")
}

// GetBanks lists the participating banks for the checkout bank picker.
func (g *Gateway) GetBanks(ctx context.Context) ([]gateway.Bank, error) {
	banks, err := g.api.ListBanks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]gateway.Bank, 0, len(banks))
	for _, b := range banks {
		out = append(out, gateway.Bank{Code: b.Code, Name: b.Name})
	}
	return out, nil
}

// TestConnection checks the credentials with a bank-directory read.
func (g *Gateway) TestConnection(ctx context.Context) error {
	_, err := g.api.ListBanks(ctx)
	return err
}

// Info implements gateway.Gateway.
func (g *Gateway) Info() gateway.Info {
	return gateway.Info{
		Code:        Code,
		DisplayName: "PSE",
		Environment: g.environment,
		Methods:     []enums.PaymentMethodType{enums.PaymentMethodTypePSE},
	}
}

func resultFromTransaction(tx *pkgpse.Transaction) *gateway.Result {
	result := &gateway.Result{
		TransactionID: tx.ID,
		State:         MapStatus(tx.Status),
		RedirectURL:   tx.RedirectURL,
		Raw:           rawJSON(tx),
	}
	if result.State == enums.PaymentStateRejected || result.State == enums.PaymentStateFailed {
		result.FailureReason = tx.Status
	}
	return result
}

// MapStatus normalizes the aggregator status vocabulary. The webhook
// reconciler shares this table so both paths agree on the mapping.
func MapStatus(status string) enums.PaymentState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved", "ok":
		return enums.PaymentStateApproved
	case "pending", "created":
		return enums.PaymentStatePending
	case "processing", "in_progress":
		return enums.PaymentStateProcessing
	case "rejected", "declined", "not_authorized":
		return enums.PaymentStateRejected
	case "failed", "error", "expired":
		return enums.PaymentStateFailed
	case "cancelled", "canceled":
		return enums.PaymentStateCancelled
	default:
		return enums.PaymentStatePending
	}
}

func rawJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

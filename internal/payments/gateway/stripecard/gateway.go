package stripecard

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/balance"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/refund"

	"github.com/dfrestrepo/mercaflow-backend/internal/payments/gateway"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	pkgstripe "github.com/dfrestrepo/mercaflow-backend/pkg/stripe"
)

// Code is the routing-table identifier for this provider.
const Code = "stripe"

// StripeAPI exposes the subset of Stripe operations the card gateway uses.
type StripeAPI interface {
	CreateIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CreateRefund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error)
	GetBalance(ctx context.Context) (*stripe.Balance, error)
}

type apiWrapper struct{}

func (apiWrapper) CreateIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.New(params)
}

func (apiWrapper) GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

func (apiWrapper) CreateRefund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error) {
	if params != nil {
		params.Context = ctx
	}
	return refund.New(params)
}

func (apiWrapper) GetBalance(ctx context.Context) (*stripe.Balance, error) {
	params := &stripe.BalanceParams{}
	params.Context = ctx
	return balance.Get(params)
}

// Gateway charges tokenized cards through Stripe payment intents.
type Gateway struct {
	api         StripeAPI
	environment string
	logg        *logger.Logger
}

// New builds the Stripe card gateway over an initialized Stripe client.
func New(client *pkgstripe.Client, logg *logger.Logger) (*Gateway, error) {
	if client == nil || client.API() == nil {
		return nil, errors.New("stripe client is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Gateway{
		api:         apiWrapper{},
		environment: client.Environment(),
		logg:        logg,
	}, nil
}

// NewWithAPI wires an explicit API implementation.
func NewWithAPI(api StripeAPI, environment string, logg *logger.Logger) (*Gateway, error) {
	if api == nil {
		return nil, errors.New("stripe api is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Gateway{api: api, environment: environment, logg: logg}, nil
}

// Code implements gateway.Gateway.
func (g *Gateway) Code() string { return Code }

// ProcessCardPayment creates and confirms a payment intent against the
// shopper's card token.
func (g *Gateway) ProcessCardPayment(ctx context.Context, req gateway.CardPaymentRequest) (*gateway.Result, error) {
	if strings.TrimSpace(req.CardToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card token is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(int64(req.AmountCents)),
		Currency:      stripe.String(strings.ToLower(req.Currency.String())),
		PaymentMethod: stripe.String(req.CardToken),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("payment_id", req.PaymentID.String())

	intent, err := g.api.CreateIntent(ctx, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return resultFromIntent(intent), nil
}

// ProcessPSEPayment is not a Stripe capability in this deployment.
func (g *Gateway) ProcessPSEPayment(ctx context.Context, req gateway.PSEPaymentRequest) (*gateway.Result, error) {
	return nil, gateway.ErrUnsupported(Code, "pse")
}

// ProcessOfflinePayment is not a Stripe capability.
func (g *Gateway) ProcessOfflinePayment(ctx context.Context, req gateway.OfflinePaymentRequest) (*gateway.Result, error) {
	return nil, gateway.ErrUnsupported(Code, "offline")
}

// VerifyTransaction fetches the intent and re-normalizes its status.
func (g *Gateway) VerifyTransaction(ctx context.Context, transactionID string) (*gateway.Result, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	intent, err := g.api.GetIntent(ctx, transactionID)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return resultFromIntent(intent), nil
}

// RefundTransaction refunds part or all of a captured intent.
func (g *Gateway) RefundTransaction(ctx context.Context, transactionID string, amountCents int) (*gateway.Result, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(transactionID),
	}
	if amountCents > 0 {
		params.Amount = stripe.Int64(int64(amountCents))
	}
	ref, err := g.api.CreateRefund(ctx, params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return &gateway.Result{
		TransactionID: transactionID,
		State:         mapRefundStatus(ref.Status),
		Raw:           rawJSON(ref),
	}, nil
}

// GetBanks is not a Stripe capability.
func (g *Gateway) GetBanks(ctx context.Context) ([]gateway.Bank, error) {
	return nil, gateway.ErrUnsupported(Code, "banks")
}

// TestConnection checks the credentials with a balance read.
func (g *Gateway) TestConnection(ctx context.Context) error {
	if _, err := g.api.GetBalance(ctx); err != nil {
		return mapStripeError(err)
	}
	return nil
}

// Info implements gateway.Gateway.
func (g *Gateway) Info() gateway.Info {
	return gateway.Info{
		Code:        Code,
		DisplayName: "Stripe",
		Environment: g.environment,
		Methods: []enums.PaymentMethodType{
			enums.PaymentMethodTypeCreditCard,
			enums.PaymentMethodTypeDebitCard,
		},
	}
}

func resultFromIntent(intent *stripe.PaymentIntent) *gateway.Result {
	result := &gateway.Result{
		TransactionID: intent.ID,
		State:         MapIntentStatus(intent.Status),
		Raw:           rawJSON(intent),
	}
	if intent.LastPaymentError != nil {
		result.FailureReason = intent.LastPaymentError.Msg
	}
	return result
}

// MapIntentStatus normalizes Stripe intent statuses. The webhook reconciler
// shares this table so synchronous results and callbacks agree.
func MapIntentStatus(status stripe.PaymentIntentStatus) enums.PaymentState {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return enums.PaymentStateApproved
	case stripe.PaymentIntentStatusProcessing:
		return enums.PaymentStateProcessing
	case stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation:
		return enums.PaymentStatePending
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return enums.PaymentStateRejected
	case stripe.PaymentIntentStatusCanceled:
		return enums.PaymentStateCancelled
	default:
		return enums.PaymentStatePending
	}
}

func mapRefundStatus(status stripe.RefundStatus) enums.PaymentState {
	switch status {
	case stripe.RefundStatusSucceeded:
		return enums.PaymentStateRefunded
	case stripe.RefundStatusPending:
		return enums.PaymentStateProcessing
	default:
		return enums.PaymentStateFailed
	}
}

func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeCard:
			return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "card declined").
				WithDetails(map[string]string{"decline_code": string(stripeErr.DeclineCode)})
		case stripe.ErrorTypeAuthentication:
			return pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "stripe credentials rejected")
		case stripe.ErrorTypeInvalidRequest:
			return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "stripe rejected the request")
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "stripe request failed")
}

func rawJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/dfrestrepo/mercaflow-backend/internal/payments/gateway/stripecard"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
)

type paymentReconciler interface {
	Reconcile(ctx context.Context, transactionID string, state enums.PaymentState, failureReason string, raw json.RawMessage) (*models.Payment, bool, error)
}

// Service reconciles Stripe payment callbacks against local payment rows.
// Signature verification happens in the transport layer before events reach
// this service.
type Service struct {
	payments paymentReconciler
	logg     *logger.Logger
}

// NewService wires the Stripe webhook reconciler.
func NewService(payments paymentReconciler, logg *logger.Logger) (*Service, error) {
	if payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{payments: payments, logg: logg}, nil
}

// HandleEvent applies one verified Stripe event. Event types outside the
// payment allow-list are rejected without side effects.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentProcessing,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
		return s.reconcileIntent(ctx, event)
	case stripe.EventTypeChargeRefunded:
		return s.reconcileRefund(ctx, event)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unhandled stripe event type").
			WithDetails(map[string]string{"event_type": string(event.Type)})
	}
}

func (s *Service) reconcileIntent(ctx context.Context, event *stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}
	if intent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}

	state := stripecard.MapIntentStatus(intent.Status)
	failureReason := ""
	if intent.LastPaymentError != nil {
		failureReason = intent.LastPaymentError.Msg
	}

	_, applied, err := s.payments.Reconcile(ctx, intent.ID, state, failureReason, event.Data.Raw)
	if err != nil {
		return err
	}
	logCtx := s.logg.WithGateway(ctx, stripecard.Code)
	if applied {
		s.logg.Info(logCtx, "stripe callback applied")
	} else {
		s.logg.Info(logCtx, "stripe callback was a replay")
	}
	return nil
}

func (s *Service) reconcileRefund(ctx context.Context, event *stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
	}
	if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "charge missing payment intent reference")
	}

	_, _, err := s.payments.Reconcile(ctx, charge.PaymentIntent.ID, enums.PaymentStateRefunded, "", event.Data.Raw)
	return err
}

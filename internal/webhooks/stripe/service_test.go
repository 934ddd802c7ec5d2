package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v84"

	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
)

type stubReconciler struct {
	transactionID string
	state         enums.PaymentState
	failureReason string
	calls         int
	err           error
}

func (s *stubReconciler) Reconcile(ctx context.Context, transactionID string, state enums.PaymentState, failureReason string, raw json.RawMessage) (*models.Payment, bool, error) {
	s.calls++
	s.transactionID = transactionID
	s.state = state
	s.failureReason = failureReason
	return &models.Payment{}, true, s.err
}

func newTestService(t *testing.T, rec *stubReconciler) *Service {
	t.Helper()
	svc, err := NewService(rec, logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}))
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func intentEvent(t *testing.T, eventType stripe.EventType, intent stripe.PaymentIntent) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(intent)
	if err != nil {
		t.Fatalf("marshaling intent: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_1",
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEventSucceededIntent(t *testing.T) {
	t.Parallel()

	rec := &stubReconciler{}
	svc := newTestService(t, rec)

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, stripe.PaymentIntent{
		ID:     "pi_123",
		Status: stripe.PaymentIntentStatusSucceeded,
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}
	if rec.transactionID != "pi_123" {
		t.Fatalf("reconciled %q, want pi_123", rec.transactionID)
	}
	if rec.state != enums.PaymentStateApproved {
		t.Fatalf("state = %q, want approved", rec.state)
	}
}

func TestHandleEventFailedIntentCarriesReason(t *testing.T) {
	t.Parallel()

	rec := &stubReconciler{}
	svc := newTestService(t, rec)

	event := intentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, stripe.PaymentIntent{
		ID:               "pi_123",
		Status:           stripe.PaymentIntentStatusRequiresPaymentMethod,
		LastPaymentError: &stripe.Error{Msg: "card declined"},
	})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}
	if rec.state != enums.PaymentStateRejected {
		t.Fatalf("state = %q, want rejected", rec.state)
	}
	if rec.failureReason != "card declined" {
		t.Fatalf("failure reason = %q", rec.failureReason)
	}
}

func TestHandleEventChargeRefunded(t *testing.T) {
	t.Parallel()

	rec := &stubReconciler{}
	svc := newTestService(t, rec)

	raw, err := json.Marshal(stripe.Charge{
		ID:            "ch_1",
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_123"},
	})
	if err != nil {
		t.Fatalf("marshaling charge: %v", err)
	}
	event := &stripe.Event{
		ID:   "evt_2",
		Type: stripe.EventTypeChargeRefunded,
		Data: &stripe.EventData{Raw: raw},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}
	if rec.transactionID != "pi_123" || rec.state != enums.PaymentStateRefunded {
		t.Fatalf("reconciled %q as %q, want pi_123 refunded", rec.transactionID, rec.state)
	}
}

func TestHandleEventRejectsUnlistedType(t *testing.T) {
	t.Parallel()

	rec := &stubReconciler{}
	svc := newTestService(t, rec)

	event := &stripe.Event{
		ID:   "evt_3",
		Type: stripe.EventTypeCustomerCreated,
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	err := svc.HandleEvent(context.Background(), event)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if rec.calls != 0 {
		t.Fatal("unlisted event types must have no side effects")
	}
}

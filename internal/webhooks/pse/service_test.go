package psewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
)

type stubReconciler struct {
	transactionID string
	state         enums.PaymentState
	reason        string
	calls         int
}

func (s *stubReconciler) Reconcile(ctx context.Context, transactionID string, state enums.PaymentState, failureReason string, raw json.RawMessage) (*models.Payment, bool, error) {
	s.calls++
	s.transactionID = transactionID
	s.state = state
	s.reason = failureReason
	return &models.Payment{}, true, nil
}

func newTestService(t *testing.T, rec *stubReconciler) *Service {
	t.Helper()
	svc, err := NewService(rec, logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}))
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestHandlePayloadApprovedTransaction(t *testing.T) {
	t.Parallel()

	rec := &stubReconciler{}
	svc := newTestService(t, rec)

	body := []byte(`{"transaction_id":"pse_55","status":"approved"}`)
	if err := svc.HandlePayload(context.Background(), body); err != nil {
		t.Fatalf("HandlePayload returned error: %v", err)
	}
	if rec.transactionID != "pse_55" || rec.state != enums.PaymentStateApproved {
		t.Fatalf("reconciled %q as %q", rec.transactionID, rec.state)
	}
}

func TestHandlePayloadRejectedCarriesReason(t *testing.T) {
	t.Parallel()

	rec := &stubReconciler{}
	svc := newTestService(t, rec)

	body := []byte(`{"transaction_id":"pse_55","status":"rejected","reason":"bank declined"}`)
	if err := svc.HandlePayload(context.Background(), body); err != nil {
		t.Fatalf("HandlePayload returned error: %v", err)
	}
	if rec.state != enums.PaymentStateRejected || rec.reason != "bank declined" {
		t.Fatalf("state = %q, reason = %q", rec.state, rec.reason)
	}
}

func TestHandlePayloadRequiresTransactionID(t *testing.T) {
	t.Parallel()

	rec := &stubReconciler{}
	svc := newTestService(t, rec)

	err := svc.HandlePayload(context.Background(), []byte(`{"status":"approved"}`))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if rec.calls != 0 {
		t.Fatal("invalid payloads must have no side effects")
	}
}

func TestHandlePayloadRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	rec := &stubReconciler{}
	svc := newTestService(t, rec)

	err := svc.HandlePayload(context.Background(), []byte(`not json`))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

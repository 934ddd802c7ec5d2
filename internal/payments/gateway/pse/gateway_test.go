package pse

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dfrestrepo/mercaflow-backend/internal/payments/gateway"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	pkgpse "github.com/dfrestrepo/mercaflow-backend/pkg/pse"
)

type stubAggregator struct {
	tx      *pkgpse.Transaction
	banks   []pkgpse.Bank
	lastReq pkgpse.TransactionRequest
	err     error
}

func (s *stubAggregator) CreateTransaction(ctx context.Context, req pkgpse.TransactionRequest) (*pkgpse.Transaction, error) {
	s.lastReq = req
	return s.tx, s.err
}

func (s *stubAggregator) GetTransaction(ctx context.Context, id string) (*pkgpse.Transaction, error) {
	return s.tx, s.err
}

func (s *stubAggregator) ListBanks(ctx context.Context) ([]pkgpse.Bank, error) {
	return s.banks, s.err
}

func newTestGateway(t *testing.T, api AggregatorAPI) *Gateway {
	t.Helper()
	g, err := New(api, "test", logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return g
}

func TestProcessPSEPaymentReturnsRedirect(t *testing.T) {
	t.Parallel()

	api := &stubAggregator{tx: &pkgpse.Transaction{
		ID:          "pse_1",
		Status:      "pending",
		RedirectURL: "https://bank.example/redirect/pse_1",
	}}
	g := newTestGateway(t, api)

	paymentID := uuid.New()
	result, err := g.ProcessPSEPayment(context.Background(), gateway.PSEPaymentRequest{
		PaymentID:   paymentID,
		OrderID:     uuid.New(),
		AmountCents: 80000,
		Currency:    enums.CurrencyCOP,
		BankCode:    "1007",
	})
	if err != nil {
		t.Fatalf("ProcessPSEPayment returned error: %v", err)
	}
	if result.State != enums.PaymentStatePending {
		t.Fatalf("state = %q, want pending", result.State)
	}
	if result.RedirectURL == "" {
		t.Fatal("expected redirect url for the bank flow")
	}
	if api.lastReq.Reference != paymentID.String() {
		t.Fatalf("reference = %q, want the payment id", api.lastReq.Reference)
	}
}

func TestProcessPSEPaymentRequiresBankCode(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, &stubAggregator{})
	_, err := g.ProcessPSEPayment(context.Background(), gateway.PSEPaymentRequest{
		PaymentID:   uuid.New(),
		AmountCents: 80000,
		Currency:    enums.CurrencyCOP,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status string
		want   enums.PaymentState
	}{
		{"approved", enums.PaymentStateApproved},
		{"OK", enums.PaymentStateApproved},
		{"pending", enums.PaymentStatePending},
		{"in_progress", enums.PaymentStateProcessing},
		{"rejected", enums.PaymentStateRejected},
		{"NOT_AUTHORIZED", enums.PaymentStateRejected},
		{"expired", enums.PaymentStateFailed},
		{"cancelled", enums.PaymentStateCancelled},
		{"something_new", enums.PaymentStatePending},
	}
	for _, tc := range cases {
		if got := MapStatus(tc.status); got != tc.want {
			t.Errorf("MapStatus(%q) = %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestGetBanks(t *testing.T) {
	t.Parallel()

	api := &stubAggregator{banks: []pkgpse.Bank{
		{Code: "1007", Name: "Bancolombia"},
		{Code: "1051", Name: "Davivienda"},
	}}
	g := newTestGateway(t, api)

	banks, err := g.GetBanks(context.Background())
	if err != nil {
		t.Fatalf("GetBanks returned error: %v", err)
	}
	if len(banks) != 2 || banks[0].Code != "1007" {
		t.Fatalf("unexpected banks: %+v", banks)
	}
}

func TestRefundUnsupported(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, &stubAggregator{})
	if _, err := g.RefundTransaction(context.Background(), "pse_1", 1000); err == nil {
		t.Fatal("expected refund to be unsupported")
	}
}

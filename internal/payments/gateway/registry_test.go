package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
)

type fakeGateway struct {
	code string
}

func (f *fakeGateway) Code() string { return f.code }

func (f *fakeGateway) ProcessCardPayment(ctx context.Context, req CardPaymentRequest) (*Result, error) {
	return nil, ErrUnsupported(f.code, "card")
}

func (f *fakeGateway) ProcessPSEPayment(ctx context.Context, req PSEPaymentRequest) (*Result, error) {
	return nil, ErrUnsupported(f.code, "pse")
}

func (f *fakeGateway) ProcessOfflinePayment(ctx context.Context, req OfflinePaymentRequest) (*Result, error) {
	return nil, ErrUnsupported(f.code, "offline")
}

func (f *fakeGateway) VerifyTransaction(ctx context.Context, transactionID string) (*Result, error) {
	return nil, ErrUnsupported(f.code, "verify")
}

func (f *fakeGateway) RefundTransaction(ctx context.Context, transactionID string, amountCents int) (*Result, error) {
	return nil, ErrUnsupported(f.code, "refund")
}

func (f *fakeGateway) GetBanks(ctx context.Context) ([]Bank, error) {
	return nil, ErrUnsupported(f.code, "banks")
}

func (f *fakeGateway) TestConnection(ctx context.Context) error { return nil }

func (f *fakeGateway) Info() Info {
	return Info{Code: f.code, Methods: []enums.PaymentMethodType{}}
}

func TestRegistryResolvesAndCaches(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	built := 0
	registry.Register("stripe", func() (Gateway, error) {
		built++
		return &fakeGateway{code: "stripe"}, nil
	})

	first, err := registry.Resolve("stripe")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	second, err := registry.Resolve("stripe")
	if err != nil {
		t.Fatalf("second Resolve returned error: %v", err)
	}
	if first != second {
		t.Fatal("expected cached instance on second resolution")
	}
	if built != 1 {
		t.Fatalf("factory ran %d times, want 1", built)
	}
}

func TestRegistryUnknownCodeIsConfigurationError(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	_, err := registry.Resolve("wompi")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRegistryFactoryFailureIsConfigurationError(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register("stripe", func() (Gateway, error) {
		return nil, errors.New("missing api key")
	})

	_, err := registry.Resolve("stripe")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

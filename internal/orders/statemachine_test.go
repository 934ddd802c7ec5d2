package orders

import (
	"testing"

	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
)

func TestEnsureTransitionRejectsUnlistedJump(t *testing.T) {
	t.Parallel()

	err := EnsureTransition(enums.OrderStatusPending, enums.OrderStatusDelivered)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestEnsureTransitionAllowsRetryReentry(t *testing.T) {
	t.Parallel()

	if err := EnsureTransition(enums.OrderStatusPaymentFailed, enums.OrderStatusPaymentPending); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureTransitionTerminalStates(t *testing.T) {
	t.Parallel()

	if err := EnsureTransition(enums.OrderStatusCancelled, enums.OrderStatusPending); err == nil {
		t.Fatal("expected cancelled to be terminal")
	}
	if err := EnsureTransition(enums.OrderStatusRefunded, enums.OrderStatusProcessing); err == nil {
		t.Fatal("expected refunded to be terminal")
	}
}

func TestEnsureTransitionSameStatusIsIdempotent(t *testing.T) {
	t.Parallel()

	if err := EnsureTransition(enums.OrderStatusPaymentCompleted, enums.OrderStatusPaymentCompleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCanTransitionFullPaymentPath(t *testing.T) {
	t.Parallel()

	path := []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusPaymentPending,
		enums.OrderStatusPaymentProcessing,
		enums.OrderStatusPaymentCompleted,
		enums.OrderStatusProcessing,
		enums.OrderStatusShipping,
		enums.OrderStatusDelivered,
		enums.OrderStatusRefunded,
	}
	for i := 1; i < len(path); i++ {
		if !CanTransition(path[i-1], path[i]) {
			t.Fatalf("expected %s -> %s to be allowed", path[i-1], path[i])
		}
	}
}

package psewebhook

import (
	"context"
	"encoding/json"
	"strings"

	psegw "github.com/dfrestrepo/mercaflow-backend/internal/payments/gateway/pse"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
)

type paymentReconciler interface {
	Reconcile(ctx context.Context, transactionID string, state enums.PaymentState, failureReason string, raw json.RawMessage) (*models.Payment, bool, error)
}

// Notification is the aggregator's callback payload.
type Notification struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
}

// Service reconciles PSE aggregator callbacks against local payment rows.
// The transport layer verifies the HMAC signature before the raw body
// reaches this service.
type Service struct {
	payments paymentReconciler
	logg     *logger.Logger
}

// NewService wires the PSE webhook reconciler.
func NewService(payments paymentReconciler, logg *logger.Logger) (*Service, error) {
	if payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment reconciler required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{payments: payments, logg: logg}, nil
}

// HandlePayload applies one verified aggregator notification.
func (s *Service) HandlePayload(ctx context.Context, body []byte) error {
	var note Notification
	if err := json.Unmarshal(body, &note); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode pse notification")
	}
	if strings.TrimSpace(note.TransactionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id missing")
	}
	if strings.TrimSpace(note.Status) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "status missing")
	}

	state := psegw.MapStatus(note.Status)
	_, applied, err := s.payments.Reconcile(ctx, note.TransactionID, state, note.Reason, body)
	if err != nil {
		return err
	}
	logCtx := s.logg.WithGateway(ctx, psegw.Code)
	if applied {
		s.logg.Info(logCtx, "pse callback applied")
	} else {
		s.logg.Info(logCtx, "pse callback was a replay")
	}
	return nil
}

package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dfrestrepo/mercaflow-backend/internal/orders"
	"github.com/dfrestrepo/mercaflow-backend/internal/payments/gateway"
	"github.com/dfrestrepo/mercaflow-backend/pkg/config"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	"github.com/dfrestrepo/mercaflow-backend/pkg/metrics"
	"github.com/dfrestrepo/mercaflow-backend/pkg/outbox"
	"github.com/dfrestrepo/mercaflow-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type methodSource interface {
	FindMethod(ctx context.Context, id uuid.UUID) (*models.PaymentMethod, error)
}

type gatewayRouter interface {
	Route(ctx context.Context, method enums.PaymentMethodType, currency enums.Currency, amountCents int) (gateway.Gateway, *models.PaymentGatewayConfig, error)
}

// ProcessInput carries the shopper-provided payment data for one attempt.
type ProcessInput struct {
	OrderID     uuid.UUID
	UserID      uuid.UUID
	CardToken   string
	BankCode    string
	Description string
}

// ProcessResult pairs the payment row with the redirect the shopper must
// follow for bank-flow methods.
type ProcessResult struct {
	Payment     *models.Payment
	RedirectURL string
}

// Service orchestrates payment attempts against the routed gateway and keeps
// the order state machine in sync with attempt outcomes.
type Service interface {
	Process(ctx context.Context, input ProcessInput) (*ProcessResult, error)
	GetStatus(ctx context.Context, transactionID string) (*models.Payment, error)
	ListForOrder(ctx context.Context, orderID, userID uuid.UUID) ([]models.Payment, error)
	Reconcile(ctx context.Context, transactionID string, state enums.PaymentState, failureReason string, raw json.RawMessage) (*models.Payment, bool, error)
}

type service struct {
	repo       PaymentRepository
	ordersRepo orders.Repository
	methods    methodSource
	router     gatewayRouter
	outbox     outboxEmitter
	tx         txRunner
	cfg        config.PaymentsConfig
	payMetrics *metrics.PaymentMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewService wires the payment orchestrator.
func NewService(
	repo PaymentRepository,
	ordersRepo orders.Repository,
	methods methodSource,
	router gatewayRouter,
	emitter outboxEmitter,
	tx txRunner,
	cfg config.PaymentsConfig,
	payMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, errors.New("payment repository is required")
	}
	if ordersRepo == nil {
		return nil, errors.New("orders repository is required")
	}
	if methods == nil {
		return nil, errors.New("payment method source is required")
	}
	if router == nil {
		return nil, errors.New("gateway router is required")
	}
	if emitter == nil {
		return nil, errors.New("outbox emitter is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.MaxAttemptsPerOrder <= 0 {
		cfg.MaxAttemptsPerOrder = 3
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 30 * time.Second
	}
	return &service{
		repo:       repo,
		ordersRepo: ordersRepo,
		methods:    methods,
		router:     router,
		outbox:     emitter,
		tx:         tx,
		cfg:        cfg,
		payMetrics: payMetrics,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// Process runs one payment attempt. The attempt row is committed before the
// gateway call so a timeout or crash leaves an auditable pending payment for
// the webhook to resolve. The gateway call itself runs outside any
// transaction.
func (s *service) Process(ctx context.Context, input ProcessInput) (*ProcessResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payment requires an authenticated user")
	}

	order, err := s.ordersRepo.FindByIDAndUser(ctx, input.OrderID, input.UserID)
	if err != nil {
		return nil, err
	}
	method, err := s.methods.FindMethod(ctx, order.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if err := validateMethodInput(method.Type, input); err != nil {
		return nil, err
	}

	instance, gwCfg, err := s.router.Route(ctx, method.Type, order.Currency, order.TotalCents)
	if err != nil {
		return nil, err
	}

	payment, err := s.openAttempt(ctx, order, method, gwCfg.Code, input)
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithGateway(logCtx, gwCfg.Code)

	result, gwErr := s.callGateway(ctx, instance, method.Type, order, payment, input)
	if gwErr != nil {
		if isTimeout(gwErr) {
			s.logg.Warn(s.logg.WithField(logCtx, "error", gwErr.Error()), "gateway call timed out, awaiting webhook")
			return &ProcessResult{Payment: payment}, nil
		}
		s.logg.Error(logCtx, "gateway call failed", gwErr)
		if failErr := s.failAttempt(ctx, payment, order.ID, gwErr); failErr != nil {
			s.logg.Error(logCtx, "recording failed attempt", failErr)
		}
		return nil, gwErr
	}

	updated, err := s.settleAttempt(ctx, payment, result)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(logCtx, "state", updated.State.String()), "payment attempt settled")
	return &ProcessResult{Payment: updated, RedirectURL: result.RedirectURL}, nil
}

// openAttempt commits the pending payment row and moves the order to
// payment_pending under the attempt cap.
func (s *service) openAttempt(ctx context.Context, order *models.Order, method *models.PaymentMethod, gatewayCode string, input ProcessInput) (*models.Payment, error) {
	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		locked, err := ordersRepo.FindByIDForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := orders.EnsureTransition(locked.Status, enums.OrderStatusPaymentPending); err != nil {
			return err
		}

		count, err := repo.CountByOrder(ctx, locked.ID)
		if err != nil {
			return err
		}
		if count >= int64(s.cfg.MaxAttemptsPerOrder) {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment attempt limit reached").
				WithDetails(map[string]any{"max_attempts": s.cfg.MaxAttemptsPerOrder})
		}

		payment = &models.Payment{
			OrderID:       locked.ID,
			GatewayCode:   gatewayCode,
			MethodType:    method.Type,
			State:         enums.PaymentStatePending,
			AmountCents:   locked.TotalCents,
			Currency:      locked.Currency,
			Attempts:      1,
			LastAttemptAt: s.now(),
		}
		if input.Description != "" {
			desc := input.Description
			payment.Description = &desc
		}
		if err := repo.Create(ctx, payment); err != nil {
			return err
		}
		if err := ordersRepo.SetLastPayment(ctx, locked.ID, payment.ID); err != nil {
			return err
		}

		if locked.Status == enums.OrderStatusPaymentPending {
			return nil
		}
		if err := ordersRepo.UpdateStatus(ctx, locked.ID, enums.OrderStatusPaymentPending); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   locked.ID,
			Actor:         &outbox.ActorRef{UserID: &input.UserID},
			Data: payloads.OrderStateChangedEvent{
				OrderID: locked.ID,
				From:    locked.Status,
				To:      enums.OrderStatusPaymentPending,
				Reason:  "payment attempt opened",
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) callGateway(ctx context.Context, instance gateway.Gateway, method enums.PaymentMethodType, order *models.Order, payment *models.Payment, input ProcessInput) (*gateway.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	start := s.now()
	result, err := s.dispatch(callCtx, instance, method, order, payment, input)
	s.payMetrics.ObserveGatewayCall(instance.Code(), method.String(), time.Since(start))
	if err != nil {
		s.payMetrics.IncGatewayFailure(instance.Code(), method.String())
		return nil, err
	}
	return result, nil
}

func (s *service) dispatch(ctx context.Context, instance gateway.Gateway, method enums.PaymentMethodType, order *models.Order, payment *models.Payment, input ProcessInput) (*gateway.Result, error) {
	switch {
	case method.IsCard():
		return instance.ProcessCardPayment(ctx, gateway.CardPaymentRequest{
			PaymentID:   payment.ID,
			OrderID:     order.ID,
			AmountCents: order.TotalCents,
			Currency:    order.Currency,
			CardToken:   input.CardToken,
			Description: input.Description,
		})
	case method == enums.PaymentMethodTypePSE:
		return instance.ProcessPSEPayment(ctx, gateway.PSEPaymentRequest{
			PaymentID:   payment.ID,
			OrderID:     order.ID,
			AmountCents: order.TotalCents,
			Currency:    order.Currency,
			BankCode:    input.BankCode,
			Description: input.Description,
		})
	default:
		return instance.ProcessOfflinePayment(ctx, gateway.OfflinePaymentRequest{
			PaymentID:   payment.ID,
			OrderID:     order.ID,
			AmountCents: order.TotalCents,
			Currency:    order.Currency,
			MethodType:  method,
			Description: input.Description,
		})
	}
}

// settleAttempt applies the synchronous gateway result to the payment and the
// order in one transaction.
func (s *service) settleAttempt(ctx context.Context, payment *models.Payment, result *gateway.Result) (*models.Payment, error) {
	var updated *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		locked, err := repo.FindByIDForUpdate(ctx, payment.ID)
		if err != nil {
			return err
		}
		from := locked.State
		if result.TransactionID != "" {
			txID := result.TransactionID
			locked.TransactionID = &txID
		}
		locked.State = result.State
		locked.GatewayResponse = result.Raw
		if result.FailureReason != "" {
			reason := result.FailureReason
			locked.FailureReason = &reason
		}
		if err := repo.Update(ctx, locked); err != nil {
			return err
		}
		if err := s.applyOrderState(ctx, tx, locked, from, "gateway result"); err != nil {
			return err
		}
		updated = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// failAttempt commits the failed payment and order state after a gateway
// exception. The gateway error itself is returned to the caller separately.
func (s *service) failAttempt(ctx context.Context, payment *models.Payment, orderID uuid.UUID, gwErr error) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		locked, err := repo.FindByIDForUpdate(ctx, payment.ID)
		if err != nil {
			return err
		}
		from := locked.State
		locked.State = enums.PaymentStateFailed
		reason := gwErr.Error()
		locked.FailureReason = &reason
		if err := repo.Update(ctx, locked); err != nil {
			return err
		}
		return s.applyOrderState(ctx, tx, locked, from, "gateway failure")
	})
}

// applyOrderState moves the order to the status implied by the payment state
// and queues the domain events. Invalid order transitions are skipped with a
// warning; the payment row already holds the authoritative attempt state.
func (s *service) applyOrderState(ctx context.Context, tx *gorm.DB, payment *models.Payment, from enums.PaymentState, reason string) error {
	if from == payment.State {
		return nil
	}
	s.payMetrics.IncTransition(from.String(), payment.State.String())

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentStateChanged,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: payloads.PaymentStateChangedEvent{
			PaymentID:     payment.ID,
			OrderID:       payment.OrderID,
			GatewayCode:   payment.GatewayCode,
			MethodType:    payment.MethodType,
			From:          from,
			To:            payment.State,
			TransactionID: payment.TransactionID,
			AmountCents:   payment.AmountCents,
		},
	}); err != nil {
		return err
	}

	target, ok := OrderStatusForPaymentState(payment.State)
	if !ok {
		return nil
	}

	ordersRepo := s.ordersRepo.WithTx(tx)
	order, err := ordersRepo.FindByIDForUpdate(ctx, payment.OrderID)
	if err != nil {
		return err
	}
	if order.Status == target {
		return nil
	}
	if !orders.CanTransition(order.Status, target) {
		s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "skipping invalid order transition from payment state")
		return nil
	}
	if err := ordersRepo.UpdateStatus(ctx, order.ID, target); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStateChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderStateChangedEvent{
			OrderID: order.ID,
			From:    order.Status,
			To:      target,
			Reason:  reason,
		},
	})
}

// GetStatus resolves a gateway transaction reference to the local payment.
func (s *service) GetStatus(ctx context.Context, transactionID string) (*models.Payment, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	return s.repo.FindByTransactionID(ctx, transactionID)
}

// ListForOrder returns the attempt history for an order the user owns.
func (s *service) ListForOrder(ctx context.Context, orderID, userID uuid.UUID) ([]models.Payment, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if _, err := s.ordersRepo.FindByIDAndUser(ctx, orderID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListByOrder(ctx, orderID)
}

// Reconcile applies an asynchronous state reported by a gateway callback.
// A replay carrying the already-applied state is a no-op; a state change on a
// terminal payment is only honored for refunds.
func (s *service) Reconcile(ctx context.Context, transactionID string, state enums.PaymentState, failureReason string, raw json.RawMessage) (*models.Payment, bool, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if !state.IsValid() {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment state")
	}

	var (
		payment *models.Payment
		applied bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		locked, err := repo.FindByTransactionIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		payment = locked
		if locked.State == state {
			return nil
		}
		if locked.State.IsTerminal() && state != enums.PaymentStateRefunded {
			s.logg.Warn(s.logg.WithOrderID(ctx, locked.OrderID.String()), "ignoring callback against terminal payment")
			return nil
		}

		from := locked.State
		locked.State = state
		if len(raw) > 0 {
			locked.GatewayResponse = raw
		}
		if failureReason != "" {
			reason := failureReason
			locked.FailureReason = &reason
		}
		if err := repo.Update(ctx, locked); err != nil {
			return err
		}
		applied = true
		return s.applyOrderState(ctx, tx, locked, from, "gateway callback")
	})
	if err != nil {
		return nil, false, err
	}
	return payment, applied, nil
}

func validateMethodInput(method enums.PaymentMethodType, input ProcessInput) error {
	switch {
	case method.IsCard():
		if strings.TrimSpace(input.CardToken) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "card token is required")
		}
	case method == enums.PaymentMethodTypePSE:
		if strings.TrimSpace(input.BankCode) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "bank code is required")
		}
	}
	return nil
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

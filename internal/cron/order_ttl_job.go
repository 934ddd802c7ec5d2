package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dfrestrepo/mercaflow-backend/internal/orders"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	"github.com/dfrestrepo/mercaflow-backend/pkg/outbox"
	"github.com/dfrestrepo/mercaflow-backend/pkg/outbox/payloads"
)

const (
	defaultOrderTTL     = 48 * time.Hour
	orderSweepBatchSize = 100

	orderTTLCancelReason = "payment window expired"
)

// staleOrderStatuses are the statuses swept by the TTL job. Orders with a
// gateway call in flight are left alone until the webhook settles them.
var staleOrderStatuses = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusPaymentPending,
	enums.OrderStatusPaymentFailed,
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrderTTLJobParams configure the stale order sweeper.
type OrderTTLJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Repo   orders.Repository
	Outbox outboxEmitter
	TTL    time.Duration
}

// NewOrderTTLJob builds the cron job that cancels orders whose payment
// window elapsed without an approved attempt.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultOrderTTL
	}
	return &orderTTLJob{
		logg:   params.Logger,
		db:     params.DB,
		repo:   params.Repo,
		outbox: params.Outbox,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

type orderTTLJob struct {
	logg   *logger.Logger
	db     txRunner
	repo   orders.Repository
	outbox outboxEmitter
	ttl    time.Duration
	now    func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.repo.FindStaleBefore(ctx, staleOrderStatuses, cutoff, orderSweepBatchSize)
	if err != nil {
		return fmt.Errorf("query stale orders: %w", err)
	}
	cancelled := 0
	for _, order := range stale {
		done, err := j.cancelOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if done {
			cancelled++
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"scanned":   len(stale),
		"cancelled": cancelled,
	})
	j.logg.Info(logCtx, "stale order sweep complete")
	return nil
}

// cancelOrder re-reads the order under a row lock so a payment racing the
// sweep wins. A false return means the order moved on and was skipped.
func (j *orderTTLJob) cancelOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	cancelled := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !isStaleCancellable(order.Status) {
			return nil
		}
		from := order.Status
		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled); err != nil {
			return err
		}
		if err := j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderStateChangedEvent{
				OrderID: order.ID,
				From:    from,
				To:      enums.OrderStatusCancelled,
				Reason:  orderTTLCancelReason,
			},
		}); err != nil {
			return err
		}
		if err := j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				UserID:      order.UserID,
				CancelledAt: j.now().UTC(),
				Reason:      orderTTLCancelReason,
			},
		}); err != nil {
			return err
		}
		cancelled = true
		return nil
	})
	return cancelled, err
}

func isStaleCancellable(status enums.OrderStatus) bool {
	for _, candidate := range staleOrderStatuses {
		if status == candidate {
			return true
		}
	}
	return false
}

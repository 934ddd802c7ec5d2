package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dfrestrepo/mercaflow-backend/internal/cart"
	"github.com/dfrestrepo/mercaflow-backend/internal/catalog"
	"github.com/dfrestrepo/mercaflow-backend/internal/pricing"
	"github.com/dfrestrepo/mercaflow-backend/pkg/config"
	dbpkg "github.com/dfrestrepo/mercaflow-backend/pkg/db"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	"github.com/dfrestrepo/mercaflow-backend/pkg/outbox"
	"github.com/dfrestrepo/mercaflow-backend/pkg/outbox/payloads"
	"github.com/dfrestrepo/mercaflow-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// FreezeInput is the validated checkout state handed to the freeze.
type FreezeInput struct {
	CartID            uuid.UUID
	UserID            uuid.UUID
	DeliveryType      enums.DeliveryType
	DeliveryAddressID *uuid.UUID
	DeliveryAddress   *types.AddressSnapshot
	PickupAgencyID    *uuid.UUID
	PaymentMethodID   uuid.UUID
}

// Service owns the order lifecycle: the freeze, reads, and cancellation.
type Service interface {
	Freeze(ctx context.Context, input FreezeInput) (*models.Order, error)
	Get(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	Cancel(ctx context.Context, orderID, userID uuid.UUID, reason string) (*models.Order, error)
}

type service struct {
	repo        Repository
	carts       cart.CartRepository
	catalogRepo catalog.CatalogRepository
	outbox      outboxEmitter
	tx          txRunner
	cfg         config.CheckoutConfig
	currency    enums.Currency
	logg        *logger.Logger
	now         func() time.Time
}

// NewService wires the order service.
func NewService(
	repo Repository,
	carts cart.CartRepository,
	catalogRepo catalog.CatalogRepository,
	emitter outboxEmitter,
	tx txRunner,
	cfg config.CheckoutConfig,
	currency string,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, errors.New("orders repository is required")
	}
	if carts == nil {
		return nil, errors.New("cart repository is required")
	}
	if catalogRepo == nil {
		return nil, errors.New("catalog repository is required")
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
	cur := enums.Currency(currency)
	if !cur.IsValid() {
		cur = enums.CurrencyCOP
	}
	return &service{
		repo:        repo,
		carts:       carts,
		catalogRepo: catalogRepo,
		outbox:      emitter,
		tx:          tx,
		cfg:         cfg,
		currency:    cur,
		logg:        logg,
		now:         time.Now,
	}, nil
}

// Freeze converts the cart into an immutable order in one transaction:
// totals and per-line snapshots from live pricing, stock decremented, cart
// moved to ordered, domain events queued.
func (s *service) Freeze(ctx context.Context, input FreezeInput) (*models.Order, error) {
	if input.CartID == uuid.Nil || input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id and user id are required")
	}
	if !input.DeliveryType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery type")
	}
	if input.PaymentMethodID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts.WithTx(tx)
		catalogRepo := s.catalogRepo.WithTx(tx)
		repo := s.repo.WithTx(tx)

		record, err := cartRepo.FindByIDForUpdate(ctx, input.CartID)
		if err != nil {
			return err
		}
		if record.UserID == nil || *record.UserID != input.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cart does not belong to user")
		}
		if record.Status != enums.CartStatusActive {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart already processed")
		}
		if len(record.Lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no lines")
		}

		now := s.now()
		lines := make([]models.OrderPriceHistory, 0, len(record.Lines))
		subtotal, discount := 0, 0

		for _, line := range record.Lines {
			product, err := catalogRepo.FindProduct(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if !product.Active {
				return pkgerrors.New(pkgerrors.CodeConflict, "product unavailable").
					WithDetails(map[string]string{"product_id": line.ProductID.String()})
			}

			price, err := catalogRepo.CurrentPrice(ctx, line.ProductID)
			if err != nil {
				return err
			}
			promos, err := catalogRepo.ActivePromotions(ctx, line.ProductID)
			if err != nil {
				return err
			}

			quote := pricing.QuoteLine(promos, price.UnitPriceCents, line.Quantity, now)
			frozen := models.OrderPriceHistory{
				ProductID:      line.ProductID,
				PriceHistoryID: price.ID,
				Quantity:       line.Quantity,
				UnitPriceCents: quote.UnitPriceCents,
				SubtotalCents:  quote.SubtotalCents,
				DiscountCents:  quote.DiscountCents,
				FinalCents:     quote.FinalCents,
			}
			if quote.Promotion != nil {
				promoID := quote.Promotion.ID
				frozen.PromotionID = &promoID
			}
			lines = append(lines, frozen)
			subtotal += quote.SubtotalCents
			discount += quote.DiscountCents

			if err := catalogRepo.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		shipping := 0
		if input.DeliveryType == enums.DeliveryTypeShipping {
			shipping = int(s.cfg.ShippingFlatCents)
		}

		order = &models.Order{
			UserID:            input.UserID,
			CartID:            record.ID,
			Status:            enums.OrderStatusPending,
			Currency:          s.currency,
			SubtotalCents:     subtotal,
			DiscountCents:     discount,
			ShippingCents:     shipping,
			TotalCents:        subtotal - discount + shipping,
			DeliveryType:      input.DeliveryType,
			DeliveryAddressID: input.DeliveryAddressID,
			DeliveryAddress:   input.DeliveryAddress,
			PickupAgencyID:    input.PickupAgencyID,
			PaymentMethodID:   input.PaymentMethodID,
		}
		if err := repo.Create(ctx, order); err != nil {
			if dbpkg.IsUniqueViolation(err, "cart_id") {
				return pkgerrors.New(pkgerrors.CodeConflict, "cart already ordered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
		}

		for i := range lines {
			lines[i].OrderID = order.ID
		}
		if err := repo.CreateLines(ctx, lines); err != nil {
			return err
		}
		order.Lines = lines

		if err := cartRepo.UpdateStatus(ctx, record.ID, enums.CartStatusOrdered); err != nil {
			return err
		}

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: &input.UserID},
			Data: payloads.OrderCreatedEvent{
				OrderID:      order.ID,
				CartID:       record.ID,
				UserID:       input.UserID,
				TotalCents:   order.TotalCents,
				Currency:     order.Currency,
				DeliveryType: order.DeliveryType,
			},
		}); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartOrdered,
			AggregateType: enums.AggregateCart,
			AggregateID:   record.ID,
			Actor:         &outbox.ActorRef{UserID: &input.UserID},
			Data: payloads.CartOrderedEvent{
				CartID:  record.ID,
				OrderID: order.ID,
				UserID:  input.UserID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "order frozen")
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.repo.FindByIDAndUser(ctx, orderID, userID)
}

func (s *service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// Cancel drives the order to cancelled through the transition table.
func (s *service) Cancel(ctx context.Context, orderID, userID uuid.UUID, reason string) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status == enums.OrderStatusCancelled {
			cancelled = order
			return nil
		}
		if err := EnsureTransition(order.Status, enums.OrderStatusCancelled); err != nil {
			return err
		}

		from := order.Status
		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled); err != nil {
			return err
		}
		order.Status = enums.OrderStatusCancelled
		cancelled = order

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: &userID},
			Data: payloads.OrderStateChangedEvent{
				OrderID: order.ID,
				From:    from,
				To:      enums.OrderStatusCancelled,
				Reason:  reason,
			},
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: &userID},
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				UserID:      userID,
				CancelledAt: s.now(),
				Reason:      reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

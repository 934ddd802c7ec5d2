package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dfrestrepo/mercaflow-backend/internal/cart"
	"github.com/dfrestrepo/mercaflow-backend/internal/orders"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
	"github.com/dfrestrepo/mercaflow-backend/pkg/types"
)

type sessionStore interface {
	Create(ctx context.Context, cartID, userID uuid.UUID) (*Session, error)
	Load(ctx context.Context, sessionID string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Destroy(ctx context.Context, sessionID string) error
}

type cartSource interface {
	ResolveActive(ctx context.Context, owner cart.Ownership) (*models.Cart, error)
	Summarize(ctx context.Context, record *models.Cart) (*cart.View, error)
}

type cartLoader interface {
	FindByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
}

type geographySource interface {
	FindAddress(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error)
	FindActiveAgency(ctx context.Context, agencyID uuid.UUID) (*models.Agency, error)
}

type orderFreezer interface {
	Freeze(ctx context.Context, input orders.FreezeInput) (*models.Order, error)
}

// DeliveryInput carries the delivery step of the checkout wizard.
type DeliveryInput struct {
	Type      enums.DeliveryType
	AddressID *uuid.UUID
	AgencyID  *uuid.UUID
}

// Service walks a user through checkout: session, delivery, payment method,
// and the handoff into the order freeze.
type Service interface {
	Begin(ctx context.Context, userID uuid.UUID) (*Session, error)
	Get(ctx context.Context, sessionID string, userID uuid.UUID) (*Session, error)
	SetDelivery(ctx context.Context, sessionID string, userID uuid.UUID, input DeliveryInput) (*Session, error)
	SetPaymentMethod(ctx context.Context, sessionID string, userID, methodID uuid.UUID) (*Session, error)
	CreateOrder(ctx context.Context, sessionID string, userID uuid.UUID) (*models.Order, error)
}

type service struct {
	sessions sessionStore
	carts    cartSource
	cartRepo cartLoader
	geo      geographySource
	methods  methodLoader
	freezer  orderFreezer
	logg     *logger.Logger
}

// NewService wires the checkout service.
func NewService(
	sessions sessionStore,
	carts cartSource,
	cartRepo cartLoader,
	geo geographySource,
	methods methodLoader,
	freezer orderFreezer,
	logg *logger.Logger,
) (Service, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if carts == nil {
		return nil, errors.New("cart source is required")
	}
	if cartRepo == nil {
		return nil, errors.New("cart loader is required")
	}
	if geo == nil {
		return nil, errors.New("geography source is required")
	}
	if methods == nil {
		return nil, errors.New("method loader is required")
	}
	if freezer == nil {
		return nil, errors.New("order freezer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &service{
		sessions: sessions,
		carts:    carts,
		cartRepo: cartRepo,
		geo:      geo,
		methods:  methods,
		freezer:  freezer,
		logg:     logg,
	}, nil
}

// Begin opens a checkout session for the user's active cart. Guest checkout
// stops here: a session requires an authenticated user.
func (s *service) Begin(ctx context.Context, userID uuid.UUID) (*Session, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "checkout requires an authenticated user")
	}

	record, err := s.carts.ResolveActive(ctx, cart.Ownership{UserID: &userID})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
	}
	if len(record.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no lines")
	}

	return s.sessions.Create(ctx, record.ID, userID)
}

func (s *service) Get(ctx context.Context, sessionID string, userID uuid.UUID) (*Session, error) {
	return s.loadOwned(ctx, sessionID, userID)
}

// SetDelivery validates and stores the delivery step. Validation fails
// closed: shipping requires an address the user owns, pickup an active
// agency, never both.
func (s *service) SetDelivery(ctx context.Context, sessionID string, userID uuid.UUID, input DeliveryInput) (*Session, error) {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery type")
	}

	switch input.Type {
	case enums.DeliveryTypeShipping:
		if input.AddressID == nil || input.AgencyID != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping requires an address and no agency")
		}
		address, err := s.geo.FindAddress(ctx, *input.AddressID, userID)
		if err != nil {
			return nil, err
		}
		session.DeliveryAddressID = input.AddressID
		session.DeliveryAddress = snapshotAddress(address)
		session.PickupAgencyID = nil
	case enums.DeliveryTypePickup:
		if input.AgencyID == nil || input.AddressID != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup requires an agency and no address")
		}
		if _, err := s.geo.FindActiveAgency(ctx, *input.AgencyID); err != nil {
			return nil, err
		}
		session.PickupAgencyID = input.AgencyID
		session.DeliveryAddressID = nil
		session.DeliveryAddress = nil
	}

	deliveryType := input.Type
	session.DeliveryType = &deliveryType
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SetPaymentMethod validates the chosen method against the live cart total.
// Bounds are re-checked on every call because the cart can still change.
func (s *service) SetPaymentMethod(ctx context.Context, sessionID string, userID, methodID uuid.UUID) (*Session, error) {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if methodID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method id is required")
	}

	method, err := s.methods.FindActiveMethod(ctx, methodID)
	if err != nil {
		return nil, err
	}
	if err := s.checkMethodBounds(ctx, session, method); err != nil {
		return nil, err
	}

	session.PaymentMethodID = &method.ID
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CreateOrder re-validates the completed session and freezes the cart.
func (s *service) CreateOrder(ctx context.Context, sessionID string, userID uuid.UUID) (*models.Order, error) {
	session, err := s.loadOwned(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if !session.Complete() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session is incomplete")
	}

	method, err := s.methods.FindActiveMethod(ctx, *session.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if err := s.checkMethodBounds(ctx, session, method); err != nil {
		return nil, err
	}

	order, err := s.freezer.Freeze(ctx, orders.FreezeInput{
		CartID:            session.CartID,
		UserID:            session.UserID,
		DeliveryType:      *session.DeliveryType,
		DeliveryAddressID: session.DeliveryAddressID,
		DeliveryAddress:   session.DeliveryAddress,
		PickupAgencyID:    session.PickupAgencyID,
		PaymentMethodID:   *session.PaymentMethodID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		// The order is committed; a stale session only wastes cache space
		// until its TTL fires.
		s.logg.Warn(ctx, "destroying checkout session failed: "+err.Error())
	}
	return order, nil
}

func (s *service) loadOwned(ctx context.Context, sessionID string, userID uuid.UUID) (*Session, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id is required")
	}
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session expired or missing")
	}
	return session, nil
}

func (s *service) checkMethodBounds(ctx context.Context, session *Session, method *models.PaymentMethod) error {
	record, err := s.cartRepo.FindByID(ctx, session.CartID)
	if err != nil {
		return err
	}
	view, err := s.carts.Summarize(ctx, record)
	if err != nil {
		return err
	}

	if method.MinAmountCents != nil && view.TotalCents < *method.MinAmountCents {
		return pkgerrors.New(pkgerrors.CodeValidation, "order total below payment method minimum").
			WithDetails(map[string]int{
				"total_cents": view.TotalCents,
				"min_cents":   *method.MinAmountCents,
			})
	}
	if method.MaxAmountCents != nil && view.TotalCents > *method.MaxAmountCents {
		return pkgerrors.New(pkgerrors.CodeValidation, "order total above payment method maximum").
			WithDetails(map[string]int{
				"total_cents": view.TotalCents,
				"max_cents":   *method.MaxAmountCents,
			})
	}
	return nil
}

func snapshotAddress(address *models.Address) *types.AddressSnapshot {
	if address == nil {
		return nil
	}
	return &types.AddressSnapshot{
		Line1:   address.Line1,
		Line2:   address.Line2,
		City:    address.City,
		Region:  address.Region,
		Country: address.Country,
	}
}

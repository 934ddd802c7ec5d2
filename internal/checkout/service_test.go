package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dfrestrepo/mercaflow-backend/internal/cart"
	"github.com/dfrestrepo/mercaflow-backend/internal/orders"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
)

func TestBeginRequiresActiveCartWithLines(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	deps := newDeps()
	svc := newCheckoutService(t, deps)

	_, err := svc.Begin(context.Background(), userID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	deps.carts.cart = emptyCart(userID)
	_, err = svc.Begin(context.Background(), userID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty cart, got %v", err)
	}
}

func TestBeginCreatesSession(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	deps := newDeps()
	deps.carts.cart = cartWithLine(userID)
	svc := newCheckoutService(t, deps)

	session, err := svc.Begin(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.CartID != deps.carts.cart.ID || session.UserID != userID {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestSetDeliveryShippingRequiresOwnedAddress(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	deps := newDeps()
	deps.carts.cart = cartWithLine(userID)
	svc := newCheckoutService(t, deps)

	session, err := svc.Begin(context.Background(), userID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	addressID := uuid.New()
	_, err = svc.SetDelivery(context.Background(), session.ID, userID, DeliveryInput{
		Type:      enums.DeliveryTypeShipping,
		AddressID: &addressID,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown address, got %v", err)
	}

	deps.geo.address = &models.Address{ID: addressID, UserID: userID, Line1: "Cra 7 # 12-34", City: "Bogota", Region: "Cundinamarca", Country: "CO"}
	updated, err := svc.SetDelivery(context.Background(), session.ID, userID, DeliveryInput{
		Type:      enums.DeliveryTypeShipping,
		AddressID: &addressID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.DeliveryAddress == nil || updated.DeliveryAddress.Line1 != "Cra 7 # 12-34" {
		t.Fatal("expected address snapshot captured")
	}
	if updated.PickupAgencyID != nil {
		t.Fatal("expected agency cleared")
	}
}

func TestSetDeliveryRejectsAmbiguousInput(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	deps := newDeps()
	deps.carts.cart = cartWithLine(userID)
	svc := newCheckoutService(t, deps)

	session, err := svc.Begin(context.Background(), userID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	addressID, agencyID := uuid.New(), uuid.New()
	_, err = svc.SetDelivery(context.Background(), session.ID, userID, DeliveryInput{
		Type:      enums.DeliveryTypeShipping,
		AddressID: &addressID,
		AgencyID:  &agencyID,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.SetDelivery(context.Background(), session.ID, userID, DeliveryInput{
		Type: enums.DeliveryTypePickup,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for pickup without agency, got %v", err)
	}
}

func TestSetPaymentMethodChecksBounds(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	deps := newDeps()
	deps.carts.cart = cartWithLine(userID)
	deps.carts.total = 15000
	svc := newCheckoutService(t, deps)

	session, err := svc.Begin(context.Background(), userID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	minCents := 20000
	deps.methods.method = &models.PaymentMethod{
		ID:             uuid.New(),
		Name:           "PSE",
		Type:           enums.PaymentMethodTypePSE,
		Active:         true,
		MinAmountCents: &minCents,
	}

	_, err = svc.SetPaymentMethod(context.Background(), session.ID, userID, deps.methods.method.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error below minimum, got %v", err)
	}

	deps.carts.total = 25000
	updated, err := svc.SetPaymentMethod(context.Background(), session.ID, userID, deps.methods.method.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.PaymentMethodID == nil || *updated.PaymentMethodID != deps.methods.method.ID {
		t.Fatal("expected payment method stored")
	}
}

func TestCreateOrderRequiresCompleteSession(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	deps := newDeps()
	deps.carts.cart = cartWithLine(userID)
	svc := newCheckoutService(t, deps)

	session, err := svc.Begin(context.Background(), userID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	_, err = svc.CreateOrder(context.Background(), session.ID, userID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateOrderFreezesAndDestroysSession(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	deps := newDeps()
	deps.carts.cart = cartWithLine(userID)
	deps.carts.total = 10000
	deps.methods.method = &models.PaymentMethod{ID: uuid.New(), Name: "Cards", Type: enums.PaymentMethodTypeCreditCard, Active: true}
	agencyID := uuid.New()
	deps.geo.agency = &models.Agency{ID: agencyID, Name: "Centro", Active: true}
	svc := newCheckoutService(t, deps)

	session, err := svc.Begin(context.Background(), userID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := svc.SetDelivery(context.Background(), session.ID, userID, DeliveryInput{
		Type:     enums.DeliveryTypePickup,
		AgencyID: &agencyID,
	}); err != nil {
		t.Fatalf("set delivery: %v", err)
	}
	if _, err := svc.SetPaymentMethod(context.Background(), session.ID, userID, deps.methods.method.ID); err != nil {
		t.Fatalf("set payment method: %v", err)
	}

	order, err := svc.CreateOrder(context.Background(), session.ID, userID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order == nil || deps.freezer.input == nil {
		t.Fatal("expected freeze invoked")
	}
	if deps.freezer.input.PickupAgencyID == nil || *deps.freezer.input.PickupAgencyID != agencyID {
		t.Fatal("expected agency passed to freeze")
	}
	if _, ok := deps.sessions.store[session.ID]; ok {
		t.Fatal("expected session destroyed after freeze")
	}
}

func TestSessionOwnershipEnforced(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	deps := newDeps()
	deps.carts.cart = cartWithLine(userID)
	svc := newCheckoutService(t, deps)

	session, err := svc.Begin(context.Background(), userID)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	_, err = svc.Get(context.Background(), session.ID, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}
}

type checkoutDeps struct {
	sessions *stubSessions
	carts    *stubCartSource
	geo      *stubGeo
	methods  *stubMethods
	freezer  *stubFreezer
}

func newDeps() *checkoutDeps {
	return &checkoutDeps{
		sessions: &stubSessions{store: map[string]*Session{}},
		carts:    &stubCartSource{},
		geo:      &stubGeo{},
		methods:  &stubMethods{},
		freezer:  &stubFreezer{},
	}
}

func newCheckoutService(t *testing.T, deps *checkoutDeps) Service {
	t.Helper()
	svc, err := NewService(deps.sessions, deps.carts, deps.carts, deps.geo, deps.methods, deps.freezer, checkoutTestLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func checkoutTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func emptyCart(userID uuid.UUID) *models.Cart {
	return &models.Cart{ID: uuid.New(), UserID: &userID, Status: enums.CartStatusActive, ExpiresAt: time.Now().Add(time.Hour)}
}

func cartWithLine(userID uuid.UUID) *models.Cart {
	record := emptyCart(userID)
	record.Lines = []models.CartLine{{ID: uuid.New(), CartID: record.ID, ProductID: uuid.New(), Quantity: 1}}
	return record
}

type stubSessions struct {
	store map[string]*Session
}

func (s *stubSessions) Create(ctx context.Context, cartID, userID uuid.UUID) (*Session, error) {
	session := &Session{ID: uuid.NewString(), CartID: cartID, UserID: userID, CreatedAt: time.Now()}
	s.store[session.ID] = session
	return session, nil
}

func (s *stubSessions) Load(ctx context.Context, sessionID string) (*Session, error) {
	if session, ok := s.store[sessionID]; ok {
		copied := *session
		return &copied, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session expired or missing")
}

func (s *stubSessions) Save(ctx context.Context, session *Session) error {
	s.store[session.ID] = session
	return nil
}

func (s *stubSessions) Destroy(ctx context.Context, sessionID string) error {
	delete(s.store, sessionID)
	return nil
}

type stubCartSource struct {
	cart  *models.Cart
	total int
}

func (s *stubCartSource) ResolveActive(ctx context.Context, owner cart.Ownership) (*models.Cart, error) {
	return s.cart, nil
}

func (s *stubCartSource) Summarize(ctx context.Context, record *models.Cart) (*cart.View, error) {
	return &cart.View{ID: record.ID, Status: record.Status, TotalCents: s.total}, nil
}

func (s *stubCartSource) FindByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	if s.cart != nil && s.cart.ID == cartID {
		return s.cart, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
}

type stubGeo struct {
	address *models.Address
	agency  *models.Agency
}

func (s *stubGeo) FindAddress(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error) {
	if s.address != nil && s.address.ID == addressID && s.address.UserID == userID {
		return s.address, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
}

func (s *stubGeo) FindActiveAgency(ctx context.Context, agencyID uuid.UUID) (*models.Agency, error) {
	if s.agency != nil && s.agency.ID == agencyID {
		return s.agency, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agency not found")
}

type stubMethods struct {
	method *models.PaymentMethod
}

func (s *stubMethods) FindActiveMethod(ctx context.Context, methodID uuid.UUID) (*models.PaymentMethod, error) {
	if s.method != nil && s.method.ID == methodID {
		return s.method, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment method not found")
}

func (s *stubMethods) ListActiveMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	if s.method == nil {
		return nil, nil
	}
	return []models.PaymentMethod{*s.method}, nil
}

type stubFreezer struct {
	input *orders.FreezeInput
}

func (s *stubFreezer) Freeze(ctx context.Context, input orders.FreezeInput) (*models.Order, error) {
	s.input = &input
	return &models.Order{ID: uuid.New(), UserID: input.UserID, CartID: input.CartID, Status: enums.OrderStatusPending}, nil
}

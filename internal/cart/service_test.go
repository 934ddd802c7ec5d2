package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/dfrestrepo/mercaflow-backend/internal/catalog"
	"github.com/dfrestrepo/mercaflow-backend/pkg/config"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
)

func TestGetOrCreateActiveCreatesForUser(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	repo := &stubCartRepo{}
	svc := newTestService(t, repo, &stubProducts{})

	view, err := svc.GetOrCreateActive(context.Background(), Ownership{UserID: &userID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one cart created, got %d", len(repo.created))
	}
	if repo.created[0].UserID == nil || *repo.created[0].UserID != userID {
		t.Fatal("expected cart owned by user")
	}
	if view.Status != enums.CartStatusActive {
		t.Fatalf("expected active cart, got %s", view.Status)
	}
}

func TestGetOrCreateActiveAbandonsExpired(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	expired := &models.Cart{
		ID:        uuid.New(),
		UserID:    &userID,
		Status:    enums.CartStatusActive,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	repo := &stubCartRepo{userCart: expired, statuses: map[uuid.UUID]enums.CartStatus{}}
	svc := newTestService(t, repo, &stubProducts{})

	view, err := svc.GetOrCreateActive(context.Background(), Ownership{UserID: &userID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.statuses[expired.ID] != enums.CartStatusAbandoned {
		t.Fatal("expected expired cart abandoned")
	}
	if len(repo.created) != 1 {
		t.Fatal("expected a fresh cart created")
	}
	if view.ID == expired.ID {
		t.Fatal("expected the view to come from the fresh cart")
	}
}

func TestGetOrCreateActiveMintsGuestSession(t *testing.T) {
	t.Parallel()

	repo := &stubCartRepo{}
	svc := newTestService(t, repo, &stubProducts{})

	view, err := svc.GetOrCreateActive(context.Background(), Ownership{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one cart created, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.UserID != nil {
		t.Fatal("minted guest cart must not carry a user")
	}
	if created.SessionID == nil || *created.SessionID == "" {
		t.Fatal("expected a fresh session id on the created cart")
	}
	if view.SessionID == nil || *view.SessionID != *created.SessionID {
		t.Fatal("expected the view to hand the minted session id back")
	}
}

func TestResolveActiveRequiresOwner(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubCartRepo{}, &stubProducts{})

	_, err := svc.ResolveActive(context.Background(), Ownership{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddLineRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	svc := newTestService(t, &stubCartRepo{}, &stubProducts{})

	_, err := svc.AddLine(context.Background(), Ownership{UserID: &userID}, uuid.New(), 0)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddLineInsufficientStock(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	products := &stubProducts{priced: map[uuid.UUID]*catalog.PricedProduct{
		productID: pricedProduct(productID, 2, 4500),
	}}
	repo := &stubCartRepo{userCart: activeUserCart(userID)}
	svc := newTestService(t, repo, products)

	_, err := svc.AddLine(context.Background(), Ownership{UserID: &userID}, productID, 3)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestAddLineCreatesLineAndTouchesCart(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	cart := activeUserCart(userID)
	products := &stubProducts{priced: map[uuid.UUID]*catalog.PricedProduct{
		productID: pricedProduct(productID, 10, 4500),
	}}
	repo := &stubCartRepo{userCart: cart}
	svc := newTestService(t, repo, products)

	view, err := svc.AddLine(context.Background(), Ownership{UserID: &userID}, productID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.createdLines) != 1 || repo.createdLines[0].Quantity != 2 {
		t.Fatalf("expected one line of quantity 2, got %+v", repo.createdLines)
	}
	if !repo.touched {
		t.Fatal("expected cart expiry pushed forward")
	}
	if view.TotalCents != 9000 {
		t.Fatalf("expected total 9000, got %d", view.TotalCents)
	}
}

func TestAddLineMergesExistingLine(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	cart := activeUserCart(userID)
	products := &stubProducts{priced: map[uuid.UUID]*catalog.PricedProduct{
		productID: pricedProduct(productID, 10, 4500),
	}}
	repo := &stubCartRepo{
		userCart: cart,
		line:     &models.CartLine{ID: uuid.New(), CartID: cart.ID, ProductID: productID, Quantity: 3},
	}
	svc := newTestService(t, repo, products)

	if _, err := svc.AddLine(context.Background(), Ownership{UserID: &userID}, productID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.setQuantity != 5 {
		t.Fatalf("expected quantity set to 5, got %d", repo.setQuantity)
	}
	if len(repo.createdLines) != 0 {
		t.Fatal("expected no new line")
	}
}

func TestAddLineUniqueRaceFallsBackToIncrement(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	cart := activeUserCart(userID)
	products := &stubProducts{priced: map[uuid.UUID]*catalog.PricedProduct{
		productID: pricedProduct(productID, 10, 4500),
	}}
	repo := &stubCartRepo{
		userCart:  cart,
		createErr: errors.New(`duplicate key value violates unique constraint "ux_cart_lines_cart_product"`),
	}
	svc := newTestService(t, repo, products)

	if _, err := svc.AddLine(context.Background(), Ownership{UserID: &userID}, productID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.incremented != 2 {
		t.Fatalf("expected increment of 2, got %d", repo.incremented)
	}
}

func TestAddLineUniqueRaceOversellRejected(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	cart := activeUserCart(userID)
	products := &stubProducts{priced: map[uuid.UUID]*catalog.PricedProduct{
		productID: pricedProduct(productID, 4, 4500),
	}}
	repo := &stubCartRepo{
		userCart:      cart,
		createErr:     errors.New(`duplicate key value violates unique constraint "ux_cart_lines_cart_product"`),
		raceWinnerQty: 3,
	}
	svc := newTestService(t, repo, products)

	_, err := svc.AddLine(context.Background(), Ownership{UserID: &userID}, productID, 2)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict when merged quantity exceeds stock, got %v", err)
	}
}

func TestAddLineRejectsInactiveProduct(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	priced := pricedProduct(productID, 10, 4500)
	priced.Product.Active = false
	products := &stubProducts{priced: map[uuid.UUID]*catalog.PricedProduct{productID: priced}}
	svc := newTestService(t, &stubCartRepo{}, products)

	_, err := svc.AddLine(context.Background(), Ownership{UserID: &userID}, productID, 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestUpdateLineQuantityRemovesLastLineAndAbandons(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	productID := uuid.New()
	cart := activeUserCart(userID)
	repo := &stubCartRepo{
		userCart:  cart,
		line:      &models.CartLine{ID: uuid.New(), CartID: cart.ID, ProductID: productID, Quantity: 1},
		lineCount: 0,
		statuses:  map[uuid.UUID]enums.CartStatus{},
	}
	svc := newTestService(t, repo, &stubProducts{})

	if _, err := svc.UpdateLineQuantity(context.Background(), Ownership{UserID: &userID}, productID, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.deletedLine {
		t.Fatal("expected line deleted")
	}
	if repo.statuses[cart.ID] != enums.CartStatusAbandoned {
		t.Fatal("expected empty cart abandoned")
	}
	if repo.touched {
		t.Fatal("abandoned cart should not be touched")
	}
}

func TestUpdateLineQuantityMissingLine(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	repo := &stubCartRepo{userCart: activeUserCart(userID)}
	svc := newTestService(t, repo, &stubProducts{})

	_, err := svc.UpdateLineQuantity(context.Background(), Ownership{UserID: &userID}, uuid.New(), 2)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestMergeGuestIntoUserDemotesExistingCart(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	sessionID := "guest-session"
	guestCart := &models.Cart{
		ID:        uuid.New(),
		SessionID: &sessionID,
		Status:    enums.CartStatusActive,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	existing := activeUserCart(userID)
	repo := &stubCartRepo{
		sessionCart: guestCart,
		userCart:    existing,
		statuses:    map[uuid.UUID]enums.CartStatus{},
	}
	svc := newTestService(t, repo, &stubProducts{})

	view, err := svc.MergeGuestIntoUser(context.Background(), sessionID, userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.statuses[existing.ID] != enums.CartStatusAbandoned {
		t.Fatal("expected prior user cart abandoned")
	}
	if !repo.reparented {
		t.Fatal("expected guest cart reparented")
	}
	if view.ID != guestCart.ID {
		t.Fatal("expected merged view to be the guest cart")
	}
}

func TestMergeGuestIntoUserNoGuestCart(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	repo := &stubCartRepo{}
	svc := newTestService(t, repo, &stubProducts{})

	view, err := svc.MergeGuestIntoUser(context.Background(), "empty-session", userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatal("expected a user cart created instead")
	}
	if view.Status != enums.CartStatusActive {
		t.Fatalf("expected active cart, got %s", view.Status)
	}
}

func TestSummarizeMarksMissingProductUnavailable(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	cart := &models.Cart{
		ID:        uuid.New(),
		Status:    enums.CartStatusActive,
		ExpiresAt: time.Now().Add(time.Hour),
		Lines: []models.CartLine{
			{ID: uuid.New(), ProductID: productID, Quantity: 2},
		},
	}
	products := &stubProducts{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	svc := newTestService(t, &stubCartRepo{}, products)

	view, err := svc.Summarize(context.Background(), cart)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].Available {
		t.Fatalf("expected single unavailable line, got %+v", view.Lines)
	}
	if view.TotalCents != 0 {
		t.Fatalf("expected zero total, got %d", view.TotalCents)
	}
}

func newTestService(t *testing.T, repo CartRepository, products productSource) Service {
	t.Helper()
	svc, err := NewService(repo, products, stubTxRunner{}, config.CartConfig{TTL: time.Hour}, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func activeUserCart(userID uuid.UUID) *models.Cart {
	return &models.Cart{
		ID:        uuid.New(),
		UserID:    &userID,
		Status:    enums.CartStatusActive,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func pricedProduct(productID uuid.UUID, stock, unitPriceCents int) *catalog.PricedProduct {
	return &catalog.PricedProduct{
		Product:        models.Product{ID: productID, Name: "Producto", Active: true, Stock: stock},
		PriceHistoryID: uuid.New(),
		UnitPriceCents: unitPriceCents,
	}
}

type stubCartRepo struct {
	userCart      *models.Cart
	sessionCart   *models.Cart
	line          *models.CartLine
	lineCount     int64
	createErr     error
	raceWinnerQty int

	created      []*models.Cart
	createdLines []*models.CartLine
	statuses     map[uuid.UUID]enums.CartStatus
	setQuantity  int
	incremented  int
	touched      bool
	reparented   bool
	deletedLine  bool
}

func (s *stubCartRepo) WithTx(tx *gorm.DB) CartRepository { return s }

func (s *stubCartRepo) FindByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	for _, cart := range s.created {
		if cart.ID == cartID {
			return cart, nil
		}
	}
	if s.userCart != nil && s.userCart.ID == cartID {
		return s.userCart, nil
	}
	if s.sessionCart != nil && s.sessionCart.ID == cartID {
		return s.sessionCart, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
}

func (s *stubCartRepo) FindByIDForUpdate(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	return s.FindByID(ctx, cartID)
}

func (s *stubCartRepo) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if s.userCart != nil && s.statuses[s.userCart.ID] == "" {
		return s.userCart, nil
	}
	return nil, nil
}

func (s *stubCartRepo) FindActiveBySession(ctx context.Context, sessionID string) (*models.Cart, error) {
	if s.sessionCart != nil {
		return s.sessionCart, nil
	}
	return nil, nil
}

func (s *stubCartRepo) Create(ctx context.Context, cart *models.Cart) error {
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	s.created = append(s.created, cart)
	return nil
}

func (s *stubCartRepo) UpdateStatus(ctx context.Context, cartID uuid.UUID, status enums.CartStatus) error {
	if s.statuses == nil {
		s.statuses = map[uuid.UUID]enums.CartStatus{}
	}
	s.statuses[cartID] = status
	return nil
}

func (s *stubCartRepo) Touch(ctx context.Context, cartID uuid.UUID, expiresAt time.Time) error {
	s.touched = true
	return nil
}

func (s *stubCartRepo) Reparent(ctx context.Context, cartID, userID uuid.UUID) error {
	s.reparented = true
	return nil
}

func (s *stubCartRepo) FindLineForUpdate(ctx context.Context, cartID, productID uuid.UUID) (*models.CartLine, error) {
	if s.line != nil && s.line.ProductID == productID {
		return s.line, nil
	}
	return nil, nil
}

func (s *stubCartRepo) CreateLine(ctx context.Context, line *models.CartLine) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.createdLines = append(s.createdLines, line)
	if s.userCart != nil && line.CartID == s.userCart.ID {
		s.userCart.Lines = append(s.userCart.Lines, *line)
	}
	return nil
}

func (s *stubCartRepo) SetLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	s.setQuantity = quantity
	return nil
}

func (s *stubCartRepo) IncrementLineQuantity(ctx context.Context, cartID, productID uuid.UUID, delta int) error {
	s.incremented = delta
	if s.line != nil && s.line.ProductID == productID {
		s.line.Quantity += delta
		return nil
	}
	s.line = &models.CartLine{ID: uuid.New(), CartID: cartID, ProductID: productID, Quantity: s.raceWinnerQty + delta}
	return nil
}

func (s *stubCartRepo) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	s.deletedLine = true
	return nil
}

func (s *stubCartRepo) CountLines(ctx context.Context, cartID uuid.UUID) (int64, error) {
	return s.lineCount, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubProducts struct {
	priced map[uuid.UUID]*catalog.PricedProduct
	err    error
}

func (s *stubProducts) GetPricedProduct(ctx context.Context, productID uuid.UUID) (*catalog.PricedProduct, error) {
	if s.err != nil {
		return nil, s.err
	}
	if priced, ok := s.priced[productID]; ok {
		return priced, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

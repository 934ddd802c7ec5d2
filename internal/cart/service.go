package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dfrestrepo/mercaflow-backend/internal/catalog"
	"github.com/dfrestrepo/mercaflow-backend/internal/pricing"
	"github.com/dfrestrepo/mercaflow-backend/pkg/config"
	dbpkg "github.com/dfrestrepo/mercaflow-backend/pkg/db"
	"github.com/dfrestrepo/mercaflow-backend/pkg/db/models"
	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/logger"
)

// Ownership identifies the cart owner: an authenticated user or a guest
// browser session.
type Ownership struct {
	UserID    *uuid.UUID
	SessionID *string
}

func (o Ownership) valid() bool {
	return o.UserID != nil || (o.SessionID != nil && strings.TrimSpace(*o.SessionID) != "")
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productSource interface {
	GetPricedProduct(ctx context.Context, productID uuid.UUID) (*catalog.PricedProduct, error)
}

// LineView is one cart line priced with live data.
type LineView struct {
	ProductID      uuid.UUID  `json:"product_id"`
	ProductName    string     `json:"product_name"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int        `json:"unit_price_cents"`
	DiscountCents  int        `json:"discount_cents"`
	TotalCents     int        `json:"total_cents"`
	PromotionID    *uuid.UUID `json:"promotion_id,omitempty"`
	Available      bool       `json:"available"`
}

// View is the cart summary returned by every mutation. Prices are resolved
// live; nothing here is frozen until checkout. SessionID is set for guest
// carts so a client starting from nothing can persist its minted session.
type View struct {
	ID            uuid.UUID        `json:"id"`
	SessionID     *string          `json:"session_id,omitempty"`
	Status        enums.CartStatus `json:"status"`
	ExpiresAt     time.Time        `json:"expires_at"`
	Lines         []LineView       `json:"lines"`
	SubtotalCents int              `json:"subtotal_cents"`
	DiscountCents int              `json:"discount_cents"`
	TotalCents    int              `json:"total_cents"`
}

// Service drives the cart lifecycle up to the checkout handoff.
type Service interface {
	GetOrCreateActive(ctx context.Context, owner Ownership) (*View, error)
	AddLine(ctx context.Context, owner Ownership, productID uuid.UUID, quantity int) (*View, error)
	UpdateLineQuantity(ctx context.Context, owner Ownership, productID uuid.UUID, quantity int) (*View, error)
	MergeGuestIntoUser(ctx context.Context, sessionID string, userID uuid.UUID) (*View, error)
	Summarize(ctx context.Context, cart *models.Cart) (*View, error)
	ResolveActive(ctx context.Context, owner Ownership) (*models.Cart, error)
}

type service struct {
	repo     CartRepository
	products productSource
	tx       txRunner
	cfg      config.CartConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the cart service.
func NewService(repo CartRepository, products productSource, tx txRunner, cfg config.CartConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.New("cart repository is required")
	}
	if products == nil {
		return nil, errors.New("product source is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 720 * time.Hour
	}
	return &service{
		repo:     repo,
		products: products,
		tx:       tx,
		cfg:      cfg,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// ResolveActive finds the owner's active cart without creating one. Expired
// carts are demoted lazily and reported as absent.
func (s *service) ResolveActive(ctx context.Context, owner Ownership) (*models.Cart, error) {
	if !owner.valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart owner is required")
	}

	var cart *models.Cart
	var err error
	if owner.UserID != nil {
		cart, err = s.repo.FindActiveByUser(ctx, *owner.UserID)
	} else {
		cart, err = s.repo.FindActiveBySession(ctx, *owner.SessionID)
	}
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, nil
	}

	if cart.ExpiresAt.Before(s.now()) {
		if err := s.repo.UpdateStatus(ctx, cart.ID, enums.CartStatusAbandoned); err != nil {
			return nil, err
		}
		ctx = s.logg.WithCartID(ctx, cart.ID.String())
		s.logg.Info(ctx, "expired cart abandoned")
		return nil, nil
	}

	return cart, nil
}

// GetOrCreateActive returns the owner's active cart, creating one when none
// exists. A caller with no identity at all gets a fresh guest cart under a
// newly minted session id; creation is the only place session ids are issued.
func (s *service) GetOrCreateActive(ctx context.Context, owner Ownership) (*View, error) {
	owner, minted := s.ensureOwner(owner)

	var cart *models.Cart
	if !minted {
		resolved, err := s.ResolveActive(ctx, owner)
		if err != nil {
			return nil, err
		}
		cart = resolved
	}
	if cart == nil {
		created, err := s.createCart(ctx, owner)
		if err != nil {
			return nil, err
		}
		cart = created
	}
	return s.Summarize(ctx, cart)
}

// ensureOwner mints a guest session id when the caller supplied no identity.
func (s *service) ensureOwner(owner Ownership) (Ownership, bool) {
	if owner.valid() {
		return owner, false
	}
	sessionID := uuid.NewString()
	return Ownership{SessionID: &sessionID}, true
}

func (s *service) createCart(ctx context.Context, owner Ownership) (*models.Cart, error) {
	cart := &models.Cart{
		UserID:    owner.UserID,
		SessionID: owner.SessionID,
		Status:    enums.CartStatusActive,
		ExpiresAt: s.now().Add(s.cfg.TTL),
	}
	if owner.UserID != nil {
		cart.SessionID = nil
	}
	if err := s.repo.Create(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *service) AddLine(ctx context.Context, owner Ownership, productID uuid.UUID, quantity int) (*View, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	priced, err := s.products.GetPricedProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !priced.Product.Active {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product unavailable")
	}

	owner, minted := s.ensureOwner(owner)
	var cart *models.Cart
	if !minted {
		resolved, err := s.ResolveActive(ctx, owner)
		if err != nil {
			return nil, err
		}
		cart = resolved
	}
	if cart == nil {
		created, err := s.createCart(ctx, owner)
		if err != nil {
			return nil, err
		}
		cart = created
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		line, err := repo.FindLineForUpdate(ctx, cart.ID, productID)
		if err != nil {
			return err
		}

		requested := quantity
		if line != nil {
			requested += line.Quantity
		}
		if requested > priced.Product.Stock {
			return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")
		}

		if line != nil {
			return repo.SetLineQuantity(ctx, line.ID, requested)
		}

		created := &models.CartLine{
			CartID:         cart.ID,
			ProductID:      productID,
			Quantity:       quantity,
			PriceHistoryID: priced.PriceHistoryID,
		}
		if err := repo.CreateLine(ctx, created); err != nil {
			if !dbpkg.IsUniqueViolation(err, "ux_cart_lines_cart_product") {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating cart line")
			}
			// A concurrent insert won the race; fold into an increment and
			// re-check the merged quantity against live stock so the two
			// writers cannot jointly oversell.
			if err := repo.IncrementLineQuantity(ctx, cart.ID, productID, quantity); err != nil {
				return err
			}
			merged, err := repo.FindLineForUpdate(ctx, cart.ID, productID)
			if err != nil {
				return err
			}
			if merged == nil || merged.Quantity > priced.Product.Stock {
				return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Touch(ctx, cart.ID, s.now().Add(s.cfg.TTL)); err != nil {
		return nil, err
	}

	fresh, err := s.repo.FindByID(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	return s.Summarize(ctx, fresh)
}

func (s *service) UpdateLineQuantity(ctx context.Context, owner Ownership, productID uuid.UUID, quantity int) (*View, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	cart, err := s.ResolveActive(ctx, owner)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active cart")
	}

	abandoned := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		line, err := repo.FindLineForUpdate(ctx, cart.ID, productID)
		if err != nil {
			return err
		}
		if line == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
		}

		if quantity == 0 {
			if err := repo.DeleteLine(ctx, line.ID); err != nil {
				return err
			}
			remaining, err := repo.CountLines(ctx, cart.ID)
			if err != nil {
				return err
			}
			if remaining == 0 {
				abandoned = true
				return repo.UpdateStatus(ctx, cart.ID, enums.CartStatusAbandoned)
			}
			return nil
		}

		priced, err := s.products.GetPricedProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !priced.Product.Active {
			return pkgerrors.New(pkgerrors.CodeConflict, "product unavailable")
		}
		if quantity > priced.Product.Stock {
			return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")
		}

		return repo.SetLineQuantity(ctx, line.ID, quantity)
	})
	if err != nil {
		return nil, err
	}

	if !abandoned {
		if err := s.repo.Touch(ctx, cart.ID, s.now().Add(s.cfg.TTL)); err != nil {
			return nil, err
		}
	}

	fresh, err := s.repo.FindByID(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	return s.Summarize(ctx, fresh)
}

// MergeGuestIntoUser re-parents the guest session's cart onto the user at
// login. A pre-existing active user cart is demoted first so the guest cart,
// being the most recent intent, wins.
func (s *service) MergeGuestIntoUser(ctx context.Context, sessionID string, userID uuid.UUID) (*View, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	guestCart, err := s.ResolveActive(ctx, Ownership{SessionID: &sessionID})
	if err != nil {
		return nil, err
	}
	if guestCart == nil {
		return s.GetOrCreateActive(ctx, Ownership{UserID: &userID})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindActiveByUser(ctx, userID)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != guestCart.ID {
			if err := repo.UpdateStatus(ctx, existing.ID, enums.CartStatusAbandoned); err != nil {
				return err
			}
		}
		if err := repo.Reparent(ctx, guestCart.ID, userID); err != nil {
			return err
		}
		return repo.Touch(ctx, guestCart.ID, s.now().Add(s.cfg.TTL))
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"cart_id": guestCart.ID.String(),
		"user_id": userID.String(),
	})
	s.logg.Info(ctx, "guest cart merged into user")

	fresh, err := s.repo.FindByID(ctx, guestCart.ID)
	if err != nil {
		return nil, err
	}
	return s.Summarize(ctx, fresh)
}

// Summarize prices the cart with live catalog data.
func (s *service) Summarize(ctx context.Context, cart *models.Cart) (*View, error) {
	if cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart is required")
	}

	view := &View{
		ID:        cart.ID,
		SessionID: cart.SessionID,
		Status:    cart.Status,
		ExpiresAt: cart.ExpiresAt,
		Lines:     make([]LineView, 0, len(cart.Lines)),
	}

	now := s.now()
	for _, line := range cart.Lines {
		priced, err := s.products.GetPricedProduct(ctx, line.ProductID)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
				view.Lines = append(view.Lines, LineView{
					ProductID: line.ProductID,
					Quantity:  line.Quantity,
					Available: false,
				})
				continue
			}
			return nil, err
		}

		quote := pricing.QuoteLine(priced.Promotions, priced.UnitPriceCents, line.Quantity, now)
		lineView := LineView{
			ProductID:      line.ProductID,
			ProductName:    priced.Product.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: quote.UnitPriceCents,
			DiscountCents:  quote.DiscountCents,
			TotalCents:     quote.FinalCents,
			Available:      priced.Product.Active && priced.Product.Stock >= line.Quantity,
		}
		if quote.Promotion != nil {
			promoID := quote.Promotion.ID
			lineView.PromotionID = &promoID
		}

		view.Lines = append(view.Lines, lineView)
		view.SubtotalCents += quote.SubtotalCents
		view.DiscountCents += quote.DiscountCents
		view.TotalCents += quote.FinalCents
	}

	return view, nil
}

package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dfrestrepo/mercaflow-backend/pkg/enums"
	pkgerrors "github.com/dfrestrepo/mercaflow-backend/pkg/errors"
	"github.com/dfrestrepo/mercaflow-backend/pkg/types"
)

// Session accumulates delivery and payment choices between "begin checkout"
// and order creation. It lives only in the cache; expiry means the shopper
// restarts checkout.
type Session struct {
	ID                string                 `json:"id"`
	CartID            uuid.UUID              `json:"cart_id"`
	UserID            uuid.UUID              `json:"user_id"`
	DeliveryType      *enums.DeliveryType    `json:"delivery_type,omitempty"`
	DeliveryAddressID *uuid.UUID             `json:"delivery_address_id,omitempty"`
	DeliveryAddress   *types.AddressSnapshot `json:"delivery_address,omitempty"`
	PickupAgencyID    *uuid.UUID             `json:"pickup_agency_id,omitempty"`
	PaymentMethodID   *uuid.UUID             `json:"payment_method_id,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}

// Complete reports whether every checkout step has been settled. The
// delivery destination must match the chosen type: an address for shipping,
// an agency for pickup, never both.
func (s *Session) Complete() bool {
	if s == nil || s.DeliveryType == nil || s.PaymentMethodID == nil {
		return false
	}
	switch *s.DeliveryType {
	case enums.DeliveryTypeShipping:
		return s.DeliveryAddressID != nil && s.PickupAgencyID == nil
	case enums.DeliveryTypePickup:
		return s.PickupAgencyID != nil && s.DeliveryAddressID == nil
	default:
		return false
	}
}

type sessionCache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CheckoutSessionKey(id string) string
}

// SessionManager stores checkout sessions in Redis under a hard TTL.
type SessionManager struct {
	cache sessionCache
	ttl   time.Duration
}

// NewSessionManager builds a session manager with the configured TTL.
func NewSessionManager(cache sessionCache, ttl time.Duration) (*SessionManager, error) {
	if cache == nil {
		return nil, errors.New("session cache is required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionManager{cache: cache, ttl: ttl}, nil
}

// Create opens a fresh session for the cart and user.
func (m *SessionManager) Create(ctx context.Context, cartID, userID uuid.UUID) (*Session, error) {
	session := &Session{
		ID:        uuid.NewString(),
		CartID:    cartID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	if err := m.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Load fetches a session; absent or expired keys surface as not found.
func (m *SessionManager) Load(ctx context.Context, sessionID string) (*Session, error) {
	raw, err := m.cache.Get(ctx, m.cache.CheckoutSessionKey(sessionID))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session expired or missing")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading checkout session")
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding checkout session")
	}
	return &session, nil
}

// Save writes the session back, re-arming the TTL from this mutation.
func (m *SessionManager) Save(ctx context.Context, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding checkout session")
	}
	if err := m.cache.Set(ctx, m.cache.CheckoutSessionKey(session.ID), payload, m.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing checkout session")
	}
	return nil
}

// Destroy removes the session; called on order creation.
func (m *SessionManager) Destroy(ctx context.Context, sessionID string) error {
	if err := m.cache.Del(ctx, m.cache.CheckoutSessionKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "destroying checkout session")
	}
	return nil
}

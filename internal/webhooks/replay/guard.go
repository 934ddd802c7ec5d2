package replay

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	WebhookEventKey(gateway, eventID string) string
	Del(ctx context.Context, keys ...string) error
}

// Guard fences duplicate webhook deliveries per gateway. The mark is released
// on handler failure so the gateway's retry gets a clean attempt.
type Guard struct {
	store   store
	ttl     time.Duration
	gateway string
}

// NewGuard builds a replay guard for one gateway.
func NewGuard(s store, ttl time.Duration, gateway string) (*Guard, error) {
	if s == nil {
		return nil, errors.New("replay store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	if gateway == "" {
		return nil, errors.New("gateway is required")
	}
	return &Guard{store: s, ttl: ttl, gateway: gateway}, nil
}

// CheckAndMark reports whether the event was already seen, marking it
// otherwise.
func (g *Guard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	key := g.store.WebhookEventKey(g.gateway, eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set replay key: %w", err)
	}
	return !set, nil
}

// Release drops the mark so a retry can reprocess the event.
func (g *Guard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.WebhookEventKey(g.gateway, eventID))
}

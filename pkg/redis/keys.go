package redis

import "strings"

// All keys share one namespace so a shared Redis can host several
// deployments without collisions.
const keyNamespace = "mf"

const (
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	checkoutPrefix    = "checkout"
	webhookPrefix     = "webhook"
)

// IdempotencyKey names the stored response for a caller-supplied key.
func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(idempotencyPrefix, scope, id)
}

// RateLimitKey names a fixed-window counter.
func (c *Client) RateLimitKey(scope string) string {
	return buildKey(rateLimitPrefix, scope)
}

// CheckoutSessionKey names a stored checkout session.
func (c *Client) CheckoutSessionKey(sessionID string) string {
	return buildKey(checkoutPrefix, "session", sessionID)
}

// WebhookEventKey names the replay mark for one gateway event.
func (c *Client) WebhookEventKey(gateway, eventID string) string {
	return buildKey(webhookPrefix, gateway, eventID)
}

func buildKey(parts ...string) string {
	clean := make([]string, 0, len(parts)+1)
	clean = append(clean, keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, ":")
}

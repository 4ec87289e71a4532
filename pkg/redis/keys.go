package redis

import (
	"strconv"
	"strings"
)

// Every storefront key lives under "sf:<area>:...". Empty parts are dropped so
// callers can pass optional qualifiers.
const keyNamespace = "sf"

func key(area string, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(area)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}

func (c *Client) IdempotencyKey(scope, id string) string { return key("idempotency", scope, id) }

func (c *Client) RateLimitKey(scope string) string { return key("rate_limit", scope) }

// AccessSessionKey holds the refresh token bound to one access token id.
func (c *Client) AccessSessionKey(accessID string) string {
	return key("session", "access", accessID)
}

// UserSessionsKey is the set of access ids a user currently holds.
func (c *Client) UserSessionsKey(userID int64) string {
	return key("session", "user", strconv.FormatInt(userID, 10))
}

// CartGenerationKey counts invalidations of a user's cached cart.
func (c *Client) CartGenerationKey(userID int64) string {
	return key("cart", "gen", strconv.FormatInt(userID, 10))
}

// CartCacheKey caches the rendered persisted cart of a user.
func (c *Client) CartCacheKey(userID int64) string {
	return key("cart", strconv.FormatInt(userID, 10))
}

// GuestSlotKey is an anonymous session's local storage slot.
func (c *Client) GuestSlotKey(sessionID, slot string) string {
	return key("guest", sessionID, slot)
}

func (c *Client) LockKey(scope, id string) string { return key("lock", scope, id) }

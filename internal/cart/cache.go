package cart

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/persiashop/storefront-backend/pkg/db/models"
	"github.com/persiashop/storefront-backend/pkg/logger"
	"github.com/persiashop/storefront-backend/pkg/metrics"
	"github.com/persiashop/storefront-backend/pkg/redis"
)

const maxCacheJitter = 5 * time.Minute

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Bump(ctx context.Context, key string, ttl time.Duration) (int64, error)
	CartCacheKey(userID int64) string
	CartGenerationKey(userID int64) string
}

// cachedCart distinguishes "no cart yet" from a cache miss. Generation is the
// user's invalidation count read before the cart was loaded; an entry whose
// generation is behind the counter is stale and ignored.
type cachedCart struct {
	Generation int64        `json:"gen"`
	Present    bool         `json:"present"`
	Cart       *models.Cart `json:"cart,omitempty"`
}

// Cache is a read-through cache of persisted carts. Totals are never cached;
// they are derived from the items on every view build. A nil *Cache loads
// straight from the database.
type Cache struct {
	store   cacheStore
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.CartMetrics
	logg    *logger.Logger
}

// NewCache returns nil when store is nil or ttl is not positive.
func NewCache(store cacheStore, ttl time.Duration, m *metrics.CartMetrics, logg *logger.Logger) *Cache {
	if store == nil || ttl <= 0 {
		return nil
	}
	return &Cache{store: store, ttl: ttl, metrics: m, logg: logg}
}

// Get returns the cached cart for userID or calls load and caches its result,
// including a nil cart. Concurrent misses for one user share a single load.
// A load that overlaps Invalidate is tagged with the older generation, so its
// write can never be served afterwards. Cache failures degrade to loading from
// the database.
func (c *Cache) Get(ctx context.Context, userID int64, load func(context.Context) (*models.Cart, error)) (*models.Cart, error) {
	if c == nil {
		return load(ctx)
	}
	gen, err := c.generation(ctx, userID)
	if err != nil {
		c.metrics.IncCache(metrics.CacheError)
		c.warn(ctx, userID, "cart.cache.generation_failed", err)
		return load(ctx)
	}
	key := c.store.CartCacheKey(userID)

	data, err := c.store.GetBytes(ctx, key)
	switch {
	case err != nil:
		c.metrics.IncCache(metrics.CacheError)
		c.warn(ctx, userID, "cart.cache.read_failed", err)
	case data != nil:
		var entry cachedCart
		if err := json.Unmarshal(data, &entry); err != nil {
			c.metrics.IncCache(metrics.CacheError)
			break
		}
		if entry.Generation == gen {
			c.metrics.IncCache(metrics.CacheHit)
			return entry.Cart, nil
		}
		c.metrics.IncCache(metrics.CacheMiss)
	default:
		c.metrics.IncCache(metrics.CacheMiss)
	}

	flight := strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(gen, 10)
	v, err, _ := c.group.Do(flight, func() (any, error) {
		cart, err := load(ctx)
		if err != nil {
			return nil, err
		}
		entry := cachedCart{Generation: gen, Present: cart != nil, Cart: cart}
		payload, err := json.Marshal(entry)
		if err == nil {
			err = c.store.Set(ctx, key, payload, c.jitteredTTL())
		}
		if err != nil {
			c.warn(ctx, userID, "cart.cache.write_failed", err)
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	cart, _ := v.(*models.Cart)
	return cart, nil
}

// Invalidate bumps the user's generation, which retires every entry written
// before it including one still being loaded, then drops the cached cart.
func (c *Cache) Invalidate(ctx context.Context, userID int64) error {
	if c == nil {
		return nil
	}
	_, bumpErr := c.store.Bump(ctx, c.store.CartGenerationKey(userID), c.generationTTL())
	delErr := c.store.Del(ctx, c.store.CartCacheKey(userID))
	return multierr.Combine(bumpErr, delErr)
}

// generation reads the user's invalidation count; a missing counter is zero.
func (c *Cache) generation(ctx context.Context, userID int64) (int64, error) {
	raw, err := c.store.Get(ctx, c.store.CartGenerationKey(userID))
	if redis.IsNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// generationTTL outlives any entry the counter guards.
func (c *Cache) generationTTL() time.Duration {
	return 2*c.ttl + maxCacheJitter
}

// jitteredTTL spreads expirations so carts cached together do not expire together.
func (c *Cache) jitteredTTL() time.Duration {
	spread := c.ttl / 3
	if spread > maxCacheJitter {
		spread = maxCacheJitter
	}
	if spread <= 0 {
		return c.ttl
	}
	return c.ttl + time.Duration(rand.Int64N(int64(spread)))
}

func (c *Cache) warn(ctx context.Context, userID int64, msg string, err error) {
	if c.logg == nil {
		return
	}
	logCtx := c.logg.WithFields(ctx, map[string]any{"user_id": userID, "error": err.Error()})
	c.logg.Warn(logCtx, msg)
}

package redis

import (
	"context"
	"time"
)

// IncrWithTTL increments key and starts its expiry on the first hit, which
// gives fixed windows anchored at the first request.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	n, err := c.cmd.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 && ttl > 0 {
		if err := c.cmd.Expire(ctx, key, ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Bump increments key and pushes its expiry out to ttl on every call, so a
// counter that is still being bumped never resets to zero.
func (c *Client) Bump(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	n, err := c.cmd.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl > 0 {
		if err := c.cmd.Expire(ctx, key, ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// FixedWindowAllow counts one hit against scope and reports whether the count
// is still within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	n, err := c.IncrWithTTL(ctx, c.RateLimitKey(scope), window)
	if err != nil {
		return false, 0, err
	}
	return n <= limit, n, nil
}

// AddToSet adds members and pushes the set's expiry out to ttl.
func (c *Client) AddToSet(ctx context.Context, key string, ttl time.Duration, members ...string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := c.cmd.SAdd(ctx, key, anySlice(members)...).Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}
	return c.cmd.Expire(ctx, key, ttl).Err()
}

func (c *Client) RemoveFromSet(ctx context.Context, key string, members ...string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.cmd.SRem(ctx, key, anySlice(members)...).Err()
}

// SetMembers lists a set; a missing set is empty.
func (c *Client) SetMembers(ctx context.Context, key string) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.cmd.SMembers(ctx, key).Result()
}

func anySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

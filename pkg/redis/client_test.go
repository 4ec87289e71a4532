package redis

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persiashop/storefront-backend/pkg/config"
)

// fakeRedis is a single-goroutine, in-memory stand-in for the commands interface.
type fakeRedis struct {
	kv      map[string]string
	counter map[string]int64
	sets    map[string][]string
	expires map[string]int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		kv:      map[string]string{},
		counter: map[string]int64{},
		sets:    map[string][]string{},
		expires: map[string]int{},
	}
}

func asString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd { return redis.NewStatusResult("PONG", nil) }

func (f *fakeRedis) Get(_ context.Context, k string) *redis.StringCmd {
	if v, ok := f.kv[k]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) Set(_ context.Context, k string, v any, _ time.Duration) *redis.StatusCmd {
	f.kv[k] = asString(v)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) SetNX(_ context.Context, k string, v any, _ time.Duration) *redis.BoolCmd {
	if _, taken := f.kv[k]; taken {
		return redis.NewBoolResult(false, nil)
	}
	f.kv[k] = asString(v)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.kv, k)
		delete(f.sets, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeRedis) Incr(_ context.Context, k string) *redis.IntCmd {
	f.counter[k]++
	return redis.NewIntResult(f.counter[k], nil)
}

func (f *fakeRedis) Expire(_ context.Context, k string, _ time.Duration) *redis.BoolCmd {
	f.expires[k]++
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) SAdd(_ context.Context, k string, members ...any) *redis.IntCmd {
	for _, m := range members {
		if s := asString(m); !slices.Contains(f.sets[k], s) {
			f.sets[k] = append(f.sets[k], s)
		}
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeRedis) SRem(_ context.Context, k string, members ...any) *redis.IntCmd {
	for _, m := range members {
		s := asString(m)
		f.sets[k] = slices.DeleteFunc(f.sets[k], func(v string) bool { return v == s })
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeRedis) SMembers(_ context.Context, k string) *redis.StringSliceCmd {
	out := slices.Clone(f.sets[k])
	slices.Sort(out)
	return redis.NewStringSliceResult(out, nil)
}

func TestFixedWindowAllowStartsWindowOnFirstHit(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := &Client{cmd: fake}

	var allowed []bool
	for range 3 {
		ok, _, err := c.FixedWindowAllow(ctx, "otp:phone:09120000000", 2, time.Minute)
		require.NoError(t, err)
		allowed = append(allowed, ok)
	}
	assert.Equal(t, []bool{true, true, false}, allowed)
	assert.Equal(t, 1, fake.expires["sf:rate_limit:otp:phone:09120000000"])
}

func TestBumpRefreshesTTLEveryCall(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := &Client{cmd: fake}
	gen := c.CartGenerationKey(4)

	for want := int64(1); want <= 3; want++ {
		n, err := c.Bump(ctx, gen, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assert.Equal(t, 3, fake.expires[gen])
}

func TestGetBytesMissingKey(t *testing.T) {
	ctx := context.Background()
	c := &Client{cmd: newFakeRedis()}
	slot := c.GuestSlotKey("sess", "cart")

	data, err := c.GetBytes(ctx, slot)
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, c.Set(ctx, slot, []byte(`[]`), time.Hour))
	data, err = c.GetBytes(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	_, err = c.Get(ctx, "sf:missing")
	assert.True(t, IsNil(err))
}

func TestSetMembershipRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := &Client{cmd: fake}
	sessions := c.UserSessionsKey(7)

	require.NoError(t, c.AddToSet(ctx, sessions, time.Hour, "a", "b"))
	require.NoError(t, c.AddToSet(ctx, sessions, time.Hour, "c"))
	require.NoError(t, c.RemoveFromSet(ctx, sessions, "a"))

	members, err := c.SetMembers(ctx, sessions)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, members)
	assert.Equal(t, 2, fake.expires[sessions])
}

func TestKeyLayout(t *testing.T) {
	c := &Client{}
	assert.Equal(t, "sf:idempotency:cart.merge:abc", c.IdempotencyKey("cart.merge", "abc"))
	assert.Equal(t, "sf:rate_limit:otp", c.RateLimitKey("otp"))
	assert.Equal(t, "sf:session:access:jti", c.AccessSessionKey("jti"))
	assert.Equal(t, "sf:session:user:12", c.UserSessionsKey(12))
	assert.Equal(t, "sf:cart:12", c.CartCacheKey(12))
	assert.Equal(t, "sf:cart:gen:12", c.CartGenerationKey(12))
	assert.Equal(t, "sf:guest:sess:cart", c.GuestSlotKey("sess", "cart"))
	assert.Equal(t, "sf:lock:cart_merge", c.LockKey("cart_merge", " "))
}

func TestClientWithoutConnection(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, (&Client{}).Set(context.Background(), "k", "v", 0), errNotInitialized)
}

func TestClientOptions(t *testing.T) {
	opts, err := clientOptions(config.RedisConfig{
		URL:         "redis://:pw@cache:6380/3",
		PoolSize:    20,
		DialTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)

	opts, err = clientOptions(config.RedisConfig{Address: "localhost:6379", DB: 1})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 1, opts.DB)

	_, err = clientOptions(config.RedisConfig{})
	assert.Error(t, err)
}

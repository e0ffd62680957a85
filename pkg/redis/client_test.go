package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YeLlowseaG/clientseeker/pkg/config"
)

// fakeStore keeps values and TTLs in memory; it never expires anything.
type fakeStore struct {
	values   map[string]string
	counters map[string]int64
	ttls     map[string]time.Duration
	incrErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values:   map[string]string{},
		counters: map[string]int64{},
		ttls:     map[string]time.Duration{},
	}
}

func (f *fakeStore) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.values[key] = fmt.Sprint(value)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	if v, ok := f.values[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, taken := f.values[key]; taken {
		return redis.NewBoolResult(false, nil)
	}
	f.Set(ctx, key, value, ttl)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.incrErr != nil {
		return redis.NewIntResult(0, f.incrErr)
	}
	f.counters[key]++
	return redis.NewIntResult(f.counters[key], nil)
}

func (f *fakeStore) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			n++
		}
		delete(f.values, key)
		delete(f.ttls, key)
	}
	return redis.NewIntResult(n, nil)
}

func TestFixedWindowAllowCountsWithinWindow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	client := &Client{store: store}

	var verdicts []bool
	for range 3 {
		allowed, _, err := client.FixedWindowAllow(ctx, "capture:user-1", 2, time.Minute)
		require.NoError(t, err)
		verdicts = append(verdicts, allowed)
	}
	assert.Equal(t, []bool{true, true, false}, verdicts)
	assert.Equal(t, time.Minute, store.ttls["cs:rate_limit:capture:user-1"])

	store.incrErr = fmt.Errorf("connection reset")
	allowed, _, err := client.FixedWindowAllow(ctx, "capture:user-2", 2, time.Minute)
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestIncrWithTTLSetsExpiryOnce(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	client := &Client{store: store}

	_, err := client.IncrWithTTL(ctx, "counter", 10*time.Second)
	require.NoError(t, err)
	store.ttls["counter"] = 0

	count, err := client.IncrWithTTL(ctx, "counter", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Zero(t, store.ttls["counter"], "later increments must not extend the window")
}

func TestSetNXClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newFakeStore()}
	key := client.IdempotencyKey("stripe_webhook", "evt_1")

	won, err := client.SetNX(ctx, key, "claimed", time.Hour)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = client.SetNX(ctx, key, "claimed", time.Hour)
	require.NoError(t, err)
	assert.False(t, won)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.True(t, IsNil(err))

	require.NoError(t, client.Set(ctx, key, "done", time.Hour))
	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "done", got)
}

func TestKeyLayout(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("http", "abc"): "cs:idempotency:http:abc",
		client.IdempotencyKey("http", " "):  "cs:idempotency:http",
		client.RateLimitKey("capture"):      "cs:rate_limit:capture",
		client.LockKey("cron"):              "cs:lock:cron",
		client.GeoKey("203.0.113.9"):        "cs:geo:203.0.113.9",
	}
	for got, want := range cases {
		assert.Equal(t, want, got)
	}
}

func TestZeroClientReportsNotInitialized(t *testing.T) {
	var client *Client
	ctx := context.Background()

	assert.ErrorIs(t, client.Ping(ctx), errNotInitialized)
	_, err := client.SetNX(ctx, "k", "v", time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:      "redis://:pw@cache.internal:6380/3",
		DB:       7,
		PoolSize: 25,
	})
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB, "the url database wins over the fallback")
	assert.Equal(t, 25, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)

	_, err = optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)
}

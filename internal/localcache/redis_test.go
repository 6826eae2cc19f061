package localcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ttl, nil), mr
}

func TestRedisStore_SetGet(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()
	scoped := store.Scope("u-1")

	scoped.Set(ctx, KeyDeliveryOrders, sample{Name: "a", Count: 2})

	var got sample
	require.True(t, scoped.Get(ctx, KeyDeliveryOrders, &got))
	assert.Equal(t, sample{Name: "a", Count: 2}, got)
}

func TestRedisStore_MissReturnsFalse(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	var got sample
	assert.False(t, store.Scope("u-1").Get(context.Background(), KeyUserSession, &got))
}

func TestRedisStore_ScopesAreIsolated(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()

	store.Scope("u-1").Set(ctx, KeyUserSession, sample{Name: "one"})
	store.Scope("u-2").Set(ctx, KeyUserSession, sample{Name: "two"})

	var got sample
	require.True(t, store.Scope("u-2").Get(ctx, KeyUserSession, &got))
	assert.Equal(t, "two", got.Name)
}

func TestRedisStore_RemoveAndClear(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	ctx := context.Background()
	one := store.Scope("u-1")
	two := store.Scope("u-2")

	one.Set(ctx, KeyUserSession, sample{Name: "s"})
	one.Set(ctx, KeyDeliveryOrders, sample{Name: "o"})
	one.Set(ctx, KeyLastSync, "2026-01-01T00:00:00Z")
	two.Set(ctx, KeyUserSession, sample{Name: "other"})

	one.Remove(ctx, KeyUserSession)
	assert.False(t, mr.Exists(keyPrefix+"u-1:"+KeyUserSession))
	assert.True(t, mr.Exists(keyPrefix+"u-1:"+KeyDeliveryOrders))

	one.Clear(ctx)
	assert.False(t, mr.Exists(keyPrefix+"u-1:"+KeyDeliveryOrders))
	assert.False(t, mr.Exists(keyPrefix+"u-1:"+KeyLastSync))
	assert.True(t, mr.Exists(keyPrefix+"u-2:"+KeyUserSession))
}

func TestRedisStore_TTLApplied(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	store.Scope("u-1").Set(context.Background(), KeyDeliveryOrders, sample{Name: "x"})
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"u-1:"+KeyDeliveryOrders))
}

func TestRedisStore_CorruptPayloadIsAMiss(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	require.NoError(t, mr.Set(keyPrefix+"u-1:"+KeyDeliveryOrders, "{not json"))

	var got sample
	assert.False(t, store.Scope("u-1").Get(context.Background(), KeyDeliveryOrders, &got))
}

func TestRedisStore_FailuresAreSwallowed(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	scoped := store.Scope("u-1")
	mr.Close()

	ctx := context.Background()
	assert.NotPanics(t, func() {
		scoped.Set(ctx, KeyUserSession, sample{Name: "x"})
		scoped.Remove(ctx, KeyUserSession)
		scoped.Clear(ctx)
	})
	var got sample
	assert.False(t, scoped.Get(ctx, KeyUserSession, &got))
}

func TestRedisStore_ScanKey(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	ctx := context.Background()
	store.Scope("u-1").Set(ctx, KeyDeliveryOrders, sample{Name: "a"})
	store.Scope("u-2").Set(ctx, KeyDeliveryOrders, sample{Name: "b"})
	store.Scope("u-2").Set(ctx, KeyUserSession, sample{Name: "ignored"})

	seen := map[string]string{}
	err := store.ScanKey(ctx, KeyDeliveryOrders, func(owner string, payload []byte) error {
		seen[owner] = string(payload)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 2)
	assert.Contains(t, seen["u-1"], `"a"`)
	assert.Contains(t, seen["u-2"], `"b"`)
}

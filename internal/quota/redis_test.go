// File: internal/quota/redis_test.go
package quota

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

func TestRedisKeys(t *testing.T) {
	assert.Equal(t, "formpilot:quota:1.2.3.4_Mozilla:2026-10-15", counterKey("1.2.3.4_Mozilla", "2026-10-15"))
	assert.Equal(t, "formpilot:quota:usage:2026-10-15", usageKey("2026-10-15"))
}

// The Redis store is exercised against a live server when one is configured.
func TestRedisStore_Live(t *testing.T) {
	addr := os.Getenv("FORMPILOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FORMPILOT_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	store, err := NewRedisStore(ctx, client, 5, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	caller := "test_" + uuid.NewString()
	now := time.Now()
	t.Cleanup(func() {
		c := redis.NewClient(&redis.Options{Addr: addr})
		defer c.Close()
		c.Del(context.Background(), counterKey(caller, day(now)))
	})

	n, err := store.Remaining(ctx, caller)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	held, err := store.Reserve(ctx, caller, 4)
	require.NoError(t, err)
	_, err = store.Reserve(ctx, caller, 2)
	assert.ErrorIs(t, err, schemas.ErrQuotaExceeded, "reservations count against the limit")
	require.NoError(t, store.Record(ctx, schemas.UsageRecord{
		CallerKey: caller, FormURL: "u", Requested: 4, Successful: 0, Reserved: held.Count, ReservedAt: held.At,
	}))
	n, err = store.Remaining(ctx, caller)
	require.NoError(t, err)
	assert.Equal(t, 5, n, "settling returns the unused reservation")

	require.NoError(t, store.Record(ctx, schemas.UsageRecord{CallerKey: caller, FormURL: "u", Requested: 4, Successful: 3}))
	n, err = store.Remaining(ctx, caller)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.Record(ctx, schemas.UsageRecord{CallerKey: caller, FormURL: "u", Requested: 4, Successful: 4}))
	n, err = store.Remaining(ctx, caller)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.Reserve(ctx, caller, 1)
	assert.ErrorIs(t, err, schemas.ErrQuotaExceeded)

	ttl, err := client.TTL(ctx, counterKey(caller, day(now))).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 24*time.Hour)
}

// File: internal/quota/redis.go
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

const (
	keyPrefix = "formpilot:quota:"
	// Counters outlive their day so a late Record near midnight is not lost.
	counterTTL = 48 * time.Hour
	usageTTL   = 30 * 24 * time.Hour
)

// reserveScript increments the counter only when the result stays within
// the limit. It replies {granted, used}, where used is the count after a
// grant and the unchanged count after a refusal.
var reserveScript = redis.NewScript(`
local used = tonumber(redis.call("GET", KEYS[1]) or "0")
local n = tonumber(ARGV[1])
if used + n > tonumber(ARGV[2]) then
	return {0, used}
end
redis.call("INCRBY", KEYS[1], n)
redis.call("EXPIRE", KEYS[1], ARGV[3])
return {1, used + n}
`)

func counterKey(caller, day string) string { return keyPrefix + caller + ":" + day }

func usageKey(day string) string { return keyPrefix + "usage:" + day }

// RedisStore keeps per-day counters as expiring integer keys and the usage
// log as a per-day list of JSON records.
type RedisStore struct {
	client *redis.Client
	limit  int
	log    *zap.Logger
	now    func() time.Time
}

var _ schemas.QuotaStore = (*RedisStore)(nil)

// NewRedisStore creates a store and verifies the connection.
func NewRedisStore(ctx context.Context, client *redis.Client, dailyLimit int, logger *zap.Logger) (*RedisStore, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisStore{client: client, limit: dailyLimit, log: logger.Named("quota"), now: time.Now}, nil
}

// Remaining implements schemas.QuotaStore.
func (s *RedisStore) Remaining(ctx context.Context, key string) (int, error) {
	used, err := s.client.Get(ctx, counterKey(key, day(s.now()))).Int()
	if errors.Is(err, redis.Nil) {
		return s.limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read daily count: %w", err)
	}
	return remaining(s.limit, used), nil
}

// Reserve implements schemas.QuotaStore. The check and the increment run in
// one server-side script.
func (s *RedisStore) Reserve(ctx context.Context, key string, n int) (schemas.Reservation, error) {
	if err := validateReserve(key, n); err != nil {
		return schemas.Reservation{}, err
	}
	at := s.now()
	reply, err := reserveScript.Run(ctx, s.client, []string{counterKey(key, day(at))},
		n, s.limit, int64(counterTTL/time.Second)).Int64Slice()
	if err != nil {
		return schemas.Reservation{}, fmt.Errorf("failed to reserve quota: %w", err)
	}
	if len(reply) != 2 {
		return schemas.Reservation{}, fmt.Errorf("unexpected reservation reply %v", reply)
	}
	if reply[0] == 0 {
		return schemas.Reservation{}, exceeded(n, remaining(s.limit, int(reply[1])))
	}
	s.log.Debug("Reserved quota", zap.String("caller", key), zap.Int("count", n), zap.Int64("used", reply[1]))
	return schemas.Reservation{CallerKey: key, Count: n, At: at}, nil
}

// Record implements schemas.QuotaStore. All writes run in one MULTI/EXEC.
func (s *RedisStore) Record(ctx context.Context, rec schemas.UsageRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	rec.Timestamp = rec.Timestamp.UTC()
	entry, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode usage record: %w", err)
	}

	counterDay, delta := settlement(rec, rec.Timestamp)
	ck, uk := counterKey(rec.CallerKey, counterDay), usageKey(day(rec.Timestamp))
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if delta != 0 {
			pipe.IncrBy(ctx, ck, int64(delta))
			pipe.Expire(ctx, ck, counterTTL)
		}
		pipe.RPush(ctx, uk, entry)
		pipe.Expire(ctx, uk, usageTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	s.log.Debug("Recorded usage",
		zap.String("caller", rec.CallerKey),
		zap.Int("requested", rec.Requested),
		zap.Int("successful", rec.Successful),
		zap.Int("reserved", rec.Reserved))
	return nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// File: internal/quota/quota.go
package quota

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// Unlimited is what NopStore reports as remaining.
const Unlimited = math.MaxInt32

// userAgentPrefix is how much of the user agent goes into a caller key.
const userAgentPrefix = 20

// CallerKey identifies a requester by address and browser.
func CallerKey(ip, userAgent string) string {
	ua := []rune(userAgent)
	if len(ua) > userAgentPrefix {
		ua = ua[:userAgentPrefix]
	}
	return ip + "_" + string(ua)
}

// day is the accounting bucket a timestamp falls into.
func day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}

func exceeded(n, left int) error {
	return fmt.Errorf("%w: %d requested, %d remaining today", schemas.ErrQuotaExceeded, n, left)
}

func validateReserve(key string, n int) error {
	if key == "" {
		return fmt.Errorf("reservation has no caller key")
	}
	if n < 1 {
		return fmt.Errorf("reservation count must be positive, got %d", n)
	}
	return nil
}

func validateRecord(rec schemas.UsageRecord) error {
	if rec.CallerKey == "" {
		return fmt.Errorf("usage record has no caller key")
	}
	if rec.Requested < 0 || rec.Successful < 0 || rec.Successful > rec.Requested || rec.Reserved < 0 {
		return fmt.Errorf("usage record counts are inconsistent: requested=%d successful=%d reserved=%d",
			rec.Requested, rec.Successful, rec.Reserved)
	}
	return nil
}

// settlement returns the counter bucket a record adjusts and by how much. A
// reserved run already holds its count on the day it was reserved, so only
// the difference moves, and a shortfall gives allowance back.
func settlement(rec schemas.UsageRecord, at time.Time) (string, int) {
	if rec.Reserved == 0 {
		return day(at), rec.Successful
	}
	from := rec.ReservedAt
	if from.IsZero() {
		from = at
	}
	return day(from), rec.Successful - rec.Reserved
}

// NopStore grants everything and remembers nothing.
type NopStore struct{}

var _ schemas.QuotaStore = NopStore{}

func (NopStore) Remaining(context.Context, string) (int, error) { return Unlimited, nil }

func (NopStore) Reserve(_ context.Context, key string, n int) (schemas.Reservation, error) {
	return schemas.Reservation{CallerKey: key, Count: n, At: time.Now()}, nil
}

func (NopStore) Record(context.Context, schemas.UsageRecord) error { return nil }

func (NopStore) Close() error { return nil }

// Open builds the store selected by cfg.Backend and verifies it is reachable.
func Open(ctx context.Context, cfg config.QuotaConfig, logger *zap.Logger) (schemas.QuotaStore, error) {
	switch cfg.Backend {
	case config.QuotaNone, "":
		logger.Debug("Quota tracking disabled")
		return NopStore{}, nil

	case config.QuotaPostgres:
		poolConfig, err := pgxpool.ParseConfig(cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("unable to parse PGX pool config: %w", err)
		}
		poolConfig.MaxConns = 4
		poolConfig.MaxConnIdleTime = 5 * time.Minute
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("unable to create PGX connection pool: %w", err)
		}
		store, err := NewPostgresStore(ctx, pool, cfg.DailyLimit, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil

	case config.QuotaRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store, err := NewRedisStore(ctx, client, cfg.DailyLimit, logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown quota backend %q", cfg.Backend)
}

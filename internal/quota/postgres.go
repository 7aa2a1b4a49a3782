// File: internal/quota/postgres.go
package quota

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

//go:embed schema.sql
var schemaSQL string

// DBPool is the subset of pgxpool.Pool the store uses, so tests can swap in pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

const (
	sqlSelectDailyCount = `
        SELECT count FROM daily_counts
        WHERE caller_key = $1 AND day = $2::date;
    `
	sqlInsertUsage = `
        INSERT INTO usage_log (recorded_at, caller_key, form_url, requested, successful)
        VALUES ($1, $2, $3, $4, $5);
    `
	sqlUpsertDailyCount = `
        INSERT INTO daily_counts (caller_key, day, count)
        VALUES ($1, $2::date, $3)
        ON CONFLICT (caller_key, day) DO UPDATE SET
            count = GREATEST(daily_counts.count + EXCLUDED.count, 0);
    `
	// Inserts or increments only while the result stays within the limit
	// ($4). No row comes back when the reservation does not fit.
	sqlReserveDailyCount = `
        INSERT INTO daily_counts (caller_key, day, count)
        SELECT $1, $2::date, $3::integer WHERE $3::integer <= $4::integer
        ON CONFLICT (caller_key, day) DO UPDATE SET
            count = daily_counts.count + EXCLUDED.count
        WHERE daily_counts.count + EXCLUDED.count <= $4::integer
        RETURNING count;
    `
)

// PostgresStore keeps the usage log and per-day counters in PostgreSQL.
type PostgresStore struct {
	pool  DBPool
	limit int
	log   *zap.Logger
	now   func() time.Time
}

var _ schemas.QuotaStore = (*PostgresStore)(nil)

// NewPostgresStore creates a store and verifies the connection.
func NewPostgresStore(ctx context.Context, pool DBPool, dailyLimit int, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{
		pool:  pool,
		limit: dailyLimit,
		log:   logger.Named("quota"),
		now:   time.Now,
	}, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply quota schema: %w", err)
	}
	return nil
}

// Remaining implements schemas.QuotaStore.
func (s *PostgresStore) Remaining(ctx context.Context, key string) (int, error) {
	var used int
	err := s.pool.QueryRow(ctx, sqlSelectDailyCount, key, day(s.now())).Scan(&used)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to read daily count: %w", err)
	}
	return remaining(s.limit, used), nil
}

// Reserve implements schemas.QuotaStore with a single conditional upsert; the
// row lock taken by ON CONFLICT serialises concurrent reservations.
func (s *PostgresStore) Reserve(ctx context.Context, key string, n int) (schemas.Reservation, error) {
	if err := validateReserve(key, n); err != nil {
		return schemas.Reservation{}, err
	}
	at := s.now()
	var used int
	err := s.pool.QueryRow(ctx, sqlReserveDailyCount, key, day(at), n, s.limit).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		left, rerr := s.Remaining(ctx, key)
		if rerr != nil {
			return schemas.Reservation{}, rerr
		}
		return schemas.Reservation{}, exceeded(n, left)
	}
	if err != nil {
		return schemas.Reservation{}, fmt.Errorf("failed to reserve quota: %w", err)
	}
	s.log.Debug("Reserved quota", zap.String("caller", key), zap.Int("count", n), zap.Int("used", used))
	return schemas.Reservation{CallerKey: key, Count: n, At: at}, nil
}

// Record implements schemas.QuotaStore. The log row and the counter move
// together or not at all.
func (s *PostgresStore) Record(ctx context.Context, rec schemas.UsageRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	at := rec.Timestamp
	if at.IsZero() {
		at = s.now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlInsertUsage, at.UTC(), rec.CallerKey, rec.FormURL, rec.Requested, rec.Successful); err != nil {
		return fmt.Errorf("failed to insert usage row: %w", err)
	}
	if d, delta := settlement(rec, at); delta != 0 {
		if _, err := tx.Exec(ctx, sqlUpsertDailyCount, rec.CallerKey, d, delta); err != nil {
			return fmt.Errorf("failed to update daily count: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	s.log.Debug("Recorded usage",
		zap.String("caller", rec.CallerKey),
		zap.Int("requested", rec.Requested),
		zap.Int("successful", rec.Successful),
		zap.Int("reserved", rec.Reserved))
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

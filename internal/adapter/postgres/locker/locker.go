package locker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPollInterval = 500 * time.Millisecond

// Locker implements port/locker.AdvisoryLocker using Postgres session
// advisory locks, so two server replicas never drive the same model backend
// at once. Lock and unlock run on the same acquired connection because
// pg_advisory_lock is session-level.
type Locker struct {
	pool         *pgxpool.Pool
	pollInterval time.Duration
}

func New(pool *pgxpool.Pool) *Locker {
	return &Locker{pool: pool, pollInterval: defaultPollInterval}
}

// WithLock polls pg_try_advisory_lock until it wins or ctx ends.
func (l *Locker) WithLock(ctx context.Context, key int64, fn func(ctx context.Context) error) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection for advisory lock: %w", err)
	}
	defer conn.Release()

	waited := false
	for {
		var locked bool
		if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if locked {
			break
		}
		if !waited {
			slog.InfoContext(ctx, "waiting for advisory lock", "key", key)
			waited = true
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire advisory lock: %w", ctx.Err())
		case <-time.After(l.pollInterval):
		}
	}

	defer func() {
		// Background so the unlock still runs after ctx is cancelled mid-fn.
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", key); err != nil {
			slog.Error("release advisory lock failed", "key", key, "error", err)
		}
	}()

	return fn(ctx)
}

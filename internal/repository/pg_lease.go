package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgLeaser takes a session-level advisory lock per config hash, so cycles
// running in different processes never dispatch the same group twice.
// The lock lives on a dedicated pooled connection until release.
type PgLeaser struct {
	pool *pgxpool.Pool
}

func NewPgLeaser(pool *pgxpool.Pool) *PgLeaser {
	return &PgLeaser{pool: pool}
}

func (l *PgLeaser) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx,
		`SELECT pg_try_advisory_lock(hashtextextended($1, 0))`, key,
	).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key); err != nil {
			// A session lock must not leak back into the pool.
			_ = conn.Conn().Close(ctx)
		}
		conn.Release()
	}, true, nil
}

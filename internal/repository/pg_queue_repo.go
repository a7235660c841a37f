package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/lotdispatch/internal/domain"
)

type pgQueueRepository struct {
	pool *pgxpool.Pool
}

// NewPgQueueRepository returns a QueueRepository backed by PostgreSQL.
func NewPgQueueRepository(pool *pgxpool.Pool) QueueRepository {
	return &pgQueueRepository{pool: pool}
}

func (r *pgQueueRepository) Insert(ctx context.Context, item *domain.QueueItem) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO dispatch_queue (payload, config_hash, config_snapshot, retry_count)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		item.Payload, item.ConfigHash, string(item.ConfigSnapshot), item.RetryCount,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

func (r *pgQueueRepository) InsertBatch(ctx context.Context, items []*domain.QueueItem) error {
	if len(items) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, item := range items {
			err := tx.QueryRow(ctx, `
				INSERT INTO dispatch_queue (payload, config_hash, config_snapshot, retry_count)
				VALUES ($1, $2, $3, $4)
				RETURNING id, created_at`,
				item.Payload, item.ConfigHash, string(item.ConfigSnapshot), item.RetryCount,
			).Scan(&item.ID, &item.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert queue batch: %w", err)
			}
		}
		return nil
	})
}

func (r *pgQueueRepository) ListBy(ctx context.Context, configHash string) ([]*domain.QueueItem, error) {
	query := `
		SELECT id, created_at, modified_at, payload, config_hash, config_snapshot, retry_count
		FROM dispatch_queue`
	var args []any
	if configHash != "" {
		query += ` WHERE config_hash = $1`
		args = append(args, configHash)
	}
	query += ` ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()
	return scanQueueItems(rows)
}

func (r *pgQueueRepository) DeleteByIDs(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM dispatch_queue WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete queue items: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgQueueRepository) ExistsByHash(ctx context.Context, configHash string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM dispatch_queue WHERE config_hash = $1)`, configHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check config hash: %w", err)
	}
	return exists, nil
}

// MarkRetry only ever raises retry_count; a stale write cannot lower it.
func (r *pgQueueRepository) MarkRetry(ctx context.Context, id int64, retryCount int, modifiedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE dispatch_queue
		SET retry_count = GREATEST(retry_count, $1), modified_at = $2
		WHERE id = $3`, retryCount, modifiedAt, id)
	if err != nil {
		return fmt.Errorf("reschedule queue item %d: %w", id, err)
	}
	return nil
}

func (r *pgQueueRepository) Stats(ctx context.Context) ([]domain.HashStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT config_hash, COUNT(*), COALESCE(MAX(retry_count), 0)
		FROM dispatch_queue
		GROUP BY config_hash
		ORDER BY MIN(id) ASC`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.HashStat
	for rows.Next() {
		var s domain.HashStat
		if err := rows.Scan(&s.ConfigHash, &s.Items, &s.MaxRetry); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// ---- helpers ----

func scanQueueItem(row pgx.Row) (*domain.QueueItem, error) {
	var (
		item     domain.QueueItem
		snapshot *string
	)
	err := row.Scan(
		&item.ID, &item.CreatedAt, &item.ModifiedAt, &item.Payload,
		&item.ConfigHash, &snapshot, &item.RetryCount,
	)
	if err != nil {
		return nil, err
	}
	if snapshot != nil {
		item.ConfigSnapshot = []byte(*snapshot)
	}
	return &item, nil
}

func scanQueueItems(rows pgx.Rows) ([]*domain.QueueItem, error) {
	var result []*domain.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

package repository

import (
	"context"
	"time"

	"github.com/notifyhub/lotdispatch/internal/domain"
)

// QueueRepository defines all persistence operations for pending queue items.
// The pgx implementation is in pg_queue_repo.go.
// Tests use a hand-written in-memory version (mock_queue_repo.go).
type QueueRepository interface {
	// Insert stores item and fills in its ID and CreatedAt.
	Insert(ctx context.Context, item *domain.QueueItem) error
	// InsertBatch stores every item or none of them.
	InsertBatch(ctx context.Context, items []*domain.QueueItem) error
	// ListBy returns pending items ordered by id ascending. An empty hash
	// returns every item.
	ListBy(ctx context.Context, configHash string) ([]*domain.QueueItem, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int, error)
	ExistsByHash(ctx context.Context, configHash string) (bool, error)
	MarkRetry(ctx context.Context, id int64, retryCount int, modifiedAt time.Time) error
	Stats(ctx context.Context) ([]domain.HashStat, error)
}

// ContactRepository loads and stores recipient profile fields used for
// token substitution.
type ContactRepository interface {
	GetProfile(ctx context.Context, id string) (map[string]any, error)
	UpsertProfile(ctx context.Context, id string, fields map[string]any) error
}

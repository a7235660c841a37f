package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/lotdispatch/internal/domain"
	"github.com/notifyhub/lotdispatch/internal/repository"
)

// RetryResult counts what HandleFailedBatch did with a failed set of items.
type RetryResult struct {
	Scheduled int
	Deleted   int
}

func (r RetryResult) outcome() domain.Outcome {
	return domain.Outcome{Processed: r.Deleted, Scheduled: r.Scheduled}
}

// RetryPolicy applies the bounded retry counter to failed items: an item
// whose retry count already reached the limit is removed, every other item
// gets its count incremented and its modification time stamped.
type RetryPolicy struct {
	store  repository.QueueRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewRetryPolicy(store repository.QueueRepository, logger *zap.Logger) *RetryPolicy {
	return &RetryPolicy{store: store, logger: logger, now: time.Now}
}

// HandleFailedBatch schedules or drops every item. Store errors are joined
// and returned; items handled before an error still count.
func (p *RetryPolicy) HandleFailedBatch(
	ctx context.Context,
	items []*domain.QueueItem,
	retryLimit int,
	reason string,
) (RetryResult, error) {
	var (
		res    RetryResult
		errs   []error
		expire []int64
		now    = p.now().UTC()
	)

	for _, it := range items {
		if it.RetryCount >= retryLimit {
			expire = append(expire, it.ID)
			continue
		}
		next := it.RetryCount + 1
		if err := p.store.MarkRetry(ctx, it.ID, next, now); err != nil {
			errs = append(errs, fmt.Errorf("mark retry %d: %w", it.ID, err))
			continue
		}
		it.RetryCount = next
		it.ModifiedAt = &now
		res.Scheduled++
	}

	if len(expire) > 0 {
		n, err := p.store.DeleteByIDs(ctx, expire)
		if err != nil {
			errs = append(errs, fmt.Errorf("delete exhausted items: %w", err))
		}
		res.Deleted += n
	}

	p.logger.Warn("dispatch failed, items rescheduled",
		zap.String("reason", reason),
		zap.Int("items", len(items)),
		zap.Int("scheduled", res.Scheduled),
		zap.Int("dropped", res.Deleted),
		zap.Int("retry_limit", retryLimit),
	)
	return res, errors.Join(errs...)
}

package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/notifyhub/lotdispatch/internal/domain"
)

// FlowLimiters holds one token bucket per dispatch flow so a large
// messages lot cannot starve email calls of provider capacity.
// Burst equals the rate: no saved-up burst above the per-second maximum.
type FlowLimiters struct {
	limiters map[domain.Flow]*rate.Limiter
}

// New creates FlowLimiters allowing ratePerSec provider calls per second per
// flow. A non-positive rate disables limiting.
func New(ratePerSec int) *FlowLimiters {
	fl := &FlowLimiters{limiters: map[domain.Flow]*rate.Limiter{}}
	if ratePerSec <= 0 {
		return fl
	}
	r := rate.Limit(ratePerSec)
	for _, f := range []domain.Flow{
		domain.FlowMessagesBatch, domain.FlowMessagesSingle,
		domain.FlowEmailsBatch, domain.FlowEmailsSingle,
	} {
		fl.limiters[f] = rate.NewLimiter(r, ratePerSec)
	}
	return fl
}

// Wait blocks until the flow's limiter grants a token.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (fl *FlowLimiters) Wait(ctx context.Context, f domain.Flow) error {
	if fl == nil {
		return nil
	}
	l, ok := fl.limiters[f]
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}

// ChunkPacer spaces consecutive add-chunk calls of one lot by a fixed
// interval. The first call never waits.
type ChunkPacer struct {
	limiter *rate.Limiter
}

// NewChunkPacer returns a pacer for the snapshot's batch interval.
// A zero or negative interval disables pacing.
func NewChunkPacer(interval time.Duration) *ChunkPacer {
	if interval <= 0 {
		return &ChunkPacer{}
	}
	return &ChunkPacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *ChunkPacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

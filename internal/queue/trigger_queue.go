package queue

import (
	"context"

	"github.com/notifyhub/lotdispatch/internal/domain"
)

// TriggerQueue buffers dispatch requests for the worker in two tiers:
// targeted triggers (one config hash) and full sweeps. Targeted triggers
// are served first since a sweep already covers whatever a later targeted
// trigger would find.
type TriggerQueue struct {
	targeted chan Trigger
	sweep    chan Trigger
}

// New creates a queue holding up to size triggers per tier.
func New(size int) *TriggerQueue {
	if size < 1 {
		size = 1
	}
	return &TriggerQueue{
		targeted: make(chan Trigger, size),
		sweep:    make(chan Trigger, size),
	}
}

// Enqueue never blocks: a full tier returns ErrQueueFull immediately so the
// HTTP handler can answer 503.
func (q *TriggerQueue) Enqueue(t Trigger) error {
	ch := q.sweep
	if t.Targeted() {
		ch = q.targeted
	}
	select {
	case ch <- t:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until a trigger is available or ctx is cancelled, in which
// case it returns (Trigger{}, false).
func (q *TriggerQueue) Dequeue(ctx context.Context) (Trigger, bool) {
	select {
	case t := <-q.targeted:
		return t, true
	default:
	}

	select {
	case t := <-q.targeted:
		return t, true
	case t := <-q.sweep:
		return t, true
	case <-ctx.Done():
		return Trigger{}, false
	}
}

// Depths returns the number of waiting triggers per tier.
func (q *TriggerQueue) Depths() (targeted, sweep int) {
	return len(q.targeted), len(q.sweep)
}

package dispatch

import (
	"context"
	"sync"
)

// Leaser grants exclusive processing of one config-hash group across
// concurrent cycles. When ok is false the group is held elsewhere and must
// be skipped; release is only non-nil when ok is true.
type Leaser interface {
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// MemoryLeaser serialises groups inside one process.
type MemoryLeaser struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLeaser() *MemoryLeaser {
	return &MemoryLeaser{held: make(map[string]struct{})}
}

func (l *MemoryLeaser) TryAcquire(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}

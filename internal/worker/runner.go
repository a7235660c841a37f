package worker

import (
	"context"
	"sync"

	"github.com/notifyhub/lotdispatch/internal/domain"
)

// Dispatcher is the cycle the workers drive.
type Dispatcher interface {
	ProcessPending(ctx context.Context, configHash string) (domain.Report, error)
}

// Runner serialises dispatch cycles inside the process. The ticker, the
// trigger consumer and the synchronous HTTP endpoint all go through it.
type Runner struct {
	d  Dispatcher
	mu sync.Mutex
}

func NewRunner(d Dispatcher) *Runner {
	return &Runner{d: d}
}

// Run waits for any cycle in progress, then runs one.
func (r *Runner) Run(ctx context.Context, configHash string) (domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.d.ProcessPending(ctx, configHash)
}

// TryRun runs a cycle only if none is in progress, else ErrLockHeld.
func (r *Runner) TryRun(ctx context.Context, configHash string) (domain.Report, error) {
	if !r.mu.TryLock() {
		return domain.Report{}, domain.ErrLockHeld
	}
	defer r.mu.Unlock()
	return r.d.ProcessPending(ctx, configHash)
}

package worker

import (
	"context"
	"sync"
)

// Job is a long-running loop that returns once ctx is cancelled.
type Job interface {
	Run(ctx context.Context)
}

// Pool manages the lifecycle of the background workers.
type Pool struct {
	jobs []Job
	wg   sync.WaitGroup
}

func NewPool(jobs ...Job) *Pool {
	return &Pool{jobs: jobs}
}

// Start launches every job as a goroutine. Cancelling ctx shuts the whole
// pool down.
func (p *Pool) Start(ctx context.Context) {
	for _, j := range p.jobs {
		p.wg.Add(1)
		go func(j Job) {
			defer p.wg.Done()
			j.Run(ctx)
		}(j)
	}
}

// Wait blocks until every job has returned after ctx is cancelled, so an
// in-flight cycle can finish its lot.
func (p *Pool) Wait() {
	p.wg.Wait()
}

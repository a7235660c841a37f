package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/notifyhub/lotdispatch/internal/queue"
)

// TriggerWorker runs one cycle per trigger taken off the queue.
type TriggerWorker struct {
	runner *Runner
	q      *queue.TriggerQueue
	logger *zap.Logger
}

func NewTriggerWorker(runner *Runner, q *queue.TriggerQueue, logger *zap.Logger) *TriggerWorker {
	return &TriggerWorker{runner: runner, q: q, logger: logger}
}

// Run blocks until ctx is cancelled.
func (tw *TriggerWorker) Run(ctx context.Context) {
	tw.logger.Info("trigger worker started")
	for {
		t, ok := tw.q.Dequeue(ctx)
		if !ok {
			tw.logger.Info("trigger worker stopping")
			return
		}
		log := tw.logger.With(
			zap.String("correlation_id", t.CorrelationID),
			zap.String("config_hash", t.ConfigHash),
		)
		rep, err := tw.runner.Run(ctx, t.ConfigHash)
		if err != nil {
			log.Error("triggered cycle failed", zap.Error(err))
			continue
		}
		log.Info("triggered cycle done",
			zap.Int("eligible", rep.Eligible),
			zap.Int("processed", rep.Processed),
			zap.Int("scheduled", rep.Scheduled),
		)
	}
}

package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/lotdispatch/internal/domain"
)

// SweepWorker runs a full dispatch cycle every interval. A tick that finds a
// cycle already running is skipped; the next tick picks up what is left.
type SweepWorker struct {
	runner   *Runner
	interval time.Duration
	logger   *zap.Logger
}

func NewSweepWorker(runner *Runner, interval time.Duration, logger *zap.Logger) *SweepWorker {
	return &SweepWorker{runner: runner, interval: interval, logger: logger}
}

// Run ticks until ctx is cancelled.
func (sw *SweepWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("sweep worker started", zap.Duration("interval", sw.interval))

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("sweep worker stopping")
			return
		case <-ticker.C:
			sw.poll(ctx)
		}
	}
}

func (sw *SweepWorker) poll(ctx context.Context) {
	rep, err := sw.runner.TryRun(ctx, "")
	switch {
	case errors.Is(err, domain.ErrLockHeld):
		sw.logger.Debug("dispatch cycle in progress, skipping tick")
	case err != nil:
		sw.logger.Error("sweep cycle failed", zap.Error(err))
	case rep.Eligible > 0:
		sw.logger.Info("sweep cycle done",
			zap.Int("eligible", rep.Eligible),
			zap.Int("processed", rep.Processed),
			zap.Int("scheduled", rep.Scheduled),
		)
	}
}

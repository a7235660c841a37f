package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/lotdispatch/internal/domain"
	"github.com/notifyhub/lotdispatch/internal/provider"
	"github.com/notifyhub/lotdispatch/internal/ratelimiter"
	"github.com/notifyhub/lotdispatch/internal/repository"
)

// Dispatcher drains the pending queue one config-hash group at a time.
type Dispatcher struct {
	store    repository.QueueRepository
	contacts repository.ContactRepository
	client   provider.Client
	retry    *RetryPolicy
	limiter  *ratelimiter.FlowLimiters
	leaser   Leaser
	hooks    MetricHooks
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Dispatcher)

// WithLeaser makes every group acquire a lease before it is processed.
// Groups whose lease is held are skipped for this cycle.
func WithLeaser(l Leaser) Option {
	return func(d *Dispatcher) { d.leaser = l }
}

// WithLimiter caps provider calls per flow.
func WithLimiter(l *ratelimiter.FlowLimiters) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

func WithHooks(h MetricHooks) Option {
	return func(d *Dispatcher) { d.hooks = h }
}

// WithClock overrides the time source used for lot dates and retry stamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
		d.retry.now = now
	}
}

func NewDispatcher(
	store repository.QueueRepository,
	contacts repository.ContactRepository,
	client provider.Client,
	logger *zap.Logger,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		contacts: contacts,
		client:   client,
		retry:    NewRetryPolicy(store, logger),
		logger:   logger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ProcessPending runs one dispatch cycle over every pending item, or only the
// items of configHash when it is non-empty. A group failure never aborts the
// cycle; only failing to read the queue does.
//
// Cancelling ctx stops the cycle between groups. A group that has started
// runs to completion so an open lot is always finished.
func (d *Dispatcher) ProcessPending(ctx context.Context, configHash string) (domain.Report, error) {
	start := time.Now()

	items, err := d.store.ListBy(ctx, configHash)
	if err != nil {
		return domain.Report{}, fmt.Errorf("list pending items: %w", err)
	}

	report := domain.Report{Eligible: len(items)}
	if len(items) == 0 {
		d.hooks.cycle(report, time.Since(start))
		return report, nil
	}

	// Groups keep the order their first item appears in.
	var order []string
	groups := make(map[string][]*domain.QueueItem)
	for _, it := range items {
		if _, seen := groups[it.ConfigHash]; !seen {
			order = append(order, it.ConfigHash)
		}
		groups[it.ConfigHash] = append(groups[it.ConfigHash], it)
	}

	for _, hash := range order {
		if ctx.Err() != nil {
			break
		}
		report.Add(d.processGroup(context.WithoutCancel(ctx), hash, groups[hash]))
	}

	d.logger.Info("dispatch cycle finished",
		zap.String("config_hash", configHash),
		zap.Int("eligible", report.Eligible),
		zap.Int("processed", report.Processed),
		zap.Int("scheduled", report.Scheduled),
		zap.Duration("elapsed", time.Since(start)),
	)
	d.hooks.cycle(report, time.Since(start))
	return report, nil
}

func (d *Dispatcher) processGroup(ctx context.Context, hash string, items []*domain.QueueItem) (out domain.Outcome) {
	log := d.logger.With(zap.String("config_hash", hash), zap.Int("items", len(items)))

	if d.leaser != nil {
		release, ok, err := d.leaser.TryAcquire(ctx, hash)
		if err != nil {
			log.Error("acquire group lease", zap.Error(err))
			d.hooks.skipped()
			return domain.Outcome{}
		}
		if !ok {
			log.Info("group is being dispatched elsewhere, skipping")
			d.hooks.skipped()
			return domain.Outcome{}
		}
		defer release()

		// Another holder may have sent part of the group since it was listed.
		items, err = d.stillQueued(ctx, hash, items)
		if err != nil {
			log.Error("reload group", zap.Error(err))
			d.hooks.skipped()
			return domain.Outcome{}
		}
		if len(items) == 0 {
			log.Info("group already dispatched elsewhere, skipping")
			d.hooks.skipped()
			return domain.Outcome{}
		}
	}

	snap, err := domain.DecodeSnapshot(items[0].ConfigSnapshot)
	if err != nil {
		return d.failGroup(ctx, log, items, domain.DefaultRetryLimit, fmt.Sprintf("decode snapshot: %v", err))
	}
	flow := snap.DispatchFlow()

	defer func() {
		if r := recover(); r != nil {
			log.Error("group dispatch panicked", zap.Any("panic", r), zap.Stack("stack"))
			out = d.failGroup(ctx, log, items, snap.RetryLimit(), fmt.Sprintf("panic: %v", r))
		}
		d.hooks.group(flow, out)
	}()

	run := &groupRun{d: d, snap: snap, policy: policyFor(flow), items: items, log: log.With(zap.String("flow", string(flow)))}
	out, err = run.execute(ctx)
	if err != nil {
		log.Error("group dispatch failed", zap.Error(err))
		return d.failGroup(ctx, log, items, snap.RetryLimit(), err.Error())
	}
	return out
}

// stillQueued returns the current rows of the listed items, dropping those
// that are gone. Items queued after the listing wait for the next cycle.
func (d *Dispatcher) stillQueued(ctx context.Context, hash string, listed []*domain.QueueItem) ([]*domain.QueueItem, error) {
	current, err := d.store.ListBy(ctx, hash)
	if err != nil {
		return nil, err
	}
	want := make(map[int64]struct{}, len(listed))
	for _, it := range listed {
		want[it.ID] = struct{}{}
	}
	out := current[:0]
	for _, it := range current {
		if _, ok := want[it.ID]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// failGroup routes items that are still queued through the retry policy.
func (d *Dispatcher) failGroup(ctx context.Context, log *zap.Logger, items []*domain.QueueItem, limit int, reason string) domain.Outcome {
	res, err := d.retry.HandleFailedBatch(ctx, items, limit, reason)
	if err != nil {
		log.Error("retry handling failed", zap.Error(err))
	}
	return res.outcome()
}

package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/lotdispatch/internal/domain"
	"github.com/notifyhub/lotdispatch/internal/provider"
	"github.com/notifyhub/lotdispatch/internal/ratelimiter"
)

// groupRun is the state of one group's dispatch.
type groupRun struct {
	d      *Dispatcher
	snap   domain.ConfigSnapshot
	policy flowPolicy
	items  []*domain.QueueItem
	log    *zap.Logger
}

// execute returns an error only for failures the flow did not already hand
// to the retry policy.
func (g *groupRun) execute(ctx context.Context) (domain.Outcome, error) {
	if g.policy.batched {
		return g.runLot(ctx)
	}
	return g.runSingle(ctx), nil
}

// runLot drives create, add chunks, finish. Once a lot exists it is always
// finished before the group is retried.
func (g *groupRun) runLot(ctx context.Context) (domain.Outcome, error) {
	p := g.policy
	base := g.snap.URL()

	body, err := p.createBody(g.snap, g.d.now())
	if err != nil {
		return g.fail(ctx, err.Error()), nil
	}

	resp, err := g.post(ctx, "create_lot", endpoint(base, p.createPath), body)
	if err != nil {
		return g.fail(ctx, fmt.Sprintf("create lot: %v", err)), nil
	}
	lotID, ok := provider.LotID(resp)
	if !ok {
		return g.fail(ctx, "create lot: no lot id in response"), nil
	}
	log := g.log.With(zap.String("lot_id", lotID))

	builder := newMessageBuilder(g.snap, g.d.contacts)
	msgs := make([]map[string]any, 0, len(g.items))
	for _, it := range g.items {
		m, err := builder.build(ctx, it)
		if err != nil {
			g.finish(ctx, log, base, lotID)
			return domain.Outcome{}, err
		}
		msgs = append(msgs, m)
	}

	if p.validateMessages {
		if err := validateMessages(msgs); err != nil {
			g.finish(ctx, log, base, lotID)
			return g.fail(ctx, err.Error()), nil
		}
	}

	size := g.snap.BatchSize()
	if size < 1 {
		size = 1
	}
	log.Info("adding contacts to lot", zap.Int("messages", len(msgs)), zap.Int("batch_size", size))

	pacer := ratelimiter.NewChunkPacer(time.Duration(g.snap.BatchInterval()) * time.Second)
	addURL := lotEndpoint(base, p.addPath, lotID)
	for i, c := range chunk(msgs, size) {
		if err := pacer.Wait(ctx); err != nil {
			g.finish(ctx, log, base, lotID)
			return g.fail(ctx, fmt.Sprintf("add chunk %d: %v", i, err)), nil
		}
		if _, err := g.post(ctx, "add_to_lot", addURL, p.wrapChunk(c)); err != nil {
			g.finish(ctx, log, base, lotID)
			return g.fail(ctx, fmt.Sprintf("add chunk %d: %v", i, err)), nil
		}
	}

	if err := g.finish(ctx, log, base, lotID); err != nil {
		return g.fail(ctx, fmt.Sprintf("finish lot: %v", err)), nil
	}

	ids := make([]int64, len(g.items))
	for i, it := range g.items {
		ids[i] = it.ID
	}
	n, err := g.d.store.DeleteByIDs(ctx, ids)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("delete sent items: %w", err)
	}
	log.Info("lot dispatched", zap.Int("messages", len(msgs)))
	return domain.Outcome{Processed: n}, nil
}

// runSingle sends one request per item; a failure or panic only affects
// that item.
func (g *groupRun) runSingle(ctx context.Context) domain.Outcome {
	var out domain.Outcome
	builder := newMessageBuilder(g.snap, g.d.contacts)
	url := endpoint(g.snap.URL(), g.policy.singlePath)

	for _, it := range g.items {
		log := g.log.With(zap.Int64("item_id", it.ID))

		if err := g.sendOne(ctx, builder, url, it); err != nil {
			res, rerr := g.d.retry.HandleFailedBatch(ctx, []*domain.QueueItem{it}, g.snap.RetryLimit(), err.Error())
			if rerr != nil {
				log.Error("retry handling failed", zap.Error(rerr))
			}
			out.Processed += res.Deleted
			out.Scheduled += res.Scheduled
			continue
		}

		n, err := g.d.store.DeleteByIDs(ctx, []int64{it.ID})
		if err != nil {
			log.Error("delete sent item", zap.Error(err))
			continue
		}
		out.Processed += n
	}
	return out
}

func (g *groupRun) sendOne(ctx context.Context, builder *messageBuilder, url string, it *domain.QueueItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("single send panicked", zap.Int64("item_id", it.ID), zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	msg, err := builder.build(ctx, it)
	if err != nil {
		return err
	}
	_, err = g.post(ctx, "send_single", url, msg)
	return err
}

func (g *groupRun) finish(ctx context.Context, log *zap.Logger, base, lotID string) error {
	_, err := g.post(ctx, "finish_lot", lotEndpoint(base, g.policy.finishPath, lotID), nil)
	if err != nil {
		log.Warn("finish lot failed", zap.Error(err))
	}
	return err
}

func (g *groupRun) fail(ctx context.Context, reason string) domain.Outcome {
	return g.d.failGroup(ctx, g.log, g.items, g.snap.RetryLimit(), reason)
}

// post waits for the flow's rate limit and issues one provider call with the
// snapshot's headers and timeout.
func (g *groupRun) post(ctx context.Context, op, url string, body any) (*provider.Response, error) {
	if err := g.d.limiter.Wait(ctx, g.policy.flow); err != nil {
		return nil, err
	}
	return g.d.client.Post(ctx, provider.Request{
		Op:      op,
		URL:     url,
		Headers: g.snap.Headers(),
		Timeout: time.Duration(g.snap.Timeout()) * time.Second,
		Body:    body,
	})
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/lotdispatch/internal/domain"
	"github.com/notifyhub/lotdispatch/internal/queue"
	"github.com/notifyhub/lotdispatch/internal/repository"
)

// MaxBatchRecipients caps a single QueueBatch call.
const MaxBatchRecipients = 1000

// QueueService owns the write side of the dispatch queue: enqueueing
// recipients under a frozen config, maintaining contact profiles and
// requesting asynchronous dispatch cycles.
type QueueService struct {
	store    repository.QueueRepository
	contacts repository.ContactRepository
	triggers *queue.TriggerQueue
	logger   *zap.Logger
}

func NewQueueService(
	store repository.QueueRepository,
	contacts repository.ContactRepository,
	triggers *queue.TriggerQueue,
	logger *zap.Logger,
) *QueueService {
	return &QueueService{store: store, contacts: contacts, triggers: triggers, logger: logger}
}

// QueueContact snapshots cfg and persists one pending item for r.
// Items built from an identical config share a hash and travel in the same lot.
func (s *QueueService) QueueContact(ctx context.Context, cfg domain.ActionConfig, r domain.Recipient) (*domain.QueueItem, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	snap, hash, raw, err := freeze(cfg)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.ExistsByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("lookup config hash: %w", err)
	}
	if exists {
		s.logger.Debug("config already queued, joining existing group", zap.String("config_hash", hash))
	}

	item, err := s.insert(ctx, hash, raw, r)
	if err != nil {
		return nil, err
	}
	s.logger.Info("recipient queued",
		zap.Int64("id", item.ID),
		zap.String("config_hash", hash),
		zap.String("flow", string(snap.DispatchFlow())),
	)
	return item, nil
}

// QueueBatch queues every recipient under the same config. Recipients are
// validated up front and stored in one transaction, so a bad entry or a
// store failure queues nothing.
func (s *QueueService) QueueBatch(ctx context.Context, cfg domain.ActionConfig, recipients []domain.Recipient) (string, []*domain.QueueItem, error) {
	if len(recipients) == 0 {
		return "", nil, domain.ErrBatchEmpty
	}
	if len(recipients) > MaxBatchRecipients {
		return "", nil, domain.ErrBatchTooLarge
	}
	for i, r := range recipients {
		if err := r.Validate(); err != nil {
			return "", nil, fmt.Errorf("recipient %d: %w", i, err)
		}
	}
	_, hash, raw, err := freeze(cfg)
	if err != nil {
		return "", nil, err
	}

	items := make([]*domain.QueueItem, 0, len(recipients))
	for _, r := range recipients {
		item, err := newItem(hash, raw, r)
		if err != nil {
			return "", nil, err
		}
		items = append(items, item)
	}
	if err := s.store.InsertBatch(ctx, items); err != nil {
		return "", nil, fmt.Errorf("persist queue batch: %w", err)
	}
	s.logger.Info("batch queued", zap.String("config_hash", hash), zap.Int("items", len(items)))
	return hash, items, nil
}

// UpsertContact merges fields into the profile used for token substitution.
func (s *QueueService) UpsertContact(ctx context.Context, id string, fields map[string]any) error {
	if id == "" {
		return domain.ErrInvalidRecipient
	}
	if err := s.contacts.UpsertProfile(ctx, id, fields); err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

func (s *QueueService) GetContact(ctx context.Context, id string) (map[string]any, error) {
	return s.contacts.GetProfile(ctx, id)
}

func (s *QueueService) Stats(ctx context.Context) ([]domain.HashStat, error) {
	return s.store.Stats(ctx)
}

// TriggerDispatch asks the dispatch worker for a cycle without waiting for it.
// It returns the correlation id the cycle will log under.
func (s *QueueService) TriggerDispatch(configHash, correlationID string) (string, error) {
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	if err := s.triggers.Enqueue(queue.Trigger{ConfigHash: configHash, CorrelationID: correlationID}); err != nil {
		s.logger.Warn("dispatch trigger dropped", zap.String("config_hash", configHash), zap.Error(err))
		return "", err
	}
	return correlationID, nil
}

func (s *QueueService) insert(ctx context.Context, hash string, snapshot []byte, r domain.Recipient) (*domain.QueueItem, error) {
	item, err := newItem(hash, snapshot, r)
	if err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, item); err != nil {
		return nil, fmt.Errorf("persist queue item: %w", err)
	}
	return item, nil
}

func newItem(hash string, snapshot []byte, r domain.Recipient) (*domain.QueueItem, error) {
	payload, err := json.Marshal(r.Payload())
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return &domain.QueueItem{
		CreatedAt:      time.Now().UTC(),
		Payload:        payload,
		ConfigHash:     hash,
		ConfigSnapshot: snapshot,
	}, nil
}

func freeze(cfg domain.ActionConfig) (domain.ConfigSnapshot, string, []byte, error) {
	if cfg == nil {
		return domain.ConfigSnapshot{}, "", nil, domain.ErrInvalidConfig
	}
	snap := domain.BuildSnapshot(cfg)
	hash, err := snap.Hash()
	if err != nil {
		return snap, "", nil, fmt.Errorf("hash config: %w", err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return snap, "", nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return snap, hash, raw, nil
}

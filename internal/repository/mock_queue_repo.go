package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/notifyhub/lotdispatch/internal/domain"
)

// MockQueueRepository is a hand-written, in-memory implementation of
// QueueRepository used in unit tests.
type MockQueueRepository struct {
	mu     sync.RWMutex
	items  map[int64]*domain.QueueItem
	nextID int64

	// Optional error overrides, set in tests to simulate failure paths.
	InsertErr    error
	ListErr      error
	DeleteErr    error
	MarkRetryErr error
	// FailBatchAt makes InsertBatch fail on that 1-based position after
	// staging the earlier items; nothing is kept.
	FailBatchAt int
}

func NewMockQueueRepository() *MockQueueRepository {
	return &MockQueueRepository{items: make(map[int64]*domain.QueueItem)}
}

func (m *MockQueueRepository) Insert(_ context.Context, item *domain.QueueItem) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	item.ID = m.nextID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	clone := *item
	m.items[item.ID] = &clone
	return nil
}

func (m *MockQueueRepository) InsertBatch(_ context.Context, items []*domain.QueueItem) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := make([]domain.QueueItem, 0, len(items))
	for i, item := range items {
		if m.FailBatchAt == i+1 {
			return errors.New("mock: batch insert failed")
		}
		clone := *item
		clone.ID = m.nextID + int64(i) + 1
		if clone.CreatedAt.IsZero() {
			clone.CreatedAt = time.Now().UTC()
		}
		staged = append(staged, clone)
	}
	for i := range staged {
		it := staged[i]
		items[i].ID, items[i].CreatedAt = it.ID, it.CreatedAt
		m.items[it.ID] = &it
	}
	m.nextID += int64(len(staged))
	return nil
}

// Put stores item with its ID as given, for seeding test fixtures such as
// items that already carry a retry count.
func (m *MockQueueRepository) Put(item domain.QueueItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == 0 {
		m.nextID++
		item.ID = m.nextID
	} else if item.ID > m.nextID {
		m.nextID = item.ID
	}
	m.items[item.ID] = &item
}

func (m *MockQueueRepository) ListBy(_ context.Context, configHash string) ([]*domain.QueueItem, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.QueueItem, 0, len(m.items))
	for _, it := range m.items {
		if configHash != "" && it.ConfigHash != configHash {
			continue
		}
		clone := *it
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockQueueRepository) DeleteByIDs(_ context.Context, ids []int64) (int, error) {
	if m.DeleteErr != nil {
		return 0, m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := m.items[id]; ok {
			delete(m.items, id)
			n++
		}
	}
	return n, nil
}

func (m *MockQueueRepository) ExistsByHash(_ context.Context, configHash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, it := range m.items {
		if it.ConfigHash == configHash {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockQueueRepository) MarkRetry(_ context.Context, id int64, retryCount int, modifiedAt time.Time) error {
	if m.MarkRetryErr != nil {
		return m.MarkRetryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.items[id]; ok {
		if retryCount > it.RetryCount {
			it.RetryCount = retryCount
		}
		ts := modifiedAt
		it.ModifiedAt = &ts
	}
	return nil
}

func (m *MockQueueRepository) Stats(ctx context.Context) ([]domain.HashStat, error) {
	items, err := m.ListBy(ctx, "")
	if err != nil {
		return nil, err
	}
	index := map[string]int{}
	var stats []domain.HashStat
	for _, it := range items {
		i, ok := index[it.ConfigHash]
		if !ok {
			i = len(stats)
			index[it.ConfigHash] = i
			stats = append(stats, domain.HashStat{ConfigHash: it.ConfigHash})
		}
		stats[i].Items++
		if it.RetryCount > stats[i].MaxRetry {
			stats[i].MaxRetry = it.RetryCount
		}
	}
	return stats, nil
}

// Get returns a copy of one item, or ErrNotFound.
func (m *MockQueueRepository) Get(id int64) (*domain.QueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *it
	return &clone, nil
}

// Len reports how many items are pending.
func (m *MockQueueRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// MockContactRepository is the in-memory ContactRepository used in tests.
type MockContactRepository struct {
	mu       sync.RWMutex
	contacts map[string]map[string]any

	GetErr error
}

func NewMockContactRepository() *MockContactRepository {
	return &MockContactRepository{contacts: make(map[string]map[string]any)}
}

func (m *MockContactRepository) GetProfile(_ context.Context, id string) (map[string]any, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	fields, ok := m.contacts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := make(map[string]any, len(fields))
	for k, v := range fields {
		clone[k] = v
	}
	return clone, nil
}

func (m *MockContactRepository) UpsertProfile(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.contacts[id]
	if !ok {
		existing = make(map[string]any, len(fields))
		m.contacts[id] = existing
	}
	for k, v := range fields {
		existing[k] = v
	}
	return nil
}

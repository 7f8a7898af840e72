package editguard

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"editguard/pkg/guard"
)

const (
	defaultStoreCapacity   = 1000
	defaultStoreEvictBatch = 100
)

// MemoryStore is a bounded in-memory message ledger.
//
// Records are kept in insertion order. When capacity is reached the oldest
// batch is evicted before a new key is admitted, so memory stays bounded even
// without retention sweeps.
type MemoryStore struct {
	capacity   int
	evictBatch int

	mu    sync.Mutex
	order *list.List
	index map[guard.RecordKey]*list.Element
}

type storeEntry struct {
	key    guard.RecordKey
	record guard.MessageRecord
}

// StoreOption mutates memory store configuration.
type StoreOption func(*MemoryStore)

// WithCapacity sets the maximum number of retained records.
func WithCapacity(capacity int) StoreOption {
	return func(store *MemoryStore) {
		if capacity > 0 {
			store.capacity = capacity
		}
	}
}

// WithEvictBatch sets how many oldest records one eviction pass removes.
func WithEvictBatch(batch int) StoreOption {
	return func(store *MemoryStore) {
		if batch > 0 {
			store.evictBatch = batch
		}
	}
}

// NewMemoryStore creates a bounded in-memory ledger.
func NewMemoryStore(options ...StoreOption) *MemoryStore {
	store := &MemoryStore{
		capacity:   defaultStoreCapacity,
		evictBatch: defaultStoreEvictBatch,
		order:      list.New(),
		index:      make(map[guard.RecordKey]*list.Element),
	}
	for _, option := range options {
		option(store)
	}
	if store.evictBatch > store.capacity {
		store.evictBatch = store.capacity
	}

	return store
}

// Put inserts or overwrites the record stored under record.Key.
func (s *MemoryStore) Put(ctx context.Context, record guard.MessageRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ledger put: %w", err)
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("ledger put: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if element, exists := s.index[record.Key]; exists {
		entry := element.Value.(*storeEntry)
		entry.record = record
		return nil
	}

	if s.order.Len() >= s.capacity {
		s.evictOldestLocked(s.evictBatch)
	}

	element := s.order.PushBack(&storeEntry{
		key:    record.Key,
		record: record,
	})
	s.index[record.Key] = element

	return nil
}

// Get returns the record for key and whether it exists.
func (s *MemoryStore) Get(ctx context.Context, key guard.RecordKey) (guard.MessageRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return guard.MessageRecord{}, false, fmt.Errorf("ledger get: %w", err)
	}
	if err := key.Validate(); err != nil {
		return guard.MessageRecord{}, false, fmt.Errorf("ledger get: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	element, exists := s.index[key]
	if !exists {
		return guard.MessageRecord{}, false, nil
	}

	return element.Value.(*storeEntry).record, true, nil
}

// Delete removes the record for key if present.
func (s *MemoryStore) Delete(ctx context.Context, key guard.RecordKey) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ledger delete: %w", err)
	}
	if err := key.Validate(); err != nil {
		return fmt.Errorf("ledger delete: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	element, exists := s.index[key]
	if !exists {
		return nil
	}
	s.removeLocked(element)

	return nil
}

// PurgeOlderThan removes every record observed strictly before cutoff.
func (s *MemoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("ledger purge: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for element := s.order.Front(); element != nil; {
		next := element.Next()
		entry := element.Value.(*storeEntry)
		if entry.record.ObservedAt.Before(cutoff) {
			s.removeLocked(element)
			removed++
		}
		element = next
	}

	return removed, nil
}

// Len returns the number of retained records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.order.Len()
}

func (s *MemoryStore) evictOldestLocked(count int) {
	for removed := 0; removed < count; removed++ {
		front := s.order.Front()
		if front == nil {
			return
		}
		s.removeLocked(front)
	}
}

func (s *MemoryStore) removeLocked(element *list.Element) {
	entry := element.Value.(*storeEntry)
	s.order.Remove(element)
	delete(s.index, entry.key)
}

var _ guard.Ledger = (*MemoryStore)(nil)

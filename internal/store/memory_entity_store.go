package store

import (
	"context"
	"sync"
)

// MemoryEntityStore implements EntityStore on an ordered in-memory skip list
type MemoryEntityStore struct {
	mu   sync.RWMutex
	list *skipList
}

// NewMemoryEntityStore creates an empty in-memory entity store
func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{list: newSkipList()}
}

// Get returns the record stored under key
func (s *MemoryEntityStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.list.get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), record...), nil
}

// Put stores record under key
func (s *MemoryEntityStore) Put(ctx context.Context, key, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.list.put(key, record)
	return nil
}

// Range iterates a snapshot of the records in key order, so slow consumers
// do not hold the lock.
func (s *MemoryEntityStore) Range(ctx context.Context, start, end []byte, fn func(key, record []byte) bool) error {
	type pair struct{ key, record []byte }

	s.mu.RLock()
	snapshot := make([]pair, 0)
	s.list.ascend(start, end, func(key, value []byte) bool {
		snapshot = append(snapshot, pair{key: key, record: value})
		return true
	})
	s.mu.RUnlock()

	for _, p := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(p.key, p.record) {
			return nil
		}
	}
	return nil
}

// Len returns the number of stored keys, tombstones included
func (s *MemoryEntityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list.len()
}

// Ping always succeeds for the in-memory store
func (s *MemoryEntityStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryEntityStore) Close() error {
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/devrev/pairdb/replicator/internal/metrics"
	"github.com/devrev/pairdb/replicator/internal/model"
	"github.com/devrev/pairdb/replicator/internal/store"
	"go.uber.org/zap"
)

// EntityService performs this node's replica operations against its store.
// Values are kept as encoded entries so replicas can be merged by timestamp.
type EntityService struct {
	store   store.EntityStore
	metrics *metrics.Metrics
	logger  *zap.Logger

	// writeMu serialises the read-compare-write of Put and Delete
	writeMu sync.Mutex
}

// NewEntityService creates a new entity service
func NewEntityService(entityStore store.EntityStore, metrics *metrics.Metrics, logger *zap.Logger) *EntityService {
	return &EntityService{
		store:   entityStore,
		metrics: metrics,
		logger:  logger,
	}
}

// Get returns the encoded record for key. Tombstones are returned as found.
func (s *EntityService) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	record, err := s.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		s.metrics.RecordStoreOperation("get", "not_found")
		return nil, false, nil
	}
	if err != nil {
		s.metrics.RecordStoreOperation("get", "error")
		return nil, false, fmt.Errorf("failed to read key: %w", err)
	}
	s.metrics.RecordStoreOperation("get", "success")
	return record, true, nil
}

// Put stores value under key unless a newer entry is already present
func (s *EntityService) Put(ctx context.Context, key, value []byte, timestamp int64) error {
	return s.write(ctx, "put", key, model.Entry{Value: value, Timestamp: timestamp})
}

// Delete writes a tombstone for key
func (s *EntityService) Delete(ctx context.Context, key []byte, timestamp int64) error {
	return s.write(ctx, "delete", key, model.Entry{Timestamp: timestamp, IsTombstone: true})
}

func (s *EntityService) write(ctx context.Context, op string, key []byte, entry model.Entry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, found, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if found {
		existing, err := model.DecodeEntry(current)
		if err == nil && existing.Timestamp > entry.Timestamp {
			s.logger.Debug("Skipping stale write",
				zap.ByteString("key", key),
				zap.Int64("timestamp", entry.Timestamp),
				zap.Int64("stored_timestamp", existing.Timestamp))
			s.metrics.RecordStoreOperation(op, "stale")
			return nil
		}
	}

	if err := s.store.Put(ctx, key, entry.Encode()); err != nil {
		s.metrics.RecordStoreOperation(op, "error")
		return fmt.Errorf("failed to %s key: %w", op, err)
	}
	s.metrics.RecordStoreOperation(op, "success")
	return nil
}

// Range calls fn with every live entry whose key is in [start, end), in key
// order, until fn returns false. A nil end means no upper bound.
func (s *EntityService) Range(ctx context.Context, start, end []byte, fn func(key, value []byte) bool) error {
	err := s.store.Range(ctx, start, end, func(key, record []byte) bool {
		entry, err := model.DecodeEntry(record)
		if err != nil {
			s.logger.Warn("Skipping malformed record", zap.ByteString("key", key), zap.Error(err))
			return true
		}
		if entry.IsTombstone {
			return true
		}
		return fn(key, entry.Value)
	})
	if err != nil {
		s.metrics.RecordStoreOperation("range", "error")
		return fmt.Errorf("failed to scan range: %w", err)
	}
	s.metrics.RecordStoreOperation("range", "success")
	return nil
}

// LatestEntry picks the newest entry among replica records.
// Empty and malformed records are ignored. It returns false when no replica
// holds the key or the newest entry is a tombstone.
func LatestEntry(records [][]byte) (model.Entry, bool) {
	var latest model.Entry
	found := false
	for _, record := range records {
		if len(record) == 0 {
			continue
		}
		entry, err := model.DecodeEntry(record)
		if err != nil {
			continue
		}
		if !found || entry.Timestamp > latest.Timestamp {
			latest = entry
			found = true
		}
	}
	if !found || latest.IsTombstone {
		return model.Entry{}, false
	}
	return latest, true
}

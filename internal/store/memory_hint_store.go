package store

import (
	"context"
	"sync"
	"time"

	"github.com/devrev/pairdb/replicator/internal/model"
	"go.uber.org/zap"
)

// MemoryHintStore implements HintStore with per-node in-memory lists.
// When a node reaches maxHints the oldest hint is dropped.
type MemoryHintStore struct {
	mu       sync.RWMutex
	hints    map[string][]*model.Hint // nodeID -> hints, oldest first
	maxHints int
	logger   *zap.Logger
}

// NewMemoryHintStore creates a new in-memory hint store
func NewMemoryHintStore(maxHints int, logger *zap.Logger) *MemoryHintStore {
	if maxHints <= 0 {
		maxHints = 10000 // Default: 10k hints per node
	}
	return &MemoryHintStore{
		hints:    make(map[string][]*model.Hint),
		maxHints: maxHints,
		logger:   logger,
	}
}

// StoreHint appends a hint for its target node
func (s *MemoryHintStore) StoreHint(ctx context.Context, hint *model.Hint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodeHints := s.hints[hint.TargetNodeID]
	if len(nodeHints) >= s.maxHints {
		s.logger.Warn("Max hints reached for node, dropping oldest hint",
			zap.String("node_id", hint.TargetNodeID),
			zap.Int("max_hints", s.maxHints))
		last := copy(nodeHints, nodeHints[1:])
		nodeHints[last] = nil
		nodeHints = nodeHints[:last]
	}
	s.hints[hint.TargetNodeID] = append(nodeHints, hint)
	return nil
}

// GetHintsForNode returns up to limit hints for a node, oldest first
func (s *MemoryHintStore) GetHintsForNode(ctx context.Context, targetNodeID string, limit int) ([]*model.Hint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodeHints := s.hints[targetNodeID]
	if limit <= 0 || limit > len(nodeHints) {
		limit = len(nodeHints)
	}
	result := make([]*model.Hint, limit)
	copy(result, nodeHints[:limit])
	return result, nil
}

// GetHintCount returns the number of hints for a node
func (s *MemoryHintStore) GetHintCount(ctx context.Context, targetNodeID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.hints[targetNodeID])), nil
}

// CleanupOldHints deletes hints created before now-ttl
func (s *MemoryHintStore) CleanupOldHints(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for nodeID, nodeHints := range s.hints {
		kept := nodeHints[:0]
		for _, hint := range nodeHints {
			if hint.CreatedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, hint)
		}
		if len(kept) == 0 {
			delete(s.hints, nodeID)
		} else {
			s.hints[nodeID] = kept
		}
	}
	return removed, nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryHintStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryHintStore) Close() error {
	return nil
}

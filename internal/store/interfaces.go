package store

import (
	"context"
	"errors"
	"time"

	"github.com/devrev/pairdb/replicator/internal/model"
)

// ErrNotFound is returned when a key is not found
var ErrNotFound = errors.New("not found")

// EntityStore is the node's local storage backend for encoded entry records
type EntityStore interface {
	// Get returns the record stored under key or ErrNotFound
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Put stores record under key, replacing any previous record
	Put(ctx context.Context, key, record []byte) error

	// Range calls fn for every record with start <= key < end in byte-wise key order.
	// A nil end means no upper bound. Iteration stops when fn returns false.
	Range(ctx context.Context, start, end []byte, fn func(key, record []byte) bool) error

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// HintStore manages storage of hints for writes that missed a replica
type HintStore interface {
	// StoreHint stores a hint for a failed write to a node
	StoreHint(ctx context.Context, hint *model.Hint) error

	// GetHintsForNode retrieves hints for a node, oldest first
	GetHintsForNode(ctx context.Context, targetNodeID string, limit int) ([]*model.Hint, error)

	// GetHintCount returns the number of hints for a node
	GetHintCount(ctx context.Context, targetNodeID string) (int64, error)

	// CleanupOldHints deletes hints older than the specified TTL
	CleanupOldHints(ctx context.Context, ttl time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

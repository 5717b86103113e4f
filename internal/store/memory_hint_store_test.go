package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/devrev/pairdb/replicator/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newHint(node, key string, createdAt time.Time) *model.Hint {
	return &model.Hint{
		HintID:       node + "/" + key,
		TargetNodeID: node,
		Key:          []byte(key),
		Value:        []byte("value-" + key),
		CreatedAt:    createdAt,
	}
}

func TestMemoryHintStore_StoreAndGet(t *testing.T) {
	s := NewMemoryHintStore(10, zap.NewNop())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.StoreHint(ctx, newHint("node-1", "a", now)))
	require.NoError(t, s.StoreHint(ctx, newHint("node-1", "b", now)))
	require.NoError(t, s.StoreHint(ctx, newHint("node-2", "c", now)))

	hints, err := s.GetHintsForNode(ctx, "node-1", 0)
	require.NoError(t, err)
	require.Len(t, hints, 2)
	assert.Equal(t, []byte("a"), hints[0].Key)
	assert.Equal(t, []byte("b"), hints[1].Key)

	limited, err := s.GetHintsForNode(ctx, "node-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	count, err := s.GetHintCount(ctx, "node-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = s.GetHintCount(ctx, "unknown")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryHintStore_DropsOldestAtCapacity(t *testing.T) {
	s := NewMemoryHintStore(3, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.StoreHint(ctx, newHint("node-1", fmt.Sprintf("k%d", i), time.Now())))
	}

	hints, err := s.GetHintsForNode(ctx, "node-1", 0)
	require.NoError(t, err)
	require.Len(t, hints, 3)
	assert.Equal(t, []byte("k2"), hints[0].Key)
	assert.Equal(t, []byte("k4"), hints[2].Key)
}

func TestMemoryHintStore_DroppedHintIsReleased(t *testing.T) {
	s := NewMemoryHintStore(2, zap.NewNop())
	ctx := context.Background()

	first := newHint("node-1", "first", time.Now())
	require.NoError(t, s.StoreHint(ctx, first))
	require.NoError(t, s.StoreHint(ctx, newHint("node-1", "second", time.Now())))
	require.NoError(t, s.StoreHint(ctx, newHint("node-1", "third", time.Now())))

	s.mu.RLock()
	nodeHints := s.hints["node-1"]
	backing := nodeHints[:cap(nodeHints)]
	s.mu.RUnlock()

	assert.Len(t, nodeHints, 2)
	for _, h := range backing {
		assert.NotSame(t, first, h)
	}
}

func TestMemoryHintStore_CleanupOldHints(t *testing.T) {
	s := NewMemoryHintStore(10, zap.NewNop())
	ctx := context.Background()
	old := time.Now().Add(-2 * time.Hour)

	require.NoError(t, s.StoreHint(ctx, newHint("node-1", "old", old)))
	require.NoError(t, s.StoreHint(ctx, newHint("node-1", "new", time.Now())))
	require.NoError(t, s.StoreHint(ctx, newHint("node-2", "old", old)))

	removed, err := s.CleanupOldHints(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	hints, err := s.GetHintsForNode(ctx, "node-1", 0)
	require.NoError(t, err)
	require.Len(t, hints, 1)
	assert.Equal(t, []byte("new"), hints[0].Key)

	count, err := s.GetHintCount(ctx, "node-2")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestConnectWithRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := ConnectWithRetry(context.Background(), "test", 5*time.Second, func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		}, zap.NewNop())

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := ConnectWithRetry(ctx, "test", time.Minute, func(ctx context.Context) error {
			return errors.New("connection refused")
		}, zap.NewNop())

		assert.Error(t, err)
	})
}

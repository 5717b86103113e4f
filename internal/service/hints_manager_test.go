package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/devrev/pairdb/replicator/internal/metrics"
	"github.com/devrev/pairdb/replicator/internal/model"
	"github.com/devrev/pairdb/replicator/internal/store"
	"github.com/devrev/pairdb/replicator/internal/util/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockHintStore is a mock implementation of store.HintStore
type MockHintStore struct {
	mock.Mock
}

func (m *MockHintStore) StoreHint(ctx context.Context, hint *model.Hint) error {
	args := m.Called(ctx, hint)
	return args.Error(0)
}

func (m *MockHintStore) GetHintsForNode(ctx context.Context, targetNodeID string, limit int) ([]*model.Hint, error) {
	args := m.Called(ctx, targetNodeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Hint), args.Error(1)
}

func (m *MockHintStore) GetHintCount(ctx context.Context, targetNodeID string) (int64, error) {
	args := m.Called(ctx, targetNodeID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockHintStore) CleanupOldHints(ctx context.Context, ttl time.Duration) (int64, error) {
	args := m.Called(ctx, ttl)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockHintStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockHintStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newHintsPool() *workerpool.WorkerPool {
	return workerpool.NewWorkerPool(workerpool.Config{Name: "hints", MaxWorkers: 2, QueueSize: 16})
}

func TestHintsManager_RecordHint(t *testing.T) {
	hintStore := store.NewMemoryHintStore(100, zap.NewNop())
	m := metrics.NewMetrics(prometheus.NewRegistry())
	hm := NewHintsManager(hintStore, newHintsPool(), time.Second, m, zap.NewNop())
	defer hm.Stop(time.Second)

	key := []byte("key")
	value := []byte("value")
	hm.RecordHint("http://node-b", key, value, 99)
	value[0] = 'X'

	assert.Eventually(t, func() bool {
		count, _ := hintStore.GetHintCount(context.Background(), "http://node-b")
		return count == 1
	}, time.Second, 5*time.Millisecond)

	hints, total, err := hm.HintsForNode(context.Background(), "http://node-b", 10)
	require.NoError(t, err)
	require.Len(t, hints, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []byte("value"), hints[0].Value)
	assert.Equal(t, int64(99), hints[0].Timestamp)
	assert.NotEmpty(t, hints[0].HintID)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.HintsRecorded.WithLabelValues("http://node-b")) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHintsManager_StoreErrorIsDropped(t *testing.T) {
	hintStore := &MockHintStore{}
	hintStore.On("StoreHint", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	m := metrics.NewMetrics(prometheus.NewRegistry())
	hm := NewHintsManager(hintStore, newHintsPool(), time.Second, m, zap.NewNop())
	defer hm.Stop(time.Second)

	hm.RecordHint("http://node-b", []byte("k"), []byte("v"), 1)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.HintsDropped.WithLabelValues("store_error")) == 1
	}, time.Second, 5*time.Millisecond)
	hintStore.AssertExpectations(t)
}

func TestHintsManager_DropsWhenStopped(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	hm := NewHintsManager(store.NewMemoryHintStore(10, zap.NewNop()), newHintsPool(), time.Second, m, zap.NewNop())
	require.NoError(t, hm.Stop(time.Second))

	assert.NotPanics(t, func() {
		hm.RecordHint("http://node-b", []byte("k"), []byte("v"), 1)
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HintsDropped.WithLabelValues("stopped")))
}

func TestHintsManager_CleanupExpired(t *testing.T) {
	hintStore := &MockHintStore{}
	hintStore.On("CleanupOldHints", mock.Anything, time.Hour).Return(int64(4), nil)

	m := metrics.NewMetrics(prometheus.NewRegistry())
	hm := NewHintsManager(hintStore, newHintsPool(), time.Second, m, zap.NewNop())
	defer hm.Stop(time.Second)

	removed, err := hm.CleanupExpired(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.HintsExpired))
}

func TestHintsManager_StartCleanup(t *testing.T) {
	hintStore := &MockHintStore{}
	called := make(chan struct{}, 1)
	hintStore.On("CleanupOldHints", mock.Anything, time.Minute).
		Run(func(mock.Arguments) {
			select {
			case called <- struct{}{}:
			default:
			}
		}).
		Return(int64(0), nil)

	hm := NewHintsManager(hintStore, newHintsPool(), time.Second, metrics.NewMetrics(prometheus.NewRegistry()), zap.NewNop())
	hm.StartCleanup(10*time.Millisecond, time.Minute)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not run")
	}
	require.NoError(t, hm.Stop(time.Second))
}

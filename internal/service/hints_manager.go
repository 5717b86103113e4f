package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/devrev/pairdb/replicator/internal/metrics"
	"github.com/devrev/pairdb/replicator/internal/model"
	"github.com/devrev/pairdb/replicator/internal/store"
	"github.com/devrev/pairdb/replicator/internal/util/workerpool"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HintsManager persists hints for replicas that missed a write.
// Recording never blocks the caller; hints that cannot be queued are dropped.
type HintsManager struct {
	store        store.HintStore
	pool         *workerpool.WorkerPool
	storeTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHintsManager creates a hints manager writing through pool into hintStore
func NewHintsManager(
	hintStore store.HintStore,
	pool *workerpool.WorkerPool,
	storeTimeout time.Duration,
	metrics *metrics.Metrics,
	logger *zap.Logger,
) *HintsManager {
	if storeTimeout <= 0 {
		storeTimeout = 2 * time.Second
	}
	return &HintsManager{
		store:        hintStore,
		pool:         pool,
		storeTimeout: storeTimeout,
		metrics:      metrics,
		logger:       logger,
		stopCh:       make(chan struct{}),
	}
}

// RecordHint queues a hint for nodeID
func (h *HintsManager) RecordHint(nodeID string, key, value []byte, timestamp int64) {
	hint := &model.Hint{
		HintID:       uuid.New().String(),
		TargetNodeID: nodeID,
		Key:          append([]byte(nil), key...),
		Value:        append([]byte(nil), value...),
		Timestamp:    timestamp,
		CreatedAt:    time.Now(),
	}

	task := func(ctx context.Context) {
		storeCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
		defer cancel()

		if err := h.store.StoreHint(storeCtx, hint); err != nil {
			h.metrics.RecordHintDropped("store_error")
			h.logger.Error("Failed to store hint",
				zap.String("hint_id", hint.HintID),
				zap.String("node_id", nodeID),
				zap.Error(err))
			return
		}
		h.metrics.RecordHint(nodeID)
		h.logger.Debug("Stored hint",
			zap.String("hint_id", hint.HintID),
			zap.String("node_id", nodeID),
			zap.ByteString("key", hint.Key))
	}

	if err := h.pool.Submit(task); err != nil {
		reason := "queue_full"
		if errors.Is(err, workerpool.ErrPoolStopped) {
			reason = "stopped"
		}
		h.metrics.RecordHintDropped(reason)
		h.logger.Warn("Dropping hint",
			zap.String("node_id", nodeID),
			zap.ByteString("key", key),
			zap.Error(err))
	}
}

// HintsForNode returns up to limit pending hints for nodeID and the total count
func (h *HintsManager) HintsForNode(ctx context.Context, nodeID string, limit int) ([]*model.Hint, int64, error) {
	hints, err := h.store.GetHintsForNode(ctx, nodeID, limit)
	if err != nil {
		return nil, 0, err
	}
	count, err := h.store.GetHintCount(ctx, nodeID)
	if err != nil {
		return nil, 0, err
	}
	return hints, count, nil
}

// CleanupExpired removes hints older than ttl
func (h *HintsManager) CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	removed, err := h.store.CleanupOldHints(ctx, ttl)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		h.metrics.RecordHintsExpired(removed)
		h.logger.Info("Removed expired hints",
			zap.Int64("removed", removed),
			zap.Duration("ttl", ttl))
	}
	return removed, nil
}

// StartCleanup removes expired hints every interval until Stop is called
func (h *HintsManager) StartCleanup(interval, ttl time.Duration) {
	h.logger.Info("Starting hint cleanup",
		zap.Duration("interval", interval),
		zap.Duration("ttl", ttl))

	ticker := time.NewTicker(interval)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				if _, err := h.CleanupExpired(ctx, ttl); err != nil {
					h.logger.Error("Hint cleanup failed", zap.Error(err))
				}
				cancel()
			case <-h.stopCh:
				return
			}
		}
	}()
}

// Stop ends the cleanup loop and drains queued hints
func (h *HintsManager) Stop(timeout time.Duration) error {
	h.stopOnce.Do(func() { close(h.stopCh) })
	h.wg.Wait()
	err := h.pool.Stop(timeout)
	h.logger.Info("Hints manager stopped")
	return err
}

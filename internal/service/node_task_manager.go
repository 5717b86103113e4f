package service

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/devrev/pairdb/replicator/internal/metrics"
	"github.com/devrev/pairdb/replicator/internal/util/workerpool"
	"go.uber.org/zap"
)

// NodeTaskManager bounds the work in flight towards each remote node.
// Every node gets its own worker pool, created on first use and shared by
// all requests.
type NodeTaskManager struct {
	mu        sync.Mutex
	pools     map[string]*workerpool.WorkerPool
	stopped   bool
	workers   int
	queueSize int
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewNodeTaskManager creates a gate with workers and queueSize per node
func NewNodeTaskManager(workers, queueSize int, metrics *metrics.Metrics, logger *zap.Logger) *NodeTaskManager {
	return &NodeTaskManager{
		pools:     make(map[string]*workerpool.WorkerPool),
		workers:   workers,
		queueSize: queueSize,
		metrics:   metrics,
		logger:    logger,
	}
}

// TryAddTask queues task on nodeID's pool without blocking.
// It returns false when the pool is saturated or the manager is stopped.
func (m *NodeTaskManager) TryAddTask(nodeID string, task workerpool.Task) bool {
	pool := m.poolFor(nodeID)
	if pool == nil || !pool.TrySubmit(task) {
		m.metrics.RecordAdmissionRejection(nodeID)
		m.logger.Debug("Task rejected by node gate", zap.String("node_id", nodeID))
		return false
	}
	return true
}

func (m *NodeTaskManager) poolFor(nodeID string) *workerpool.WorkerPool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	pool, ok := m.pools[nodeID]
	if !ok {
		pool = workerpool.NewWorkerPool(workerpool.Config{
			Name:       "node:" + nodeID,
			MaxWorkers: m.workers,
			QueueSize:  m.queueSize,
			Logger:     m.logger,
		})
		m.pools[nodeID] = pool
		m.logger.Info("Created node task pool",
			zap.String("node_id", nodeID),
			zap.Int("workers", m.workers),
			zap.Int("queue_size", m.queueSize))
	}
	return pool
}

// Stats returns the stats of every node pool ordered by name
func (m *NodeTaskManager) Stats() []workerpool.Stats {
	m.mu.Lock()
	stats := make([]workerpool.Stats, 0, len(m.pools))
	for _, pool := range m.pools {
		stats = append(stats, pool.Stats())
	}
	m.mu.Unlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Stop rejects new tasks and stops every node pool
func (m *NodeTaskManager) Stop(timeout time.Duration) error {
	m.mu.Lock()
	m.stopped = true
	pools := make([]*workerpool.WorkerPool, 0, len(m.pools))
	for _, pool := range m.pools {
		pools = append(pools, pool)
	}
	m.mu.Unlock()

	var errs []error
	for _, pool := range pools {
		if err := pool.Stop(timeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

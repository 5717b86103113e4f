package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devrev/pairdb/replicator/internal/client"
	apperrors "github.com/devrev/pairdb/replicator/internal/errors"
	"github.com/devrev/pairdb/replicator/internal/metrics"
	"github.com/devrev/pairdb/replicator/internal/model"
	"github.com/devrev/pairdb/replicator/internal/util/workerpool"
	"go.uber.org/zap"
)

var (
	errAdmissionRejected = errors.New("replica admission rejected")
	errLocalRejected     = errors.New("local worker pool rejected task")
	errNoLocalWork       = errors.New("no local work for self replica")
)

// NodeMapper maps keys onto the ordered shard sequence
type NodeMapper interface {
	IndexForKey(key []byte) int
	Shards() []model.Shard
}

// TaskAdmitter admits work bound for a specific node
type TaskAdmitter interface {
	TryAddTask(nodeID string, task workerpool.Task) bool
}

// ReplicaCaller issues a replica request to a remote node
type ReplicaCaller interface {
	Call(ctx context.Context, shard model.Shard, req *model.ReplicaRequest) (*client.ReplicaResponse, error)
}

// HintRecorder records writes a replica missed. It must not block.
type HintRecorder interface {
	RecordHint(nodeID string, key, value []byte, timestamp int64)
}

// TaskRunner runs local replica work
type TaskRunner interface {
	TrySubmit(task workerpool.Task) bool
}

// LocalWork performs the node's own replica operation and returns the
// value to aggregate, if any.
type LocalWork func(ctx context.Context) ([]byte, error)

// ReplicatedExecutor dispatches a request to its replicas and resolves an
// Outcome once ack replicas succeeded or too many failed.
type ReplicatedExecutor struct {
	selfURL      string
	mapper       NodeMapper
	gate         TaskAdmitter
	caller       ReplicaCaller
	hints        HintRecorder
	local        TaskRunner
	successCodes model.SuccessCodes
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewReplicatedExecutor creates a new replicated executor
func NewReplicatedExecutor(
	selfURL string,
	mapper NodeMapper,
	gate TaskAdmitter,
	caller ReplicaCaller,
	hints HintRecorder,
	local TaskRunner,
	successCodes model.SuccessCodes,
	metrics *metrics.Metrics,
	logger *zap.Logger,
) *ReplicatedExecutor {
	return &ReplicatedExecutor{
		selfURL:      selfURL,
		mapper:       mapper,
		gate:         gate,
		caller:       caller,
		hints:        hints,
		local:        local,
		successCodes: successCodes,
		metrics:      metrics,
		logger:       logger,
	}
}

// Execute starts every replica attempt for req and returns without waiting.
// localWork runs when this node is one of the replicas. Attempts keep
// running after the outcome is resolved and after ctx is cancelled.
func (e *ReplicatedExecutor) Execute(ctx context.Context, req *model.ReplicaRequest, localWork LocalWork) *Outcome {
	shards := e.mapper.Shards()
	cs := newCoordination(e, req)

	if req.Ack < 1 || req.Ack > req.From || req.From > len(shards) {
		cs.outcome.resolve(nil, fmt.Errorf("%w: ack=%d from=%d shards=%d",
			apperrors.ErrInvalidParams, req.Ack, req.From, len(shards)))
		return cs.outcome
	}

	detached := context.WithoutCancel(ctx)
	primary := e.mapper.IndexForKey(req.Key)
	for i := 0; i < req.From; i++ {
		shard := shards[(primary+i)%len(shards)]
		if shard.URL == e.selfURL {
			e.dispatchLocal(detached, cs, localWork)
			continue
		}
		e.dispatchRemote(cs, shard)
	}

	return cs.outcome
}

func (e *ReplicatedExecutor) dispatchLocal(ctx context.Context, cs *coordination, localWork LocalWork) {
	if localWork == nil {
		cs.localFailure(errNoLocalWork)
		return
	}

	task := func(_ context.Context) {
		defer func() {
			if r := recover(); r != nil {
				cs.localFailure(fmt.Errorf("local work panicked: %v", r))
			}
		}()

		value, err := localWork(ctx)
		if err != nil {
			cs.localFailure(err)
			return
		}
		e.metrics.RecordReplicaAttempt(e.selfURL, "success")
		cs.success(value)
	}

	if !e.local.TrySubmit(task) {
		cs.localFailure(errLocalRejected)
	}
}

func (e *ReplicatedExecutor) dispatchRemote(cs *coordination, shard model.Shard) {
	nodeID := shard.NodeID()
	task := func(taskCtx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				cs.remoteFailure(nodeID, fmt.Errorf("replica call panicked: %v", r))
			}
		}()

		resp, err := e.caller.Call(taskCtx, shard, cs.req)
		if err != nil {
			cs.remoteFailure(nodeID, err)
			return
		}
		if !cs.successStatuses.Contains(resp.StatusCode) {
			cs.remoteFailure(nodeID, fmt.Errorf("unexpected status %d", resp.StatusCode))
			return
		}
		e.metrics.RecordReplicaAttempt(nodeID, "success")
		cs.success(resp.Body)
	}

	if !e.gate.TryAddTask(nodeID, task) {
		cs.remoteFailure(nodeID, errAdmissionRejected)
	}
}

// coordination is the per-request state shared by that request's attempts
type coordination struct {
	exec            *ReplicatedExecutor
	req             *model.ReplicaRequest
	successStatuses model.StatusSet
	started         time.Time

	results        []atomic.Pointer[[]byte] // indexed by success rank
	successCount   atomic.Int32
	completedCount atomic.Int32
	failureCount   atomic.Int32

	hintOnce sync.Once
	outcome  *Outcome
}

func newCoordination(e *ReplicatedExecutor, req *model.ReplicaRequest) *coordination {
	size := req.From
	if size < 0 {
		size = 0
	}
	return &coordination{
		exec:            e,
		req:             req,
		successStatuses: e.successCodes.For(req.Method),
		started:         time.Now(),
		results:         make([]atomic.Pointer[[]byte], size),
		outcome:         newOutcome(),
	}
}

func (cs *coordination) success(value []byte) {
	rank := cs.successCount.Add(1)
	cs.results[rank-1].Store(&value)

	if cs.completedCount.Add(1) == int32(cs.req.Ack) {
		cs.finish(cs.collect(), nil)
	}
}

// collect returns the values of every slot stored so far, in rank order
func (cs *coordination) collect() [][]byte {
	values := make([][]byte, 0, len(cs.results))
	for i := range cs.results {
		if v := cs.results[i].Load(); v != nil {
			values = append(values, *v)
		}
	}
	return values
}

func (cs *coordination) localFailure(cause error) {
	cs.exec.logger.Warn("Local replica attempt failed",
		zap.String("method", string(cs.req.Method)),
		zap.ByteString("key", cs.req.Key),
		zap.Error(cause))
	cs.exec.metrics.RecordReplicaAttempt(cs.exec.selfURL, "failure")
	cs.failure()
}

func (cs *coordination) remoteFailure(nodeID string, cause error) {
	cs.exec.logger.Warn("Replica attempt failed",
		zap.String("node_id", nodeID),
		zap.String("method", string(cs.req.Method)),
		zap.ByteString("key", cs.req.Key),
		zap.Error(cause))
	cs.exec.metrics.RecordReplicaAttempt(nodeID, "failure")

	if cs.req.Method == model.MethodWrite && cs.req.HasBody() {
		cs.hintOnce.Do(func() {
			cs.exec.hints.RecordHint(nodeID, cs.req.Key, cs.req.Body, cs.req.Timestamp)
		})
	}
	cs.failure()
}

func (cs *coordination) failure() {
	failures := cs.failureCount.Add(1)
	if int32(cs.req.From)-failures == int32(cs.req.Ack)-1 {
		cs.finish(nil, apperrors.ErrNotEnoughReplicas)
	}
}

func (cs *coordination) finish(values [][]byte, err error) {
	if !cs.outcome.resolve(values, err) {
		return
	}

	result := "success"
	if err != nil {
		result = "not_enough_replicas"
		cs.exec.logger.Warn("Not enough replicas",
			zap.String("method", string(cs.req.Method)),
			zap.ByteString("key", cs.req.Key),
			zap.Int("ack", cs.req.Ack),
			zap.Int("from", cs.req.From),
			zap.Int32("failures", cs.failureCount.Load()))
	}
	cs.exec.metrics.RecordResolution(string(cs.req.Method), result, time.Since(cs.started).Seconds())
}

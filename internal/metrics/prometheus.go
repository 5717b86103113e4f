package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Replication metrics
	ReplicaAttempts      *prometheus.CounterVec
	AdmissionRejections  *prometheus.CounterVec
	NotEnoughReplicas    *prometheus.CounterVec
	QuorumResolutionTime *prometheus.HistogramVec

	// Hint metrics
	HintsRecorded *prometheus.CounterVec
	HintsDropped  *prometheus.CounterVec
	HintsExpired  prometheus.Counter

	// Local store metrics
	StoreOperations *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replicator_requests_total",
				Help: "Total number of entity requests processed",
			},
			[]string{"method", "status"},
		),

		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "replicator_request_duration_seconds",
				Help:    "Duration of entity request processing",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),

		ReplicaAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replicator_replica_attempts_total",
				Help: "Total number of replica attempts by node and result",
			},
			[]string{"node_id", "result"},
		),

		AdmissionRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replicator_admission_rejections_total",
				Help: "Total number of tasks rejected by a node's admission gate",
			},
			[]string{"node_id"},
		),

		NotEnoughReplicas: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replicator_not_enough_replicas_total",
				Help: "Total number of requests that could not reach their ack count",
			},
			[]string{"method"},
		),

		QuorumResolutionTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "replicator_quorum_resolution_seconds",
				Help:    "Time from dispatch until the replicated outcome is resolved",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "result"},
		),

		HintsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replicator_hints_recorded_total",
				Help: "Total number of hints persisted",
			},
			[]string{"node_id"},
		),

		HintsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replicator_hints_dropped_total",
				Help: "Total number of hints dropped before they were persisted",
			},
			[]string{"reason"},
		),

		HintsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "replicator_hints_expired_total",
				Help: "Total number of hints removed by TTL cleanup",
			},
		),

		StoreOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replicator_store_operations_total",
				Help: "Total number of local entity store operations",
			},
			[]string{"operation", "status"},
		),
	}
}

// RecordRequest records a request metric
func (m *Metrics) RecordRequest(method, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration)
}

// RecordReplicaAttempt records the result of one replica attempt
func (m *Metrics) RecordReplicaAttempt(nodeID, result string) {
	m.ReplicaAttempts.WithLabelValues(nodeID, result).Inc()
}

// RecordAdmissionRejection records a task refused by a node's gate
func (m *Metrics) RecordAdmissionRejection(nodeID string) {
	m.AdmissionRejections.WithLabelValues(nodeID).Inc()
}

// RecordResolution records how a replicated request was resolved
func (m *Metrics) RecordResolution(method, result string, duration float64) {
	if result == "not_enough_replicas" {
		m.NotEnoughReplicas.WithLabelValues(method).Inc()
	}
	m.QuorumResolutionTime.WithLabelValues(method, result).Observe(duration)
}

// RecordHint records a persisted hint
func (m *Metrics) RecordHint(nodeID string) {
	m.HintsRecorded.WithLabelValues(nodeID).Inc()
}

// RecordHintDropped records a hint that was not persisted
func (m *Metrics) RecordHintDropped(reason string) {
	m.HintsDropped.WithLabelValues(reason).Inc()
}

// RecordHintsExpired records hints removed by cleanup
func (m *Metrics) RecordHintsExpired(count int64) {
	m.HintsExpired.Add(float64(count))
}

// RecordStoreOperation records a local store operation
func (m *Metrics) RecordStoreOperation(operation, status string) {
	m.StoreOperations.WithLabelValues(operation, status).Inc()
}

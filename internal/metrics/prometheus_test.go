package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordResolution(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordResolution("write", "success", 0.01)
	m.RecordResolution("write", "not_enough_replicas", 0.02)
	m.RecordResolution("write", "not_enough_replicas", 0.02)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotEnoughReplicas.WithLabelValues("write")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.NotEnoughReplicas.WithLabelValues("read")))
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAdmissionRejection("http://node-b")
	m.RecordHintDropped("queue_full")
	m.RecordHintsExpired(3)
	m.RecordReplicaAttempt("http://node-b", "failure")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdmissionRejections.WithLabelValues("http://node-b")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HintsDropped.WithLabelValues("queue_full")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.HintsExpired))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReplicaAttempts.WithLabelValues("http://node-b", "failure")))
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}

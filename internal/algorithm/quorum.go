package algorithm

import (
	"fmt"
	"strconv"

	apperrors "github.com/devrev/pairdb/replicator/internal/errors"
)

// QuorumCalculator resolves replication parameters against the cluster size
type QuorumCalculator struct {
	clusterSize int
}

// NewQuorumCalculator creates a new quorum calculator
func NewQuorumCalculator(clusterSize int) *QuorumCalculator {
	return &QuorumCalculator{clusterSize: clusterSize}
}

// CalculateQuorum returns the number of replicas required for quorum
func (q *QuorumCalculator) CalculateQuorum(totalReplicas int) int {
	return (totalReplicas / 2) + 1
}

// Resolve parses raw ack/from query values. An empty from defaults to the
// cluster size and an empty ack to a majority of from.
func (q *QuorumCalculator) Resolve(rawAck, rawFrom string) (ack, from int, err error) {
	from = q.clusterSize
	if rawFrom != "" {
		if from, err = strconv.Atoi(rawFrom); err != nil {
			return 0, 0, fmt.Errorf("from=%q: %w", rawFrom, apperrors.ErrInvalidParams)
		}
	}

	ack = q.CalculateQuorum(from)
	if rawAck != "" {
		if ack, err = strconv.Atoi(rawAck); err != nil {
			return 0, 0, fmt.Errorf("ack=%q: %w", rawAck, apperrors.ErrInvalidParams)
		}
	}

	if err := q.Validate(ack, from); err != nil {
		return 0, 0, err
	}
	return ack, from, nil
}

// Validate checks 1 <= ack <= from <= cluster size
func (q *QuorumCalculator) Validate(ack, from int) error {
	if ack < 1 || from < 1 || ack > from || from > q.clusterSize {
		return fmt.Errorf("ack=%d from=%d cluster=%d: %w", ack, from, q.clusterSize, apperrors.ErrInvalidParams)
	}
	return nil
}

package algorithm

import (
	"testing"

	apperrors "github.com/devrev/pairdb/replicator/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestQuorumCalculator_CalculateQuorum(t *testing.T) {
	q := NewQuorumCalculator(5)
	assert.Equal(t, 1, q.CalculateQuorum(1))
	assert.Equal(t, 2, q.CalculateQuorum(2))
	assert.Equal(t, 2, q.CalculateQuorum(3))
	assert.Equal(t, 3, q.CalculateQuorum(5))
}

func TestQuorumCalculator_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		ack     string
		from    string
		wantAck int
		wantFrm int
		wantErr bool
	}{
		{"defaults to cluster majority", "", "", 2, 3, false},
		{"explicit values", "1", "2", 1, 2, false},
		{"ack defaults from explicit from", "", "2", 2, 2, false},
		{"ack equals from", "3", "3", 3, 3, false},
		{"ack above from", "3", "2", 0, 0, true},
		{"from above cluster", "1", "4", 0, 0, true},
		{"zero ack", "0", "3", 0, 0, true},
		{"negative from", "1", "-1", 0, 0, true},
		{"not a number", "x", "3", 0, 0, true},
	}

	q := NewQuorumCalculator(3)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack, from, err := q.Resolve(tt.ack, tt.from)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidParams)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantAck, ack)
			assert.Equal(t, tt.wantFrm, from)
		})
	}
}

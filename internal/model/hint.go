package model

import "time"

// Hint records a write that a replica missed, to be replayed later
type Hint struct {
	HintID       string    `json:"hint_id"`
	TargetNodeID string    `json:"target_node_id"` // Node that missed the write
	Key          []byte    `json:"key"`
	Value        []byte    `json:"value"`
	Timestamp    int64     `json:"timestamp"` // Write timestamp of the value, unix millis
	CreatedAt    time.Time `json:"created_at"`
}

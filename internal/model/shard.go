package model

// Shard is one node of the cluster as seen by the node mapper.
// The URL doubles as the node identifier.
type Shard struct {
	URL  string
	Hash uint64 // position on the hash ring
}

// NodeID returns the identifier used for admission control and hints
func (s Shard) NodeID() string {
	return s.URL
}

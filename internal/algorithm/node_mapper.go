package algorithm

import (
	"errors"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/devrev/pairdb/replicator/internal/model"
)

// NodeMapper places every shard on a hash ring and maps keys to ring positions.
// The shard set is fixed for the mapper's lifetime; reloading means building a new mapper.
type NodeMapper struct {
	shards []model.Shard // sorted by Hash
}

// NewNodeMapper creates a node mapper for the given shard URLs
func NewNodeMapper(urls []string) (*NodeMapper, error) {
	if len(urls) == 0 {
		return nil, errors.New("node mapper needs at least one shard")
	}

	seen := make(map[string]bool, len(urls))
	shards := make([]model.Shard, 0, len(urls))
	for _, url := range urls {
		if seen[url] {
			continue
		}
		seen[url] = true
		shards = append(shards, model.Shard{
			URL:  url,
			Hash: xxhash.Sum64String(url),
		})
	}

	sort.Slice(shards, func(i, j int) bool {
		if shards[i].Hash == shards[j].Hash {
			return shards[i].URL < shards[j].URL
		}
		return shards[i].Hash < shards[j].Hash
	})

	return &NodeMapper{shards: shards}, nil
}

// IndexForKey returns the index of the primary shard for key
func (m *NodeMapper) IndexForKey(key []byte) int {
	keyHash := xxhash.Sum64(key)

	// First shard clockwise from the key
	idx := sort.Search(len(m.shards), func(i int) bool {
		return m.shards[i].Hash >= keyHash
	})

	// Wrap around if necessary
	if idx >= len(m.shards) {
		idx = 0
	}
	return idx
}

// Shards returns the ring-ordered shard list. Callers must not modify it.
func (m *NodeMapper) Shards() []model.Shard {
	return m.shards
}

// ShardCount returns the number of shards in the ring
func (m *NodeMapper) ShardCount() int {
	return len(m.shards)
}

package store

import (
	"bytes"
	"math/rand"
)

const (
	maxLevel    = 16
	probability = 0.5
)

type skipListNode struct {
	key     []byte
	value   []byte
	forward []*skipListNode
}

// skipList keeps byte keys in lexicographic order. It is not safe for
// concurrent use; MemoryEntityStore guards it.
type skipList struct {
	head  *skipListNode
	level int
	size  int
}

func newSkipList() *skipList {
	return &skipList{
		head: &skipListNode{forward: make([]*skipListNode, maxLevel)},
	}
}

func (sl *skipList) randomLevel() int {
	level := 0
	for rand.Float64() < probability && level < maxLevel-1 {
		level++
	}
	return level
}

// seek returns the last node whose key is < key on every level
func (sl *skipList) seek(key []byte, update []*skipListNode) *skipListNode {
	current := sl.head
	for i := sl.level; i >= 0; i-- {
		for current.forward[i] != nil && bytes.Compare(current.forward[i].key, key) < 0 {
			current = current.forward[i]
		}
		if update != nil {
			update[i] = current
		}
	}
	return current
}

// put adds or replaces the value for key. Key and value are copied.
func (sl *skipList) put(key, value []byte) {
	update := make([]*skipListNode, maxLevel)
	next := sl.seek(key, update).forward[0]

	if next != nil && bytes.Equal(next.key, key) {
		next.value = append([]byte(nil), value...)
		return
	}

	newLevel := sl.randomLevel()
	if newLevel > sl.level {
		for i := sl.level + 1; i <= newLevel; i++ {
			update[i] = sl.head
		}
		sl.level = newLevel
	}

	node := &skipListNode{
		key:     append([]byte(nil), key...),
		value:   append([]byte(nil), value...),
		forward: make([]*skipListNode, newLevel+1),
	}
	for i := 0; i <= newLevel; i++ {
		node.forward[i] = update[i].forward[i]
		update[i].forward[i] = node
	}
	sl.size++
}

func (sl *skipList) get(key []byte) ([]byte, bool) {
	next := sl.seek(key, nil).forward[0]
	if next != nil && bytes.Equal(next.key, key) {
		return next.value, true
	}
	return nil, false
}

// ascend calls fn for keys in [start, end) in order until fn returns false.
// A nil end means no upper bound.
func (sl *skipList) ascend(start, end []byte, fn func(key, value []byte) bool) {
	for node := sl.seek(start, nil).forward[0]; node != nil; node = node.forward[0] {
		if end != nil && bytes.Compare(node.key, end) >= 0 {
			return
		}
		if !fn(node.key, node.value) {
			return
		}
	}
}

func (sl *skipList) len() int {
	return sl.size
}

package seqgan

import (
	"container/list"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"seqgan-go/tensor"
)

// MemoryMemo caches encoder outputs keyed by the source token ids of a
// batch, so re-encoding identical sources (repeated prompts, evaluation
// reruns) is skipped. Bounded, least-recently-used eviction.
type MemoryMemo struct {
	capacity int
	entries  map[uint64]*list.Element
	order    *list.List
}

type memoEntry struct {
	key     uint64
	memory  *tensor.Tensor
	padMask [][]bool
}

// NewMemoryMemo creates a memo with the given capacity; 0 disables caching
func NewMemoryMemo(capacity int) *MemoryMemo {
	return &MemoryMemo{
		capacity: capacity,
		entries:  make(map[uint64]*list.Element),
		order:    list.New(),
	}
}

// Key hashes a batch of source token rows. Row lengths are folded in so
// [1,2]+[3] and [1]+[2,3] hash differently.
func (m *MemoryMemo) Key(srcRows [][]int) uint64 {
	h := xxhash.New()
	buf := make([]byte, 4)

	for _, row := range srcRows {
		binary.LittleEndian.PutUint32(buf, uint32(len(row)))
		h.Write(buf)
		for _, tokenID := range row {
			binary.LittleEndian.PutUint32(buf, uint32(tokenID))
			h.Write(buf)
		}
	}

	return h.Sum64()
}

// Get returns the cached memory and padding mask for a key
func (m *MemoryMemo) Get(key uint64) (*tensor.Tensor, [][]bool, bool) {
	elem, ok := m.entries[key]
	if !ok {
		return nil, nil, false
	}
	m.order.MoveToFront(elem)
	entry := elem.Value.(*memoEntry)
	return entry.memory, entry.padMask, true
}

// Put stores an encoder output, evicting the least recently used entry
// when over capacity.
func (m *MemoryMemo) Put(key uint64, memory *tensor.Tensor, padMask [][]bool) {
	if m.capacity == 0 {
		return
	}
	if elem, ok := m.entries[key]; ok {
		m.order.MoveToFront(elem)
		entry := elem.Value.(*memoEntry)
		entry.memory = memory
		entry.padMask = padMask
		return
	}

	elem := m.order.PushFront(&memoEntry{key: key, memory: memory, padMask: padMask})
	m.entries[key] = elem

	for m.order.Len() > m.capacity {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoEntry).key)
	}
}

// Len returns the number of cached entries
func (m *MemoryMemo) Len() int {
	return m.order.Len()
}

package seqgan

import (
	"testing"

	"seqgan-go/tensor"
)

func TestMemoKeyDistinguishesRowBoundaries(t *testing.T) {
	m := NewMemoryMemo(4)

	a := m.Key([][]int{{1, 2}, {3}})
	b := m.Key([][]int{{1}, {2, 3}})
	if a == b {
		t.Error("keys for different row splits of the same tokens collide")
	}

	if m.Key([][]int{{1, 2}, {3}}) != a {
		t.Error("key is not deterministic")
	}
}

func TestMemoGetPut(t *testing.T) {
	m := NewMemoryMemo(4)
	key := m.Key([][]int{{1, 2, 3}})

	if _, _, ok := m.Get(key); ok {
		t.Error("Get on empty memo reported a hit")
	}

	memory := tensor.New(1, 3, 8)
	mask := [][]bool{{false, false, false}}
	m.Put(key, memory, mask)

	got, gotMask, ok := m.Get(key)
	if !ok {
		t.Fatal("Get missed after Put")
	}
	if got != memory {
		t.Error("Get returned a different tensor")
	}
	if len(gotMask) != 1 {
		t.Errorf("mask batch %d, want 1", len(gotMask))
	}
}

func TestMemoEvictsLeastRecentlyUsed(t *testing.T) {
	m := NewMemoryMemo(2)

	keys := make([]uint64, 3)
	for i := range keys {
		keys[i] = m.Key([][]int{{i + 10}})
		m.Put(keys[i], tensor.New(1, 1, 4), [][]bool{{false}})
		if i == 1 {
			// Touch the first entry so the second becomes the LRU.
			m.Get(keys[0])
		}
	}

	if m.Len() != 2 {
		t.Fatalf("memo holds %d entries, want 2", m.Len())
	}
	if _, _, ok := m.Get(keys[0]); !ok {
		t.Error("recently used entry was evicted")
	}
	if _, _, ok := m.Get(keys[1]); ok {
		t.Error("least recently used entry survived")
	}
	if _, _, ok := m.Get(keys[2]); !ok {
		t.Error("newest entry was evicted")
	}
}

func TestMemoZeroCapacityDisabled(t *testing.T) {
	m := NewMemoryMemo(0)
	key := m.Key([][]int{{1}})
	m.Put(key, tensor.New(1, 1, 4), [][]bool{{false}})

	if m.Len() != 0 {
		t.Errorf("disabled memo holds %d entries", m.Len())
	}
	if _, _, ok := m.Get(key); ok {
		t.Error("disabled memo returned a hit")
	}
}

package transformer

import (
	"testing"
)

func TestEmbeddingsPositionOffset(t *testing.T) {
	e := NewEmbeddings(10, 8, 16)
	for i := range e.Weight.Data {
		e.Weight.Data[i] = float32(i%7) * 0.1
	}

	// Embedding a row and embedding its tokens one at a time with the right
	// start positions must agree element for element.
	row := []int{3, 4, 5}
	full, err := e.Encode([][]int{row}, 0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	for pos, id := range row {
		single, err := e.Encode([][]int{{id}}, pos)
		if err != nil {
			t.Fatalf("Encode at position %d failed: %v", pos, err)
		}
		for j := 0; j < 8; j++ {
			if single.Data[j] != full.Data[pos*8+j] {
				t.Fatalf("position %d dim %d: single %v, full %v", pos, j, single.Data[j], full.Data[pos*8+j])
			}
		}
	}
}

func TestEmbeddingsErrors(t *testing.T) {
	e := NewEmbeddings(10, 8, 4)

	if _, err := e.Encode([][]int{}, 0); err == nil {
		t.Error("expected error for empty batch")
	}
	if _, err := e.Encode([][]int{{1, 2}, {3}}, 0); err == nil {
		t.Error("expected error for ragged rows")
	}
	if _, err := e.Encode([][]int{{1, 2, 3}}, 2); err == nil {
		t.Error("expected error for positions past max length")
	}
	if _, err := e.Encode([][]int{{10}}, 0); err == nil {
		t.Error("expected error for out-of-range token id")
	}
	if _, err := e.Encode([][]int{{-1}}, 0); err == nil {
		t.Error("expected error for negative token id")
	}
}

func TestCausalMask(t *testing.T) {
	mask := CausalMask(3)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := mask.Data[i*3+j]
			if j <= i && v != 0 {
				t.Errorf("mask[%d][%d] = %v, want 0", i, j, v)
			}
			if j > i && v == 0 {
				t.Errorf("mask[%d][%d] = 0, want -inf", i, j)
			}
		}
	}
}

func TestPadMask(t *testing.T) {
	mask := PadMask([][]int{{5, 6, 0, 0}, {7, 0, 8, 0}}, 0)

	want := [][]bool{{false, false, true, true}, {false, true, false, true}}
	for b := range want {
		for i := range want[b] {
			if mask[b][i] != want[b][i] {
				t.Errorf("mask[%d][%d] = %v, want %v", b, i, mask[b][i], want[b][i])
			}
		}
	}
}

package seqgan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPairs(t *testing.T) {
	content := `[
  {"src": "what is your name", "trg": "my name is sam"},
  {"src": "how are you", "trg": "i am fine"}
]`
	path := filepath.Join(t.TempDir(), "test.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}

	pairs, err := LoadPairs(path)
	if err != nil {
		t.Fatalf("LoadPairs failed: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(pairs))
	}
	if pairs[0].Src != "what is your name" || pairs[0].Trg != "my name is sam" {
		t.Errorf("first pair %+v", pairs[0])
	}
}

func TestLoadPairsErrors(t *testing.T) {
	if _, err := LoadPairs("/nonexistent/data.json"); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	if _, err := LoadPairs(path); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestPadBatch(t *testing.T) {
	rows := [][]int{{1, 2, 3}, {4}, {5, 6}}
	padded := PadBatch(rows, 0)

	want := [][]int{{1, 2, 3}, {4, 0, 0}, {5, 6, 0}}
	for i := range want {
		if len(padded[i]) != 3 {
			t.Fatalf("row %d length %d, want 3", i, len(padded[i]))
		}
		for j := range want[i] {
			if padded[i][j] != want[i][j] {
				t.Errorf("padded[%d][%d] = %d, want %d", i, j, padded[i][j], want[i][j])
			}
		}
	}

	// Originals untouched.
	if len(rows[1]) != 1 {
		t.Error("PadBatch modified its input")
	}
}

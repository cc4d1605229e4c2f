package seqgan

import (
	"encoding/json"
	"fmt"
	"os"
)

// Pair is one source/target example from a dataset split
type Pair struct {
	Src string `json:"src"`
	Trg string `json:"trg"`
}

// LoadPairs reads a dataset split: a JSON array of {src, trg} records
func LoadPairs(path string) ([]Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	var pairs []Pair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	return pairs, nil
}

// PadBatch right-pads token id rows to the length of the longest row.
// The input rows are not modified.
func PadBatch(rows [][]int, padID int) [][]int {
	maxLen := 0
	for _, row := range rows {
		if len(row) > maxLen {
			maxLen = len(row)
		}
	}

	padded := make([][]int, len(rows))
	for i, row := range rows {
		padded[i] = make([]int, maxLen)
		copy(padded[i], row)
		for j := len(row); j < maxLen; j++ {
			padded[i][j] = padID
		}
	}
	return padded
}

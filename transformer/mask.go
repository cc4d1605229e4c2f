package transformer

import (
	"math"

	"seqgan-go/tensor"
)

// CausalMask builds a [size, size] additive mask: 0 on and below the
// diagonal, -inf above it. It depends only on the sequence length and is
// rebuilt per call, never cached.
func CausalMask(size int) *tensor.Tensor {
	mask := tensor.New(size, size)
	negInf := float32(math.Inf(-1))
	for i := 0; i < size; i++ {
		for j := i + 1; j < size; j++ {
			mask.Data[i*size+j] = negInf
		}
	}
	return mask
}

// PadMask marks padding positions in a batch of token id rows.
// Rows must already be padded to equal length.
func PadMask(ids [][]int, padID int) [][]bool {
	mask := make([][]bool, len(ids))
	for b, row := range ids {
		mask[b] = make([]bool, len(row))
		for i, id := range row {
			mask[b][i] = id == padID
		}
	}
	return mask
}

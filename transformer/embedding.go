package transformer

import (
	"fmt"
	"math"

	"seqgan-go/tensor"
)

// Embeddings maps token ids to hidden states: a learned token embedding
// scaled by sqrt(hidden) plus fixed sinusoidal position encodings.
type Embeddings struct {
	Weight *tensor.Tensor // [vocab, hidden]
	posEnc *tensor.Tensor // [max_seq_len, hidden]
	hidden int
	scale  float32
}

// NewEmbeddings creates an embedding table with precomputed position encodings
func NewEmbeddings(vocabSize, hidden, maxSeqLen int) *Embeddings {
	return &Embeddings{
		Weight: tensor.New(vocabSize, hidden),
		posEnc: sinusoidalEncoding(maxSeqLen, hidden),
		hidden: hidden,
		scale:  float32(math.Sqrt(float64(hidden))),
	}
}

// Encode embeds a batch of equal-length token id rows starting at the given
// absolute position. Generation steps pass the current step index so a new
// token receives the same position encoding it would get in a full pass.
func (e *Embeddings) Encode(ids [][]int, startPos int) (*tensor.Tensor, error) {
	batch := len(ids)
	if batch == 0 {
		return nil, fmt.Errorf("embeddings: empty batch")
	}
	seqLen := len(ids[0])
	for b, row := range ids {
		if len(row) != seqLen {
			return nil, fmt.Errorf("embeddings: row %d length %d, want %d (pad first)", b, len(row), seqLen)
		}
	}
	if startPos+seqLen > e.posEnc.Shape[0] {
		return nil, fmt.Errorf("embeddings: positions [%d,%d) exceed max length %d", startPos, startPos+seqLen, e.posEnc.Shape[0])
	}

	vocab := e.Weight.Shape[0]
	result := tensor.New(batch, seqLen, e.hidden)
	for b, row := range ids {
		for s, id := range row {
			if id < 0 || id >= vocab {
				return nil, fmt.Errorf("embeddings: token id %d out of range [0,%d)", id, vocab)
			}
			dst := result.Data[(b*seqLen+s)*e.hidden:]
			tok := e.Weight.Data[id*e.hidden:]
			pos := e.posEnc.Data[(startPos+s)*e.hidden:]
			for j := 0; j < e.hidden; j++ {
				dst[j] = tok[j]*e.scale + pos[j]
			}
		}
	}
	return result, nil
}

func sinusoidalEncoding(maxLen, hidden int) *tensor.Tensor {
	pe := tensor.New(maxLen, hidden)
	for pos := 0; pos < maxLen; pos++ {
		for i := 0; i < hidden; i += 2 {
			angle := float64(pos) / math.Pow(10000, float64(i)/float64(hidden))
			pe.Data[pos*hidden+i] = float32(math.Sin(angle))
			if i+1 < hidden {
				pe.Data[pos*hidden+i+1] = float32(math.Cos(angle))
			}
		}
	}
	return pe
}

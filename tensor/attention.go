package tensor

import (
	"fmt"
	"math"
)

// MultiHeadAttention implements scaled dot-product multi-head attention.
// Query and key/value may come from different sequences, so the same
// primitive serves self-attention and cross-attention.
type MultiHeadAttention struct {
	NumHeads int
	HeadDim  int
	Hidden   int

	// Weights
	QWeight   *Tensor // [hidden, hidden]
	KWeight   *Tensor
	VWeight   *Tensor
	OutWeight *Tensor

	// Biases
	QBias   *Tensor // [hidden]
	KBias   *Tensor
	VBias   *Tensor
	OutBias *Tensor
}

// Forward computes attention from query [batch, Tq, hidden] over
// key/value [batch, Tk, hidden].
//
// attnMask is an optional [Tq, Tk] additive mask (0 = visible, -inf = hidden).
// keyPadMask is an optional [batch][Tk] mask; true marks padding keys that
// must receive zero attention weight.
//
// Returns the attended output [batch, Tq, hidden] and the attention
// weights [batch, heads, Tq, Tk].
func (mha *MultiHeadAttention) Forward(query, key, value *Tensor, attnMask *Tensor, keyPadMask [][]bool) (*Tensor, *Tensor, error) {
	if err := mha.checkShapes(query, key, value, attnMask, keyPadMask); err != nil {
		return nil, nil, err
	}

	batchSize := query.Shape[0]
	qLen := query.Shape[1]
	kLen := key.Shape[1]

	Q := mha.project(query, mha.QWeight, mha.QBias)
	K := mha.project(key, mha.KWeight, mha.KBias)
	V := mha.project(value, mha.VWeight, mha.VBias)

	// [batch, heads, seq, head_dim]
	Q = mha.splitHeads(Q, batchSize, qLen)
	K = mha.splitHeads(K, batchSize, kLen)
	V = mha.splitHeads(V, batchSize, kLen)

	scale := float32(1.0 / math.Sqrt(float64(mha.HeadDim)))
	negInf := float32(math.Inf(-1))

	scores := New(batchSize, mha.NumHeads, qLen, kLen)
	for b := 0; b < batchSize; b++ {
		for h := 0; h < mha.NumHeads; h++ {
			qOffset := (b*mha.NumHeads + h) * qLen * mha.HeadDim
			kOffset := (b*mha.NumHeads + h) * kLen * mha.HeadDim
			sOffset := (b*mha.NumHeads + h) * qLen * kLen

			for i := 0; i < qLen; i++ {
				for j := 0; j < kLen; j++ {
					sum := float32(0)
					for d := 0; d < mha.HeadDim; d++ {
						sum += Q.Data[qOffset+i*mha.HeadDim+d] * K.Data[kOffset+j*mha.HeadDim+d]
					}
					s := sum * scale
					if attnMask != nil {
						s += attnMask.Data[i*kLen+j]
					}
					if keyPadMask != nil && keyPadMask[b][j] {
						s = negInf
					}
					scores.Data[sOffset+i*kLen+j] = s
				}
			}
		}
	}

	weights := Softmax(scores)

	attended := New(batchSize, mha.NumHeads, qLen, mha.HeadDim)
	for b := 0; b < batchSize; b++ {
		for h := 0; h < mha.NumHeads; h++ {
			wOffset := (b*mha.NumHeads + h) * qLen * kLen
			vOffset := (b*mha.NumHeads + h) * kLen * mha.HeadDim
			aOffset := (b*mha.NumHeads + h) * qLen * mha.HeadDim

			for i := 0; i < qLen; i++ {
				for d := 0; d < mha.HeadDim; d++ {
					sum := float32(0)
					for j := 0; j < kLen; j++ {
						sum += weights.Data[wOffset+i*kLen+j] * V.Data[vOffset+j*mha.HeadDim+d]
					}
					attended.Data[aOffset+i*mha.HeadDim+d] = sum
				}
			}
		}
	}

	output := mha.combineHeads(attended, batchSize, qLen)
	output = mha.project(output, mha.OutWeight, mha.OutBias)

	return output, weights, nil
}

func (mha *MultiHeadAttention) checkShapes(query, key, value, attnMask *Tensor, keyPadMask [][]bool) error {
	for name, t := range map[string]*Tensor{"query": query, "key": key, "value": value} {
		if t == nil {
			return fmt.Errorf("attention: %s is nil", name)
		}
		if len(t.Shape) != 3 {
			return fmt.Errorf("attention: %s must be 3D, got shape %v", name, t.Shape)
		}
		if t.Shape[2] != mha.Hidden {
			return fmt.Errorf("attention: %s hidden dim %d, want %d", name, t.Shape[2], mha.Hidden)
		}
	}
	if query.Shape[0] != key.Shape[0] || key.Shape[0] != value.Shape[0] {
		return fmt.Errorf("attention: batch mismatch q=%d k=%d v=%d", query.Shape[0], key.Shape[0], value.Shape[0])
	}
	if key.Shape[1] != value.Shape[1] {
		return fmt.Errorf("attention: key length %d != value length %d", key.Shape[1], value.Shape[1])
	}
	if attnMask != nil {
		if len(attnMask.Shape) != 2 || attnMask.Shape[0] != query.Shape[1] || attnMask.Shape[1] != key.Shape[1] {
			return fmt.Errorf("attention: mask shape %v, want [%d %d]", attnMask.Shape, query.Shape[1], key.Shape[1])
		}
	}
	if keyPadMask != nil {
		if len(keyPadMask) != key.Shape[0] {
			return fmt.Errorf("attention: key padding mask batch %d, want %d", len(keyPadMask), key.Shape[0])
		}
		for b, row := range keyPadMask {
			if len(row) != key.Shape[1] {
				return fmt.Errorf("attention: key padding mask row %d length %d, want %d", b, len(row), key.Shape[1])
			}
		}
	}
	return nil
}

func (mha *MultiHeadAttention) project(x, weight, bias *Tensor) *Tensor {
	batchSize := x.Shape[0]
	seqLen := x.Shape[1]

	xFlat := x.Reshape(batchSize*seqLen, mha.Hidden)
	result := MatMul(xFlat, weight)

	if bias != nil {
		for i := 0; i < batchSize*seqLen; i++ {
			for j := 0; j < mha.Hidden; j++ {
				result.Data[i*mha.Hidden+j] += bias.Data[j]
			}
		}
	}

	return result.Reshape(batchSize, seqLen, mha.Hidden)
}

func (mha *MultiHeadAttention) splitHeads(x *Tensor, batchSize, seqLen int) *Tensor {
	// [batch, seq, hidden] -> [batch, heads, seq, head_dim]
	result := New(batchSize, mha.NumHeads, seqLen, mha.HeadDim)

	for b := 0; b < batchSize; b++ {
		for s := 0; s < seqLen; s++ {
			for h := 0; h < mha.NumHeads; h++ {
				srcIdx := b*seqLen*mha.Hidden + s*mha.Hidden + h*mha.HeadDim
				dstIdx := ((b*mha.NumHeads+h)*seqLen + s) * mha.HeadDim
				copy(result.Data[dstIdx:dstIdx+mha.HeadDim], x.Data[srcIdx:srcIdx+mha.HeadDim])
			}
		}
	}

	return result
}

func (mha *MultiHeadAttention) combineHeads(x *Tensor, batchSize, seqLen int) *Tensor {
	// [batch, heads, seq, head_dim] -> [batch, seq, hidden]
	result := New(batchSize, seqLen, mha.Hidden)

	for b := 0; b < batchSize; b++ {
		for h := 0; h < mha.NumHeads; h++ {
			for s := 0; s < seqLen; s++ {
				srcIdx := ((b*mha.NumHeads+h)*seqLen + s) * mha.HeadDim
				dstIdx := b*seqLen*mha.Hidden + s*mha.Hidden + h*mha.HeadDim
				copy(result.Data[dstIdx:dstIdx+mha.HeadDim], x.Data[srcIdx:srcIdx+mha.HeadDim])
			}
		}
	}

	return result
}

package transformer

import "seqgan-go/tensor"

// FeedForward implements the position-wise feed-forward sublayer
type FeedForward struct {
	W1     *tensor.Tensor // [hidden, ffn_dim]
	B1     *tensor.Tensor // [ffn_dim]
	W2     *tensor.Tensor // [ffn_dim, hidden]
	B2     *tensor.Tensor // [hidden]
	Hidden int
	FFNDim int
}

// Forward applies linear -> ReLU -> linear to every position independently
func (ffn *FeedForward) Forward(x *tensor.Tensor) *tensor.Tensor {
	batchSize := x.Shape[0]
	seqLen := x.Shape[1]

	xFlat := x.Reshape(batchSize*seqLen, ffn.Hidden)
	h := tensor.MatMul(xFlat, ffn.W1)

	if ffn.B1 != nil {
		for i := 0; i < batchSize*seqLen; i++ {
			for j := 0; j < ffn.FFNDim; j++ {
				h.Data[i*ffn.FFNDim+j] += ffn.B1.Data[j]
			}
		}
	}

	h = tensor.ReLU(h)
	out := tensor.MatMul(h, ffn.W2)

	if ffn.B2 != nil {
		for i := 0; i < batchSize*seqLen; i++ {
			for j := 0; j < ffn.Hidden; j++ {
				out.Data[i*ffn.Hidden+j] += ffn.B2.Data[j]
			}
		}
	}

	return out.Reshape(batchSize, seqLen, ffn.Hidden)
}

// LayerNormLayer wraps layer normalization with parameters
type LayerNormLayer struct {
	Weight *tensor.Tensor
	Bias   *tensor.Tensor
	Eps    float32
}

// Forward applies layer normalization
func (ln *LayerNormLayer) Forward(x *tensor.Tensor) *tensor.Tensor {
	return tensor.LayerNorm(x, ln.Weight, ln.Bias, ln.Eps)
}

package transformer

import (
	"fmt"

	"seqgan-go/tensor"
)

// EncoderLayer is one bidirectional self-attention block with post-norm
// residual connections.
type EncoderLayer struct {
	SelfAttn *tensor.MultiHeadAttention
	FFN      *FeedForward
	Norm1    *LayerNormLayer
	Norm2    *LayerNormLayer
}

// Forward transforms src [batch, S, hidden]; srcPadMask marks padding tokens
func (l *EncoderLayer) Forward(src *tensor.Tensor, srcPadMask [][]bool) (*tensor.Tensor, error) {
	attnOut, _, err := l.SelfAttn.Forward(src, src, src, nil, srcPadMask)
	if err != nil {
		return nil, fmt.Errorf("encoder self-attention: %w", err)
	}
	x := l.Norm1.Forward(tensor.Add(src, attnOut))

	ffnOut := l.FFN.Forward(x)
	x = l.Norm2.Forward(tensor.Add(x, ffnOut))

	return x, nil
}

// Encoder is an ordered stack of encoder layers. Its output (the memory) is
// computed once per request and read-only to the decoder.
type Encoder struct {
	Layers []*EncoderLayer
}

// Forward runs all layers in order over the embedded source sequence
func (e *Encoder) Forward(src *tensor.Tensor, srcPadMask [][]bool) (*tensor.Tensor, error) {
	if len(src.Shape) != 3 {
		return nil, fmt.Errorf("encoder: src must be 3D, got shape %v", src.Shape)
	}

	x := src
	for i, layer := range e.Layers {
		var err error
		x, err = layer.Forward(x, srcPadMask)
		if err != nil {
			return nil, fmt.Errorf("encoder layer %d: %w", i, err)
		}
	}
	return x, nil
}

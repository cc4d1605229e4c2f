package transformer

import (
	"fmt"

	"seqgan-go/tensor"
)

// DecoderLayer is one transformer block: causal self-attention,
// cross-attention to the encoder memory, and a feed-forward sublayer, each
// wrapped in a post-norm residual connection. It has two mutually exclusive
// forward modes; the caller picks the mode per call, the layer itself keeps
// no mode state.
type DecoderLayer struct {
	SelfAttn  *tensor.MultiHeadAttention
	CrossAttn *tensor.MultiHeadAttention
	FFN       *FeedForward
	Norm1     *LayerNormLayer
	Norm2     *LayerNormLayer
	Norm3     *LayerNormLayer
}

// Forward is the full-sequence mode used for teacher-forced scoring.
// Every position of tgt [batch, T, hidden] is computed under a T x T causal
// mask. A nil memory skips cross-attention entirely (decoder-only mode).
// Returns [batch, T, hidden].
func (l *DecoderLayer) Forward(tgt, memory *tensor.Tensor, tgtPadMask, memPadMask [][]bool) (*tensor.Tensor, error) {
	if len(tgt.Shape) != 3 {
		return nil, fmt.Errorf("decoder layer: tgt must be 3D, got shape %v", tgt.Shape)
	}

	causal := CausalMask(tgt.Shape[1])
	selfOut, _, err := l.SelfAttn.Forward(tgt, tgt, tgt, causal, tgtPadMask)
	if err != nil {
		return nil, fmt.Errorf("decoder self-attention: %w", err)
	}
	x := l.Norm1.Forward(tensor.Add(tgt, selfOut))

	if memory != nil {
		crossOut, _, err := l.CrossAttn.Forward(x, memory, memory, nil, memPadMask)
		if err != nil {
			return nil, fmt.Errorf("decoder cross-attention: %w", err)
		}
		x = l.Norm2.Forward(tensor.Add(x, crossOut))
	}

	ffnOut := l.FFN.Forward(x)
	return l.Norm3.Forward(tensor.Add(x, ffnOut)), nil
}

// Step is the incremental mode used during generation. Only the last
// position of tgt is new; the query is restricted to that position while
// self-attention keys and values span the whole tgt, so no causal mask is
// needed. Returns [batch, 1, hidden] for the newest position only.
//
// Running Step once per token over a prefix yields the same values, row for
// row, as one Forward call over that prefix.
func (l *DecoderLayer) Step(tgt, memory *tensor.Tensor, tgtPadMask, memPadMask [][]bool) (*tensor.Tensor, error) {
	if len(tgt.Shape) != 3 {
		return nil, fmt.Errorf("decoder layer: tgt must be 3D, got shape %v", tgt.Shape)
	}

	last := tensor.LastTimeStep(tgt)

	selfOut, _, err := l.SelfAttn.Forward(last, tgt, tgt, nil, tgtPadMask)
	if err != nil {
		return nil, fmt.Errorf("decoder self-attention: %w", err)
	}
	x := l.Norm1.Forward(tensor.Add(last, selfOut))

	if memory != nil {
		crossOut, _, err := l.CrossAttn.Forward(x, memory, memory, nil, memPadMask)
		if err != nil {
			return nil, fmt.Errorf("decoder cross-attention: %w", err)
		}
		x = l.Norm2.Forward(tensor.Add(x, crossOut))
	}

	ffnOut := l.FFN.Forward(x)
	return l.Norm3.Forward(tensor.Add(x, ffnOut)), nil
}

// Cache holds the growing per-layer context of one generation run. Entry i
// stores the history of layer i's inputs: entry 0 is the embedding history,
// entry i is layer i-1's output history. All entries have the same
// time-length at every step boundary. A cache belongs to exactly one
// generation run and is never shared between concurrent runs.
type Cache struct {
	layers []*tensor.Tensor
}

// NewCache creates an empty cache for a decoder with numLayers layers
func NewCache(numLayers int) *Cache {
	return &Cache{layers: make([]*tensor.Tensor, numLayers)}
}

// NumLayers returns the number of per-layer entries
func (c *Cache) NumLayers() int {
	return len(c.layers)
}

// Steps returns the number of time-steps folded into the cache so far
func (c *Cache) Steps() int {
	if len(c.layers) == 0 || c.layers[0] == nil {
		return 0
	}
	return c.layers[0].Shape[1]
}

// LayerLen returns the time-length of layer i's entry
func (c *Cache) LayerLen(i int) int {
	if c.layers[i] == nil {
		return 0
	}
	return c.layers[i].Shape[1]
}

// Decoder owns an ordered stack of decoder layers and orchestrates the cache
// bookkeeping across generation steps.
type Decoder struct {
	Layers []*DecoderLayer
}

// Forward is the no-cache path used during training and scoring: each
// layer's full-sequence output feeds the next layer. No cache is created or
// consulted.
func (d *Decoder) Forward(tgt, memory *tensor.Tensor, tgtPadMask, memPadMask [][]bool) (*tensor.Tensor, error) {
	x := tgt
	for i, layer := range d.Layers {
		var err error
		x, err = layer.Forward(x, memory, tgtPadMask, memPadMask)
		if err != nil {
			return nil, fmt.Errorf("decoder layer %d: %w", i, err)
		}
	}
	return x, nil
}

// Step is the cache path: one generation step. On the first call the cache
// may be nil (or empty) and tgt may carry a whole prefix; afterwards tgt
// must be exactly the newest token's embedding, [batch, 1, hidden].
//
// Each layer attends over the concatenation of its cached input history and
// its current input; the concatenated context becomes the updated cache
// entry, and the layer's newest-token output becomes the next layer's input.
// Layer i+1 therefore sees the full history at layer i's depth even though
// layer i itself only received the newest token.
//
// Returns the final layer's newest-token output [batch, 1, hidden] and the
// updated cache, every entry exactly one step longer (or, on a prefill call,
// longer by the prefix length).
func (d *Decoder) Step(tgt, memory *tensor.Tensor, memPadMask [][]bool, cache *Cache) (*tensor.Tensor, *Cache, error) {
	if len(tgt.Shape) != 3 {
		return nil, nil, fmt.Errorf("decoder step: tgt must be 3D, got shape %v", tgt.Shape)
	}
	if cache == nil {
		cache = NewCache(len(d.Layers))
	}
	if cache.NumLayers() != len(d.Layers) {
		return nil, nil, fmt.Errorf("decoder step: cache has %d layers, decoder has %d", cache.NumLayers(), len(d.Layers))
	}
	if cache.Steps() > 0 {
		if tgt.Shape[1] != 1 {
			return nil, nil, fmt.Errorf("decoder step: %d new time-steps with a non-empty cache; exactly one token may be appended per step", tgt.Shape[1])
		}
		if cache.layers[0].Shape[0] != tgt.Shape[0] {
			return nil, nil, fmt.Errorf("decoder step: batch %d does not match cached batch %d", tgt.Shape[0], cache.layers[0].Shape[0])
		}
	}
	if memory != nil && memory.Shape[0] != tgt.Shape[0] {
		return nil, nil, fmt.Errorf("decoder step: memory batch %d, tgt batch %d", memory.Shape[0], tgt.Shape[0])
	}

	// A multi-token first call is a prefill: every prefix position must be
	// computed (causally) so each layer's input history is fully recorded.
	prefill := cache.Steps() == 0 && tgt.Shape[1] > 1

	x := tgt
	for i, layer := range d.Layers {
		ctx := tensor.ConcatTime(cache.layers[i], x)
		cache.layers[i] = ctx

		var err error
		if prefill {
			x, err = layer.Forward(ctx, memory, nil, memPadMask)
		} else {
			x, err = layer.Step(ctx, memory, nil, memPadMask)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("decoder layer %d: %w", i, err)
		}
	}

	if prefill {
		x = tensor.LastTimeStep(x)
	}
	return x, cache, nil
}

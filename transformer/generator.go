package transformer

import (
	"fmt"

	"seqgan-go/tensor"
)

// Generator is the sequence-to-sequence model: source and target embeddings,
// encoder, decoder, and the output projection onto the vocabulary.
type Generator struct {
	Config   *Config
	SrcEmbed *Embeddings
	TgtEmbed *Embeddings
	Encoder  *Encoder
	Decoder  *Decoder

	OutWeight *tensor.Tensor // [hidden, vocab]
	OutBias   *tensor.Tensor // [vocab]
}

// NewGenerator builds the model structure with zero weights. Call
// InitWeights or LoadCheckpoint before using it.
func NewGenerator(cfg *Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("generator config: %w", err)
	}

	g := &Generator{
		Config:    cfg,
		SrcEmbed:  NewEmbeddings(cfg.VocabSize, cfg.Hidden, cfg.MaxSeqLen),
		TgtEmbed:  NewEmbeddings(cfg.VocabSize, cfg.Hidden, cfg.MaxSeqLen),
		Encoder:   &Encoder{},
		Decoder:   &Decoder{},
		OutWeight: tensor.New(cfg.Hidden, cfg.VocabSize),
		OutBias:   tensor.New(cfg.VocabSize),
	}

	for i := 0; i < cfg.EncLayers; i++ {
		g.Encoder.Layers = append(g.Encoder.Layers, &EncoderLayer{
			SelfAttn: newAttention(cfg),
			FFN:      newFeedForward(cfg),
			Norm1:    newLayerNorm(cfg),
			Norm2:    newLayerNorm(cfg),
		})
	}
	for i := 0; i < cfg.DecLayers; i++ {
		g.Decoder.Layers = append(g.Decoder.Layers, &DecoderLayer{
			SelfAttn:  newAttention(cfg),
			CrossAttn: newAttention(cfg),
			FFN:       newFeedForward(cfg),
			Norm1:     newLayerNorm(cfg),
			Norm2:     newLayerNorm(cfg),
			Norm3:     newLayerNorm(cfg),
		})
	}

	return g, nil
}

func newAttention(cfg *Config) *tensor.MultiHeadAttention {
	return &tensor.MultiHeadAttention{
		NumHeads:  cfg.NumHeads,
		HeadDim:   cfg.HeadDim(),
		Hidden:    cfg.Hidden,
		QWeight:   tensor.New(cfg.Hidden, cfg.Hidden),
		KWeight:   tensor.New(cfg.Hidden, cfg.Hidden),
		VWeight:   tensor.New(cfg.Hidden, cfg.Hidden),
		OutWeight: tensor.New(cfg.Hidden, cfg.Hidden),
		QBias:     tensor.New(cfg.Hidden),
		KBias:     tensor.New(cfg.Hidden),
		VBias:     tensor.New(cfg.Hidden),
		OutBias:   tensor.New(cfg.Hidden),
	}
}

func newFeedForward(cfg *Config) *FeedForward {
	return &FeedForward{
		W1:     tensor.New(cfg.Hidden, cfg.FFNDim),
		B1:     tensor.New(cfg.FFNDim),
		W2:     tensor.New(cfg.FFNDim, cfg.Hidden),
		B2:     tensor.New(cfg.Hidden),
		Hidden: cfg.Hidden,
		FFNDim: cfg.FFNDim,
	}
}

func newLayerNorm(cfg *Config) *LayerNormLayer {
	ln := &LayerNormLayer{
		Weight: tensor.New(cfg.Hidden),
		Bias:   tensor.New(cfg.Hidden),
		Eps:    cfg.NormEps,
	}
	for i := range ln.Weight.Data {
		ln.Weight.Data[i] = 1
	}
	return ln
}

// Encode embeds a padded batch of source rows and runs the encoder.
// Returns the memory and the source padding mask for cross-attention.
func (g *Generator) Encode(srcIDs [][]int) (*tensor.Tensor, [][]bool, error) {
	padMask := PadMask(srcIDs, g.Config.PadID)
	embedded, err := g.SrcEmbed.Encode(srcIDs, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("encode: %w", err)
	}
	memory, err := g.Encoder.Forward(embedded, padMask)
	if err != nil {
		return nil, nil, fmt.Errorf("encode: %w", err)
	}
	return memory, padMask, nil
}

// DecodeFull is the teacher-forced scoring path: the whole padded target
// batch in one causal pass, no cache. Returns logits [batch, T, vocab].
func (g *Generator) DecodeFull(tgtIDs [][]int, memory *tensor.Tensor, memPadMask [][]bool) (*tensor.Tensor, error) {
	tgtPadMask := PadMask(tgtIDs, g.Config.PadID)
	embedded, err := g.TgtEmbed.Encode(tgtIDs, 0)
	if err != nil {
		return nil, fmt.Errorf("decode full: %w", err)
	}
	hidden, err := g.Decoder.Forward(embedded, memory, tgtPadMask, memPadMask)
	if err != nil {
		return nil, fmt.Errorf("decode full: %w", err)
	}
	return g.Project(hidden), nil
}

// DecodeStep advances generation by one token per batch row. The cache
// supplies all context from earlier steps; pass nil on the first call.
// Returns logits [batch, vocab] for the newest position and the updated
// cache.
func (g *Generator) DecodeStep(lastTokens []int, memory *tensor.Tensor, memPadMask [][]bool, cache *Cache) (*tensor.Tensor, *Cache, error) {
	step := 0
	if cache != nil {
		step = cache.Steps()
	}

	ids := make([][]int, len(lastTokens))
	for i, tok := range lastTokens {
		ids[i] = []int{tok}
	}
	embedded, err := g.TgtEmbed.Encode(ids, step)
	if err != nil {
		return nil, nil, fmt.Errorf("decode step: %w", err)
	}

	hidden, cache, err := g.Decoder.Step(embedded, memory, memPadMask, cache)
	if err != nil {
		return nil, nil, fmt.Errorf("decode step: %w", err)
	}

	logits := g.Project(hidden)
	batch := logits.Shape[0]
	return logits.Reshape(batch, g.Config.VocabSize), cache, nil
}

// Project maps hidden states [batch, T, hidden] to logits [batch, T, vocab]
func (g *Generator) Project(hidden *tensor.Tensor) *tensor.Tensor {
	batch, seqLen := hidden.Shape[0], hidden.Shape[1]
	flat := hidden.Reshape(batch*seqLen, g.Config.Hidden)
	logits := tensor.MatMul(flat, g.OutWeight)
	vocab := g.Config.VocabSize
	for i := 0; i < batch*seqLen; i++ {
		for j := 0; j < vocab; j++ {
			logits.Data[i*vocab+j] += g.OutBias.Data[j]
		}
	}
	return logits.Reshape(batch, seqLen, vocab)
}

// Generate produces target sequences for a padded source batch with greedy
// decoding: encode once, start every row at BOS, then step the decoder until
// every row has emitted EOS or maxNewTokens is reached. All rows advance in
// lockstep; finished rows keep stepping and are truncated at their first EOS.
// Returned rows include BOS and, when produced, the terminating EOS.
func (g *Generator) Generate(srcIDs [][]int, maxNewTokens int) ([][]int, error) {
	if maxNewTokens <= 0 {
		return nil, fmt.Errorf("generate: maxNewTokens must be positive, got %d", maxNewTokens)
	}

	memory, memPadMask, err := g.Encode(srcIDs)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	batch := len(srcIDs)
	out := make([][]int, batch)
	last := make([]int, batch)
	done := make([]bool, batch)
	for b := range out {
		out[b] = []int{g.Config.BosID}
		last[b] = g.Config.BosID
	}

	var cache *Cache
	for step := 0; step < maxNewTokens; step++ {
		var logits *tensor.Tensor
		logits, cache, err = g.DecodeStep(last, memory, memPadMask, cache)
		if err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}

		allDone := true
		for b := 0; b < batch; b++ {
			tok := Argmax(logits.Data[b*g.Config.VocabSize : (b+1)*g.Config.VocabSize])
			last[b] = tok
			if !done[b] {
				out[b] = append(out[b], tok)
				if tok == g.Config.EosID {
					done[b] = true
				}
			}
			if !done[b] {
				allDone = false
			}
		}
		if allDone {
			break
		}
	}

	return out, nil
}

// Argmax returns the index of the largest logit
func Argmax(logits []float32) int {
	best := 0
	for i := 1; i < len(logits); i++ {
		if logits[i] > logits[best] {
			best = i
		}
	}
	return best
}

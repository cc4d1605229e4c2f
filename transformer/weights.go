package transformer

import (
	"math/rand"

	"seqgan-go/tensor"
)

// InitWeights fills all learnable parameters from a private RNG seeded with
// the given value. Process-global RNG state is never touched, so repeated or
// concurrent initializations are isolated and reproducible.
func (g *Generator) InitWeights(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	std := g.Config.InitStdDev

	fill := func(t *tensor.Tensor) {
		for i := range t.Data {
			t.Data[i] = float32(rng.NormFloat64() * std)
		}
	}

	fill(g.SrcEmbed.Weight)
	fill(g.TgtEmbed.Weight)
	fill(g.OutWeight)

	fillAttn := func(a *tensor.MultiHeadAttention) {
		fill(a.QWeight)
		fill(a.KWeight)
		fill(a.VWeight)
		fill(a.OutWeight)
	}

	for _, l := range g.Encoder.Layers {
		fillAttn(l.SelfAttn)
		fill(l.FFN.W1)
		fill(l.FFN.W2)
	}
	for _, l := range g.Decoder.Layers {
		fillAttn(l.SelfAttn)
		fillAttn(l.CrossAttn)
		fill(l.FFN.W1)
		fill(l.FFN.W2)
	}
}

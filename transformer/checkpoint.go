package transformer

import (
	"fmt"

	"seqgan-go/tensor"
)

// LoadCheckpoint loads generator weights from a safetensors file. Tensor
// names follow the export layout: "src_embed.weight", "tgt_embed.weight",
// "out_proj.weight"/"out_proj.bias", and per layer
// "encoder.N.<part>" / "decoder.N.<part>" where <part> is one of
// self_attn/cross_attn {q,k,v,out}_{weight,bias}, ffn {w1,b1,w2,b2}, or
// norm1/norm2/norm3 {weight,bias}.
//
// Attention exports that store a combined projection ("in_proj_weight",
// [hidden, 3*hidden]) are split into q/k/v on load.
func (g *Generator) LoadCheckpoint(path string) error {
	weights, err := tensor.LoadSafetensors(path)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	ld := &checkpointLoader{weights: weights}

	ld.assign("src_embed.weight", &g.SrcEmbed.Weight)
	ld.assign("tgt_embed.weight", &g.TgtEmbed.Weight)
	ld.assign("out_proj.weight", &g.OutWeight)
	ld.assign("out_proj.bias", &g.OutBias)

	for i, l := range g.Encoder.Layers {
		prefix := fmt.Sprintf("encoder.%d.", i)
		ld.assignAttention(prefix+"self_attn.", l.SelfAttn)
		ld.assignFFN(prefix+"ffn.", l.FFN)
		ld.assignNorm(prefix+"norm1.", l.Norm1)
		ld.assignNorm(prefix+"norm2.", l.Norm2)
	}
	for i, l := range g.Decoder.Layers {
		prefix := fmt.Sprintf("decoder.%d.", i)
		ld.assignAttention(prefix+"self_attn.", l.SelfAttn)
		ld.assignAttention(prefix+"cross_attn.", l.CrossAttn)
		ld.assignFFN(prefix+"ffn.", l.FFN)
		ld.assignNorm(prefix+"norm1.", l.Norm1)
		ld.assignNorm(prefix+"norm2.", l.Norm2)
		ld.assignNorm(prefix+"norm3.", l.Norm3)
	}

	if ld.err != nil {
		return fmt.Errorf("load checkpoint: %w", ld.err)
	}
	return nil
}

type checkpointLoader struct {
	weights map[string]*tensor.Tensor
	err     error
}

func (ld *checkpointLoader) assign(name string, target **tensor.Tensor) {
	if ld.err != nil {
		return
	}
	t, ok := ld.weights[name]
	if !ok {
		ld.err = fmt.Errorf("tensor not found: %s", name)
		return
	}
	if !tensor.SameShape(t, *target) {
		ld.err = fmt.Errorf("tensor %s has shape %v, want %v", name, t.Shape, (*target).Shape)
		return
	}
	*target = t
}

func (ld *checkpointLoader) assignAttention(prefix string, attn *tensor.MultiHeadAttention) {
	if ld.err != nil {
		return
	}

	// Combined QKV export: split [hidden, 3*hidden] into thirds.
	if combined, ok := ld.weights[prefix+"in_proj_weight"]; ok {
		ld.splitQKV(prefix, combined, attn)
	} else {
		ld.assign(prefix+"q_weight", &attn.QWeight)
		ld.assign(prefix+"k_weight", &attn.KWeight)
		ld.assign(prefix+"v_weight", &attn.VWeight)
		ld.assign(prefix+"q_bias", &attn.QBias)
		ld.assign(prefix+"k_bias", &attn.KBias)
		ld.assign(prefix+"v_bias", &attn.VBias)
	}

	ld.assign(prefix+"out_weight", &attn.OutWeight)
	ld.assign(prefix+"out_bias", &attn.OutBias)
}

func (ld *checkpointLoader) splitQKV(prefix string, combined *tensor.Tensor, attn *tensor.MultiHeadAttention) {
	hidden := attn.Hidden
	if len(combined.Shape) != 2 || combined.Shape[0] != hidden || combined.Shape[1] != 3*hidden {
		ld.err = fmt.Errorf("tensor %sin_proj_weight has shape %v, want [%d %d]", prefix, combined.Shape, hidden, 3*hidden)
		return
	}

	q := tensor.New(hidden, hidden)
	k := tensor.New(hidden, hidden)
	v := tensor.New(hidden, hidden)
	for i := 0; i < hidden; i++ {
		row := combined.Data[i*3*hidden:]
		copy(q.Data[i*hidden:], row[:hidden])
		copy(k.Data[i*hidden:], row[hidden:2*hidden])
		copy(v.Data[i*hidden:], row[2*hidden:3*hidden])
	}
	attn.QWeight, attn.KWeight, attn.VWeight = q, k, v

	if bias, ok := ld.weights[prefix+"in_proj_bias"]; ok {
		if bias.Size() != 3*hidden {
			ld.err = fmt.Errorf("tensor %sin_proj_bias has %d elements, want %d", prefix, bias.Size(), 3*hidden)
			return
		}
		attn.QBias = &tensor.Tensor{Data: bias.Data[:hidden], Shape: []int{hidden}}
		attn.KBias = &tensor.Tensor{Data: bias.Data[hidden : 2*hidden], Shape: []int{hidden}}
		attn.VBias = &tensor.Tensor{Data: bias.Data[2*hidden : 3*hidden], Shape: []int{hidden}}
	} else {
		ld.assign(prefix+"q_bias", &attn.QBias)
		ld.assign(prefix+"k_bias", &attn.KBias)
		ld.assign(prefix+"v_bias", &attn.VBias)
	}
}

func (ld *checkpointLoader) assignFFN(prefix string, ffn *FeedForward) {
	ld.assign(prefix+"w1", &ffn.W1)
	ld.assign(prefix+"b1", &ffn.B1)
	ld.assign(prefix+"w2", &ffn.W2)
	ld.assign(prefix+"b2", &ffn.B2)
}

func (ld *checkpointLoader) assignNorm(prefix string, ln *LayerNormLayer) {
	ld.assign(prefix+"weight", &ln.Weight)
	ld.assign(prefix+"bias", &ln.Bias)
}

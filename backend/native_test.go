package backend

import (
	"testing"

	"seqgan-go/seqgan"
	"seqgan-go/transformer"
)

func smallModelConfig() *transformer.Config {
	return &transformer.Config{
		VocabSize:  50,
		Hidden:     16,
		NumHeads:   2,
		FFNDim:     32,
		EncLayers:  2,
		DecLayers:  2,
		MaxSeqLen:  64,
		PadID:      0,
		BosID:      1,
		EosID:      2,
		NormEps:    1e-5,
		InitSeed:   1,
		InitStdDev: 0.02,
	}
}

func TestNativeRunnerEndToEnd(t *testing.T) {
	config := seqgan.NewConfig("", seqgan.WithMaxBatchSize(2), seqgan.WithDefaultMaxNewTokens(8), seqgan.WithSeed(1))
	runner, err := NewNativeRunner(smallModelConfig(), config)
	if err != nil {
		t.Fatalf("NewNativeRunner failed: %v", err)
	}

	engine := seqgan.NewEngine(config, runner, seqgan.NewMockTokenizer(config.EosID))
	defer engine.Close()

	params := seqgan.NewSamplingParams(seqgan.WithMaxNewTokens(8))
	prompts := []interface{}{[]int{5, 6, 7}, []int{8, 9}}

	outputs, err := engine.Generate(prompts, params, false)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("got %d outputs, want 2", len(outputs))
	}
	for i, out := range outputs {
		if len(out.TokenIDs) > 8 {
			t.Errorf("prompt %d: %d tokens, over the 8-token limit", i, len(out.TokenIDs))
		}
		for _, tok := range out.TokenIDs {
			if tok < 0 || tok >= 50 {
				t.Errorf("prompt %d: token %d outside the vocabulary", i, tok)
			}
		}
	}
}

// Greedy generation through the engine must match the generator's own
// greedy loop, since both run the same incremental decoder.
func TestNativeRunnerMatchesGeneratorGreedy(t *testing.T) {
	modelConfig := smallModelConfig()
	config := seqgan.NewConfig("", seqgan.WithMaxBatchSize(1), seqgan.WithDefaultMaxNewTokens(6), seqgan.WithSeed(1))

	runner, err := NewNativeRunner(modelConfig, config)
	if err != nil {
		t.Fatalf("NewNativeRunner failed: %v", err)
	}
	engine := seqgan.NewEngine(config, runner, seqgan.NewMockTokenizer(config.EosID))
	defer engine.Close()

	src := []int{5, 6, 7}
	params := seqgan.NewSamplingParams(seqgan.WithMaxNewTokens(6))
	outputs, err := engine.Generate([]interface{}{src}, params, false)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	reference, err := transformer.NewGenerator(modelConfig)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	reference.InitWeights(config.Seed)

	refRows, err := reference.Generate([][]int{src}, 6)
	if err != nil {
		t.Fatalf("reference Generate failed: %v", err)
	}

	// Strip BOS and a trailing EOS from the reference row to match the
	// engine's completion format.
	ref := refRows[0][1:]
	if len(ref) > 0 && ref[len(ref)-1] == modelConfig.EosID {
		ref = ref[:len(ref)-1]
	}

	got := outputs[0].TokenIDs
	if len(got) != len(ref) {
		t.Fatalf("engine produced %v, reference %v", got, ref)
	}
	for i := range ref {
		if got[i] != ref[i] {
			t.Fatalf("token %d: engine %d, reference %d", i, got[i], ref[i])
		}
	}
}

func TestNativeRunnerDeterministic(t *testing.T) {
	run := func() []int {
		config := seqgan.NewConfig("", seqgan.WithDefaultMaxNewTokens(6), seqgan.WithSeed(3))
		runner, err := NewNativeRunner(smallModelConfig(), config)
		if err != nil {
			t.Fatalf("NewNativeRunner failed: %v", err)
		}
		engine := seqgan.NewEngine(config, runner, seqgan.NewMockTokenizer(config.EosID))
		defer engine.Close()

		params := seqgan.NewSamplingParams(seqgan.WithTemperature(0.8), seqgan.WithMaxNewTokens(6))
		outputs, err := engine.Generate([]interface{}{[]int{5, 6}}, params, false)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		return outputs[0].TokenIDs
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("runs differ in length: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("token %d differs between identically seeded runs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestNativeRunnerRejectsDecodeBeforePrefill(t *testing.T) {
	config := seqgan.NewConfig("", seqgan.WithSeed(1))
	runner, err := NewNativeRunner(smallModelConfig(), config)
	if err != nil {
		t.Fatalf("NewNativeRunner failed: %v", err)
	}

	seq := seqgan.NewSequence([]int{5}, config.BosID, seqgan.NewSamplingParams())
	if _, err := runner.Run([]*seqgan.Sequence{seq}, false); err == nil {
		t.Error("expected error for decode step without prefill")
	}
}

package transformer

import (
	"math"
	"testing"

	"seqgan-go/tensor"
)

func testConfig() *Config {
	return &Config{
		VocabSize:  50,
		Hidden:     16,
		NumHeads:   2,
		FFNDim:     32,
		EncLayers:  2,
		DecLayers:  2,
		MaxSeqLen:  32,
		PadID:      0,
		BosID:      1,
		EosID:      2,
		NormEps:    1e-5,
		InitSeed:   1,
		InitStdDev: 0.02,
	}
}

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(testConfig())
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	g.InitWeights(1)
	return g
}

func closeEnough(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

// Stepwise decoding must reproduce the teacher-forced pass position by
// position: the logits DecodeStep yields at step t match row t of the
// DecodeFull logits over the same prefix.
func TestIncrementalMatchesFull(t *testing.T) {
	g := newTestGenerator(t)

	srcIDs := [][]int{{5, 6, 7, 8}, {9, 10, 11, 0}}
	memory, memPadMask, err := g.Encode(srcIDs)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	tgtIDs := [][]int{{1, 12, 13, 14, 15}, {1, 16, 17, 18, 19}}
	full, err := g.DecodeFull(tgtIDs, memory, memPadMask)
	if err != nil {
		t.Fatalf("DecodeFull failed: %v", err)
	}

	batch, seqLen := len(tgtIDs), len(tgtIDs[0])
	vocab := g.Config.VocabSize

	var cache *Cache
	for step := 0; step < seqLen; step++ {
		last := make([]int, batch)
		for b := range tgtIDs {
			last[b] = tgtIDs[b][step]
		}

		var logits *tensor.Tensor
		logits, cache, err = g.DecodeStep(last, memory, memPadMask, cache)
		if err != nil {
			t.Fatalf("DecodeStep %d failed: %v", step, err)
		}

		for b := 0; b < batch; b++ {
			for v := 0; v < vocab; v++ {
				got := logits.Data[b*vocab+v]
				want := full.Data[(b*seqLen+step)*vocab+v]
				if !closeEnough(got, want) {
					t.Fatalf("step %d batch %d vocab %d: incremental %v, full %v", step, b, v, got, want)
				}
			}
		}
	}
}

// Every cache entry grows by exactly one time-step per single-token call
func TestCacheGrowth(t *testing.T) {
	g := newTestGenerator(t)

	memory, memPadMask, err := g.Encode([][]int{{5, 6, 7}})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var cache *Cache
	tokens := []int{1, 10, 11, 12}
	for step, tok := range tokens {
		_, cache, err = g.DecodeStep([]int{tok}, memory, memPadMask, cache)
		if err != nil {
			t.Fatalf("DecodeStep %d failed: %v", step, err)
		}

		if cache.Steps() != step+1 {
			t.Errorf("after step %d: cache.Steps() = %d, want %d", step, cache.Steps(), step+1)
		}
		for i := 0; i < cache.NumLayers(); i++ {
			if cache.LayerLen(i) != step+1 {
				t.Errorf("after step %d: layer %d length %d, want %d", step, i, cache.LayerLen(i), step+1)
			}
		}
	}
}

// With a nil memory the decoder runs without cross-attention, and the
// incremental and full paths still agree.
func TestDecoderOnlyMode(t *testing.T) {
	g := newTestGenerator(t)

	tgtIDs := [][]int{{1, 20, 21, 22}}
	full, err := g.DecodeFull(tgtIDs, nil, nil)
	if err != nil {
		t.Fatalf("DecodeFull without memory failed: %v", err)
	}

	vocab := g.Config.VocabSize
	seqLen := len(tgtIDs[0])

	var cache *Cache
	for step := 0; step < seqLen; step++ {
		var logits *tensor.Tensor
		logits, cache, err = g.DecodeStep([]int{tgtIDs[0][step]}, nil, nil, cache)
		if err != nil {
			t.Fatalf("DecodeStep %d without memory failed: %v", step, err)
		}
		for v := 0; v < vocab; v++ {
			if !closeEnough(logits.Data[v], full.Data[step*vocab+v]) {
				t.Fatalf("step %d vocab %d: incremental %v, full %v", step, v, logits.Data[v], full.Data[step*vocab+v])
			}
		}
	}
}

// Rows of a batch must not influence one another: decoding a row alone
// yields the same logits as decoding it inside a batch.
func TestBatchIndependence(t *testing.T) {
	g := newTestGenerator(t)
	vocab := g.Config.VocabSize

	src := [][]int{{5, 6, 7}, {8, 9, 10}}
	tgt := [][]int{{1, 12, 13}, {1, 14, 15}}

	memory, memPadMask, err := g.Encode(src)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	batched, err := g.DecodeFull(tgt, memory, memPadMask)
	if err != nil {
		t.Fatalf("batched DecodeFull failed: %v", err)
	}

	for b := range src {
		soloMem, soloMask, err := g.Encode(src[b : b+1])
		if err != nil {
			t.Fatalf("solo Encode failed: %v", err)
		}
		solo, err := g.DecodeFull(tgt[b:b+1], soloMem, soloMask)
		if err != nil {
			t.Fatalf("solo DecodeFull failed: %v", err)
		}

		seqLen := len(tgt[b])
		for pos := 0; pos < seqLen; pos++ {
			for v := 0; v < vocab; v++ {
				got := batched.Data[(b*seqLen+pos)*vocab+v]
				want := solo.Data[pos*vocab+v]
				if !closeEnough(got, want) {
					t.Fatalf("row %d pos %d vocab %d: batched %v, solo %v", b, pos, v, got, want)
				}
			}
		}
	}
}

// Causality: changing a later target token must not change logits at
// earlier positions.
func TestCausalIsolation(t *testing.T) {
	g := newTestGenerator(t)
	vocab := g.Config.VocabSize

	memory, memPadMask, err := g.Encode([][]int{{5, 6, 7}})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	base, err := g.DecodeFull([][]int{{1, 10, 11, 12}}, memory, memPadMask)
	if err != nil {
		t.Fatalf("DecodeFull failed: %v", err)
	}
	perturbed, err := g.DecodeFull([][]int{{1, 10, 11, 40}}, memory, memPadMask)
	if err != nil {
		t.Fatalf("perturbed DecodeFull failed: %v", err)
	}

	// Positions 0..2 only see tokens up to index 2, which are unchanged.
	for pos := 0; pos < 3; pos++ {
		for v := 0; v < vocab; v++ {
			if base.Data[pos*vocab+v] != perturbed.Data[pos*vocab+v] {
				t.Fatalf("pos %d vocab %d changed after perturbing a later token", pos, v)
			}
		}
	}

	changed := false
	for v := 0; v < vocab; v++ {
		if base.Data[3*vocab+v] != perturbed.Data[3*vocab+v] {
			changed = true
			break
		}
	}
	if !changed {
		t.Error("logits at the perturbed position did not change")
	}
}

// A multi-token first call populates the caches for the whole prefix, and
// continuing token by token from there matches teacher-forced scoring.
func TestPrefillThenStep(t *testing.T) {
	g := newTestGenerator(t)
	vocab := g.Config.VocabSize

	memory, memPadMask, err := g.Encode([][]int{{5, 6, 7}})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	prefix := [][]int{{1, 10, 11}}
	embedded, err := g.TgtEmbed.Encode(prefix, 0)
	if err != nil {
		t.Fatalf("embed prefix failed: %v", err)
	}

	out, cache, err := g.Decoder.Step(embedded, memory, memPadMask, nil)
	if err != nil {
		t.Fatalf("prefill Step failed: %v", err)
	}
	if out.Shape[1] != 1 {
		t.Fatalf("prefill output has %d time-steps, want 1", out.Shape[1])
	}
	if cache.Steps() != 3 {
		t.Fatalf("after prefill: cache.Steps() = %d, want 3", cache.Steps())
	}

	logits, cache, err := g.DecodeStep([]int{12}, memory, memPadMask, cache)
	if err != nil {
		t.Fatalf("DecodeStep after prefill failed: %v", err)
	}

	full, err := g.DecodeFull([][]int{{1, 10, 11, 12}}, memory, memPadMask)
	if err != nil {
		t.Fatalf("DecodeFull failed: %v", err)
	}
	for v := 0; v < vocab; v++ {
		if !closeEnough(logits.Data[v], full.Data[3*vocab+v]) {
			t.Fatalf("vocab %d: prefill+step %v, full %v", v, logits.Data[v], full.Data[3*vocab+v])
		}
	}
}

// A nil cache and an explicitly created empty cache must behave identically
func TestNilCacheEqualsEmptyCache(t *testing.T) {
	g := newTestGenerator(t)
	vocab := g.Config.VocabSize

	memory, memPadMask, err := g.Encode([][]int{{5, 6, 7}})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	fromNil, nilCache, err := g.DecodeStep([]int{1}, memory, memPadMask, nil)
	if err != nil {
		t.Fatalf("DecodeStep with nil cache failed: %v", err)
	}
	fromEmpty, emptyCache, err := g.DecodeStep([]int{1}, memory, memPadMask, NewCache(len(g.Decoder.Layers)))
	if err != nil {
		t.Fatalf("DecodeStep with empty cache failed: %v", err)
	}

	for v := 0; v < vocab; v++ {
		if fromNil.Data[v] != fromEmpty.Data[v] {
			t.Fatalf("vocab %d: nil cache %v, empty cache %v", v, fromNil.Data[v], fromEmpty.Data[v])
		}
	}
	if nilCache.Steps() != 1 || emptyCache.Steps() != 1 {
		t.Errorf("cache steps %d/%d after first token, want 1/1", nilCache.Steps(), emptyCache.Steps())
	}
}

func TestStepRejectsMultiTokenWithCache(t *testing.T) {
	g := newTestGenerator(t)

	memory, memPadMask, err := g.Encode([][]int{{5, 6}})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	_, cache, err := g.DecodeStep([]int{1}, memory, memPadMask, nil)
	if err != nil {
		t.Fatalf("DecodeStep failed: %v", err)
	}

	embedded, err := g.TgtEmbed.Encode([][]int{{10, 11}}, 1)
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if _, _, err := g.Decoder.Step(embedded, memory, memPadMask, cache); err == nil {
		t.Error("expected error for multi-token input with a non-empty cache")
	}
}

func TestStepRejectsMismatchedCache(t *testing.T) {
	g := newTestGenerator(t)

	memory, memPadMask, err := g.Encode([][]int{{5, 6}})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	embedded, err := g.TgtEmbed.Encode([][]int{{1}}, 0)
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	wrong := NewCache(len(g.Decoder.Layers) + 1)
	if _, _, err := g.Decoder.Step(embedded, memory, memPadMask, wrong); err == nil {
		t.Error("expected error for cache with wrong layer count")
	}
}

func TestStepRejectsBatchMismatch(t *testing.T) {
	g := newTestGenerator(t)

	memory, memPadMask, err := g.Encode([][]int{{5, 6}, {7, 8}})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	_, cache, err := g.DecodeStep([]int{1, 1}, memory, memPadMask, nil)
	if err != nil {
		t.Fatalf("DecodeStep failed: %v", err)
	}

	embedded, err := g.TgtEmbed.Encode([][]int{{10}}, 1)
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if _, _, err := g.Decoder.Step(embedded, memory, memPadMask, cache); err == nil {
		t.Error("expected error for batch size change mid-run")
	}
}

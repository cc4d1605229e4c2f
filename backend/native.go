package backend

import (
	"fmt"
	"math/rand"

	"seqgan-go/seqgan"
	"seqgan-go/tensor"
	"seqgan-go/transformer"
)

// NativeRunner runs the pure Go generator. A prefill call encodes the batch
// sources once (consulting the encoder memo first) and starts a fresh decoder
// cache; every later call advances the cache by exactly one token per row.
type NativeRunner struct {
	model  *transformer.Generator
	config *seqgan.Config
	rng    *rand.Rand
	memo   *seqgan.MemoryMemo

	memory     *tensor.Tensor
	memPadMask [][]bool
	cache      *transformer.Cache
}

// NewNativeRunner builds a runner around a generator. Weights come from the
// engine config's checkpoint when one is set, otherwise from seeded random
// initialization so smoke runs work without model files.
func NewNativeRunner(modelConfig *transformer.Config, config *seqgan.Config) (*NativeRunner, error) {
	model, err := transformer.NewGenerator(modelConfig)
	if err != nil {
		return nil, fmt.Errorf("native runner: %w", err)
	}

	if config.Checkpoint != "" {
		if err := model.LoadCheckpoint(config.Checkpoint); err != nil {
			return nil, fmt.Errorf("native runner: %w", err)
		}
	} else {
		model.InitWeights(config.Seed)
	}

	return &NativeRunner{
		model:  model,
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
		memo:   seqgan.NewMemoryMemo(config.MemoCapacity),
	}, nil
}

// Model exposes the underlying generator, for evaluation paths that need
// teacher-forced scoring rather than stepwise generation.
func (m *NativeRunner) Model() *transformer.Generator {
	return m.model
}

// Run executes one decoding step for the batch
func (m *NativeRunner) Run(seqs []*seqgan.Sequence, isPrefill bool) ([]int, error) {
	if len(seqs) == 0 {
		return nil, fmt.Errorf("no sequences to process")
	}

	if isPrefill {
		if err := m.startBatch(seqs); err != nil {
			return nil, err
		}
	} else if m.memory == nil {
		return nil, fmt.Errorf("decode step before prefill")
	}

	lastTokens := make([]int, len(seqs))
	for i, seq := range seqs {
		lastTokens[i] = seq.LastToken
	}

	logits, cache, err := m.model.DecodeStep(lastTokens, m.memory, m.memPadMask, m.cache)
	if err != nil {
		return nil, fmt.Errorf("decode step: %w", err)
	}
	m.cache = cache

	vocab := m.model.Config.VocabSize
	tokenIDs := make([]int, len(seqs))
	for i, seq := range seqs {
		row := logits.Data[i*vocab : (i+1)*vocab]
		tokenIDs[i] = SampleToken(row, seq.Temperature, seq.TopK, seq.TopP, m.rng)
	}
	return tokenIDs, nil
}

// startBatch encodes the batch sources and resets the decoder cache. The
// encoder memo is keyed on the padded batch, so a repeated batch skips the
// encoder entirely.
func (m *NativeRunner) startBatch(seqs []*seqgan.Sequence) error {
	srcRows := make([][]int, len(seqs))
	for i, seq := range seqs {
		srcRows[i] = seq.SrcTokenIDs
	}
	padded := seqgan.PadBatch(srcRows, m.config.PadID)

	key := m.memo.Key(padded)
	if memory, padMask, ok := m.memo.Get(key); ok {
		m.memory, m.memPadMask = memory, padMask
	} else {
		memory, padMask, err := m.model.Encode(padded)
		if err != nil {
			return fmt.Errorf("encode batch: %w", err)
		}
		m.memo.Put(key, memory, padMask)
		m.memory, m.memPadMask = memory, padMask
	}

	m.cache = nil
	return nil
}

// Close cleans up resources
func (m *NativeRunner) Close() error {
	m.memory = nil
	m.memPadMask = nil
	m.cache = nil
	return nil
}

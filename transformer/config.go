package transformer

import "fmt"

// Config holds the generator model configuration
type Config struct {
	VocabSize  int
	Hidden     int
	NumHeads   int
	FFNDim     int
	EncLayers  int
	DecLayers  int
	MaxSeqLen  int
	PadID      int
	BosID      int
	EosID      int
	NormEps    float32
	InitSeed   int64
	InitStdDev float64
}

// DefaultConfig returns the configuration the generator was trained with
func DefaultConfig() *Config {
	return &Config{
		VocabSize:  30000,
		Hidden:     256,
		NumHeads:   8,
		FFNDim:     512,
		EncLayers:  3,
		DecLayers:  3,
		MaxSeqLen:  512,
		PadID:      0,
		BosID:      1,
		EosID:      2,
		NormEps:    1e-5,
		InitSeed:   42,
		InitStdDev: 0.02,
	}
}

// Validate checks the configuration for internal consistency
func (c *Config) Validate() error {
	if c.VocabSize <= 0 {
		return fmt.Errorf("vocab size must be positive, got %d", c.VocabSize)
	}
	if c.Hidden <= 0 || c.NumHeads <= 0 {
		return fmt.Errorf("hidden (%d) and heads (%d) must be positive", c.Hidden, c.NumHeads)
	}
	if c.Hidden%c.NumHeads != 0 {
		return fmt.Errorf("hidden %d not divisible by heads %d", c.Hidden, c.NumHeads)
	}
	if c.EncLayers < 0 || c.DecLayers <= 0 {
		return fmt.Errorf("invalid layer counts: enc=%d dec=%d", c.EncLayers, c.DecLayers)
	}
	if c.MaxSeqLen <= 0 {
		return fmt.Errorf("max sequence length must be positive, got %d", c.MaxSeqLen)
	}
	if c.PadID == c.BosID || c.PadID == c.EosID {
		return fmt.Errorf("pad id %d collides with bos/eos", c.PadID)
	}
	return nil
}

// HeadDim returns the per-head dimension
func (c *Config) HeadDim() int {
	return c.Hidden / c.NumHeads
}

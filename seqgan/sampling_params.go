package seqgan

import "fmt"

// SamplingParams holds the sampling parameters for one generation request.
// A temperature of zero selects greedy argmax decoding; beam search is not
// supported.
type SamplingParams struct {
	Temperature  float64
	TopK         int
	TopP         float64
	MaxNewTokens int
	IgnoreEOS    bool
}

// SamplingOption is a functional option for SamplingParams
type SamplingOption func(*SamplingParams)

// NewSamplingParams creates a new SamplingParams with default values
func NewSamplingParams(opts ...SamplingOption) *SamplingParams {
	sp := &SamplingParams{
		Temperature:  0,
		TopK:         0,
		TopP:         1.0,
		MaxNewTokens: 128,
		IgnoreEOS:    false,
	}

	for _, opt := range opts {
		opt(sp)
	}

	if err := sp.validate(); err != nil {
		panic(err)
	}

	return sp
}

// validate checks if the sampling parameters are valid
func (sp *SamplingParams) validate() error {
	if sp.Temperature < 0 {
		return fmt.Errorf("temperature must be >= 0, got %f", sp.Temperature)
	}
	if sp.TopK < 0 {
		return fmt.Errorf("top-k must be >= 0, got %d", sp.TopK)
	}
	if sp.TopP <= 0 || sp.TopP > 1 {
		return fmt.Errorf("top-p must be in (0,1], got %f", sp.TopP)
	}
	if sp.MaxNewTokens <= 0 {
		return fmt.Errorf("max new tokens must be positive, got %d", sp.MaxNewTokens)
	}
	return nil
}

// WithTemperature sets the sampling temperature (0 = greedy)
func WithTemperature(t float64) SamplingOption {
	return func(sp *SamplingParams) {
		sp.Temperature = t
	}
}

// WithTopK sets top-k filtering (0 = disabled)
func WithTopK(k int) SamplingOption {
	return func(sp *SamplingParams) {
		sp.TopK = k
	}
}

// WithTopP sets nucleus sampling threshold
func WithTopP(p float64) SamplingOption {
	return func(sp *SamplingParams) {
		sp.TopP = p
	}
}

// WithMaxNewTokens sets the maximum number of tokens to generate
func WithMaxNewTokens(n int) SamplingOption {
	return func(sp *SamplingParams) {
		sp.MaxNewTokens = n
	}
}

// WithIgnoreEOS sets whether to ignore the EOS token
func WithIgnoreEOS(b bool) SamplingOption {
	return func(sp *SamplingParams) {
		sp.IgnoreEOS = b
	}
}

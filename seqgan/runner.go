package seqgan

// Runner executes one model step for a batch of sequences. On a prefill
// call the runner must set up fresh per-batch state (encode the sources,
// create a new decoder cache); on subsequent calls it advances that state
// by one token per row. A runner serves one batch at a time; concurrent
// batches need separate runners.
type Runner interface {
	// Run returns the next token ID for each sequence
	Run(seqs []*Sequence, isPrefill bool) ([]int, error)

	// Close cleans up resources
	Close() error
}

// Tokenizer converts between text and token IDs
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(tokenIDs []int) (string, error)
	EOSTokenID() int
}

// MockRunner is a deterministic runner for tests and demos
type MockRunner struct {
	config *Config
	vocab  int
}

// NewMockRunner creates a new mock runner
func NewMockRunner(config *Config) *MockRunner {
	return &MockRunner{
		config: config,
		vocab:  1000,
	}
}

// Run generates tokens from the sequence ID and position, emitting EOS
// periodically so finishing paths get exercised.
func (m *MockRunner) Run(seqs []*Sequence, isPrefill bool) ([]int, error) {
	tokenIDs := make([]int, len(seqs))

	for i, seq := range seqs {
		tokenID := int((seq.SeqID + int64(seq.NumGenerated()) + 3) % int64(m.vocab))
		if seq.NumGenerated() > 4 && seq.NumGenerated()%8 == 0 {
			tokenID = m.config.EosID
		}
		tokenIDs[i] = tokenID
	}

	return tokenIDs, nil
}

// Close cleans up resources
func (m *MockRunner) Close() error {
	return nil
}

// MockTokenizer is a trivial byte-level tokenizer for tests and demos
type MockTokenizer struct {
	eosTokenID int
}

// NewMockTokenizer creates a new mock tokenizer
func NewMockTokenizer(eosTokenID int) *MockTokenizer {
	return &MockTokenizer{eosTokenID: eosTokenID}
}

// Encode converts each character to a token
func (t *MockTokenizer) Encode(text string) ([]int, error) {
	tokens := make([]int, 0, len(text))
	for _, c := range text {
		tokens = append(tokens, int(c)%1000)
	}
	return tokens, nil
}

// Decode converts tokens back to characters
func (t *MockTokenizer) Decode(tokenIDs []int) (string, error) {
	result := make([]rune, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if id != t.eosTokenID {
			result = append(result, rune(id+32))
		}
	}
	return string(result), nil
}

// EOSTokenID returns the EOS token ID
func (t *MockTokenizer) EOSTokenID() int {
	return t.eosTokenID
}

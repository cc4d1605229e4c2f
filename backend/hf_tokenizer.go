//go:build hftokenizers

package backend

import (
	"fmt"

	"github.com/daulet/tokenizers"

	"seqgan-go/seqgan"
)

// HFTokenizer wraps the HuggingFace tokenizers library through its CGo
// binding. Use it when the model was trained with a subword tokenizer that
// the word-level VocabTokenizer cannot reproduce. Requires the
// hftokenizers build tag and the native tokenizers library at link time.
type HFTokenizer struct {
	tk    *tokenizers.Tokenizer
	eosID int
}

// NewHFTokenizer loads a tokenizer.json with the full HuggingFace pipeline
func NewHFTokenizer(path string, eosID int) (*HFTokenizer, error) {
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	return &HFTokenizer{tk: tk, eosID: eosID}, nil
}

// Encode converts text to token IDs
func (t *HFTokenizer) Encode(text string) ([]int, error) {
	ids, _ := t.tk.Encode(text, false)
	tokens := make([]int, len(ids))
	for i, id := range ids {
		tokens[i] = int(id)
	}
	return tokens, nil
}

// Decode converts token IDs to text, skipping special tokens
func (t *HFTokenizer) Decode(tokenIDs []int) (string, error) {
	ids := make([]uint32, len(tokenIDs))
	for i, id := range tokenIDs {
		ids[i] = uint32(id)
	}
	return t.tk.Decode(ids, true), nil
}

// EOSTokenID returns the EOS token ID
func (t *HFTokenizer) EOSTokenID() int {
	return t.eosID
}

// Close releases the native tokenizer
func (t *HFTokenizer) Close() error {
	t.tk.Close()
	return nil
}

var _ seqgan.Tokenizer = (*HFTokenizer)(nil)

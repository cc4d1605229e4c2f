package backend

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"seqgan-go/seqgan"
)

// VocabTokenizer is a word-level tokenizer loaded from a tokenizer.json
// file in the HuggingFace layout (model.vocab plus added_tokens). The
// dataset vocabulary is word-level, so splitting on whitespace is exact.
type VocabTokenizer struct {
	vocab    map[string]int
	invVocab map[int]string
	padID    int
	bosID    int
	eosID    int
	unkID    int
}

type tokenizerJSON struct {
	Model struct {
		Vocab map[string]int `json:"vocab"`
	} `json:"model"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
	} `json:"added_tokens"`
}

// NewVocabTokenizer loads a tokenizer from a tokenizer.json file. Special
// token ids are resolved from the conventional contents "<pad>", "<s>",
// "</s>" and "<unk>"; missing ones report -1 and encoding falls back to
// dropping unknown words.
func NewVocabTokenizer(path string) (*VocabTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer: %w", err)
	}

	var tj tokenizerJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("failed to parse tokenizer %s: %w", path, err)
	}

	t := &VocabTokenizer{
		vocab:    make(map[string]int, len(tj.Model.Vocab)),
		invVocab: make(map[int]string, len(tj.Model.Vocab)),
	}
	for token, id := range tj.Model.Vocab {
		t.vocab[token] = id
		t.invVocab[id] = token
	}
	for _, added := range tj.AddedTokens {
		t.vocab[added.Content] = added.ID
		t.invVocab[added.ID] = added.Content
	}

	lookup := func(content string) int {
		if id, ok := t.vocab[content]; ok {
			return id
		}
		return -1
	}
	t.padID = lookup("<pad>")
	t.bosID = lookup("<s>")
	t.eosID = lookup("</s>")
	t.unkID = lookup("<unk>")

	return t, nil
}

// Encode converts text to token IDs, one token per whitespace-separated
// word, wrapped in BOS and EOS when the vocabulary defines them (the
// single-sequence template the model was trained with).
func (t *VocabTokenizer) Encode(text string) ([]int, error) {
	words := strings.Fields(text)
	tokens := make([]int, 0, len(words)+2)

	if t.bosID >= 0 {
		tokens = append(tokens, t.bosID)
	}
	for _, word := range words {
		if id, ok := t.vocab[word]; ok {
			tokens = append(tokens, id)
		} else if t.unkID >= 0 {
			tokens = append(tokens, t.unkID)
		}
	}
	if t.eosID >= 0 {
		tokens = append(tokens, t.eosID)
	}
	return tokens, nil
}

// Decode converts token IDs to space-joined text, skipping special tokens
func (t *VocabTokenizer) Decode(tokenIDs []int) (string, error) {
	words := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if id == t.padID || id == t.bosID || id == t.eosID {
			continue
		}
		if token, ok := t.invVocab[id]; ok {
			words = append(words, token)
		}
	}
	return strings.Join(words, " "), nil
}

// EOSTokenID returns the EOS token ID
func (t *VocabTokenizer) EOSTokenID() int {
	return t.eosID
}

// BOSTokenID returns the BOS token ID
func (t *VocabTokenizer) BOSTokenID() int {
	return t.bosID
}

// PadTokenID returns the padding token ID
func (t *VocabTokenizer) PadTokenID() int {
	return t.padID
}

// VocabSize returns the vocabulary size
func (t *VocabTokenizer) VocabSize() int {
	return len(t.invVocab)
}

var _ seqgan.Tokenizer = (*VocabTokenizer)(nil)

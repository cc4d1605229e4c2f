package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"seqgan-go/seqgan"
)

// HTTPRunner delegates inference to a model server, typically the Python
// training process exposing its generator during adversarial rollouts.
type HTTPRunner struct {
	serverURL string
	client    *http.Client
	vocabSize int
}

// NewHTTPRunner connects to a model server and reads its /info endpoint
func NewHTTPRunner(serverURL string) (*HTTPRunner, error) {
	runner := &HTTPRunner{
		serverURL: serverURL,
		client:    &http.Client{},
	}

	resp, err := runner.client.Get(serverURL + "/info")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	var info struct {
		VocabSize  int `json:"vocab_size"`
		EOSTokenID int `json:"eos_token_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode server info: %w", err)
	}

	runner.vocabSize = info.VocabSize
	return runner, nil
}

// Run executes one generation step via HTTP
func (m *HTTPRunner) Run(seqs []*seqgan.Sequence, isPrefill bool) ([]int, error) {
	type seqData struct {
		SrcTokenIDs []int   `json:"src_token_ids"`
		TgtTokenIDs []int   `json:"tgt_token_ids"`
		Temperature float64 `json:"temperature"`
		TopK        int     `json:"top_k"`
		TopP        float64 `json:"top_p"`
	}

	req := struct {
		Sequences []seqData `json:"sequences"`
		IsPrefill bool      `json:"is_prefill"`
	}{
		Sequences: make([]seqData, len(seqs)),
		IsPrefill: isPrefill,
	}

	for i, seq := range seqs {
		req.Sequences[i] = seqData{
			SrcTokenIDs: seq.SrcTokenIDs,
			TgtTokenIDs: seq.TgtTokenIDs,
			Temperature: seq.Temperature,
			TopK:        seq.TopK,
			TopP:        seq.TopP,
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Post(m.serverURL+"/inference", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		TokenIDs []int `json:"token_ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result.TokenIDs, nil
}

// Close cleans up resources
func (m *HTTPRunner) Close() error {
	return nil
}

// HTTPTokenizer tokenizes through the same model server
type HTTPTokenizer struct {
	serverURL string
	eosID     int
}

// NewHTTPTokenizer creates a tokenizer backed by the model server
func NewHTTPTokenizer(serverURL string, eosID int) *HTTPTokenizer {
	return &HTTPTokenizer{serverURL: serverURL, eosID: eosID}
}

// Encode converts text to token IDs via HTTP
func (t *HTTPTokenizer) Encode(text string) ([]int, error) {
	req := struct {
		Text string `json:"text"`
	}{Text: text}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(t.serverURL+"/tokenize", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Tokens []int `json:"tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result.Tokens, nil
}

// Decode converts token IDs to text via HTTP
func (t *HTTPTokenizer) Decode(tokenIDs []int) (string, error) {
	req := struct {
		Tokens []int `json:"tokens"`
	}{Tokens: tokenIDs}

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	resp, err := http.Post(t.serverURL+"/detokenize", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Text, nil
}

// EOSTokenID returns the EOS token ID
func (t *HTTPTokenizer) EOSTokenID() int {
	return t.eosID
}

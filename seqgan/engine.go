package seqgan

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Output represents the output of a generation request
type Output struct {
	Text     string
	TokenIDs []int
}

// Engine drives batched lockstep generation: it schedules sequences,
// invokes the runner once per step, and collects finished outputs in
// request order.
type Engine struct {
	config    *Config
	runner    Runner
	tokenizer Tokenizer
	scheduler *Scheduler

	order   []int64
	results map[int64]Output
}

// NewEngine creates a new generation engine
func NewEngine(config *Config, runner Runner, tokenizer Tokenizer) *Engine {
	return &Engine{
		config:    config,
		runner:    runner,
		tokenizer: tokenizer,
		scheduler: NewScheduler(config),
		results:   make(map[int64]Output),
	}
}

// Close cleans up resources
func (e *Engine) Close() error {
	return e.runner.Close()
}

// AddRequest adds a generation request. The prompt may be a string (encoded
// with the engine's tokenizer) or raw token IDs.
func (e *Engine) AddRequest(prompt interface{}, samplingParams *SamplingParams) error {
	var tokenIDs []int
	var err error

	switch p := prompt.(type) {
	case string:
		tokenIDs, err = e.tokenizer.Encode(p)
		if err != nil {
			return fmt.Errorf("failed to encode prompt: %w", err)
		}
	case []int:
		tokenIDs = p
	default:
		return fmt.Errorf("prompt must be string or []int")
	}

	if len(tokenIDs) == 0 {
		return fmt.Errorf("empty prompt")
	}
	if len(tokenIDs) > e.config.MaxSrcLen {
		return fmt.Errorf("prompt length %d exceeds max source length %d", len(tokenIDs), e.config.MaxSrcLen)
	}

	seq := NewSequence(tokenIDs, e.config.BosID, samplingParams)
	e.order = append(e.order, seq.SeqID)
	e.scheduler.Add(seq)
	return nil
}

// Step performs one inference step. The int result is the number of tokens
// processed, negative for decode steps so progress reporting can tell the
// two phases apart.
func (e *Engine) Step() ([]Output, int, error) {
	seqs, isPrefill := e.scheduler.Schedule()

	tokenIDs, err := e.runner.Run(seqs, isPrefill)
	if err != nil {
		return nil, 0, fmt.Errorf("model inference failed: %w", err)
	}
	if len(tokenIDs) != len(seqs) {
		return nil, 0, fmt.Errorf("runner returned %d tokens for %d sequences", len(tokenIDs), len(seqs))
	}

	e.scheduler.Postprocess(seqs, tokenIDs)

	outputs := make([]Output, 0)
	for _, seq := range seqs {
		if seq.IsFinished() && !seq.emitted {
			seq.emitted = true
			text, err := e.tokenizer.Decode(seq.CompletionTokenIDs())
			if err != nil {
				return nil, 0, fmt.Errorf("failed to decode tokens: %w", err)
			}
			out := Output{Text: text, TokenIDs: seq.CompletionTokenIDs()}
			e.results[seq.SeqID] = out
			outputs = append(outputs, out)
		}
	}

	numTokens := 0
	if isPrefill {
		for _, seq := range seqs {
			numTokens += len(seq.SrcTokenIDs)
		}
	} else {
		numTokens = -len(seqs)
	}

	return outputs, numTokens, nil
}

// IsFinished returns true if all requests have been processed
func (e *Engine) IsFinished() bool {
	return e.scheduler.IsFinished()
}

// Generate runs all given prompts to completion and returns their outputs
// in prompt order.
func (e *Engine) Generate(prompts []interface{}, samplingParams *SamplingParams, showProgress bool) ([]Output, error) {
	first := len(e.order)
	for _, prompt := range prompts {
		if err := e.AddRequest(prompt, samplingParams); err != nil {
			return nil, err
		}
	}

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(len(prompts),
			progressbar.OptionSetDescription("Generating"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	var prefillThroughput, decodeThroughput float64
	for !e.IsFinished() {
		start := time.Now()
		stepOutputs, numTokens, err := e.Step()
		if err != nil {
			return nil, err
		}
		elapsed := time.Since(start).Seconds()

		if showProgress {
			if elapsed > 0 {
				if numTokens > 0 {
					prefillThroughput = float64(numTokens) / elapsed
				} else {
					decodeThroughput = float64(-numTokens) / elapsed
				}
			}
			bar.Describe(fmt.Sprintf("Generating [Prefill: %dtok/s, Decode: %dtok/s]",
				int(prefillThroughput), int(decodeThroughput)))
			for range stepOutputs {
				bar.Add(1)
			}
		}
	}

	if showProgress {
		bar.Finish()
	}

	outputs := make([]Output, 0, len(prompts))
	for _, id := range e.order[first:] {
		out, ok := e.results[id]
		if !ok {
			return nil, fmt.Errorf("no output recorded for sequence %d", id)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

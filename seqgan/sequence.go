package seqgan

import "sync/atomic"

// SequenceStatus represents the status of a sequence
type SequenceStatus int

const (
	StatusWaiting SequenceStatus = iota
	StatusRunning
	StatusFinished
)

// Sequence represents a single generation request: a source sentence and the
// target sequence grown token by token. The target always starts at BOS.
// Sequences in one batch advance in lockstep; a row that has already emitted
// EOS keeps stepping with the batch and its completion is truncated at the
// first EOS.
type Sequence struct {
	SeqID        int64
	Status       SequenceStatus
	SrcTokenIDs  []int
	TgtTokenIDs  []int
	LastToken    int
	Temperature  float64
	TopK         int
	TopP         float64
	MaxNewTokens int
	IgnoreEOS    bool

	emitted bool
	eosAt   int // index of first EOS in TgtTokenIDs, -1 if none
}

var seqCounter int64 = 0

// NewSequence creates a new sequence from source token IDs and sampling
// parameters. bosID seeds the target.
func NewSequence(srcTokenIDs []int, bosID int, samplingParams *SamplingParams) *Sequence {
	seqID := atomic.AddInt64(&seqCounter, 1) - 1

	src := make([]int, len(srcTokenIDs))
	copy(src, srcTokenIDs)

	return &Sequence{
		SeqID:        seqID,
		Status:       StatusWaiting,
		SrcTokenIDs:  src,
		TgtTokenIDs:  []int{bosID},
		LastToken:    bosID,
		Temperature:  samplingParams.Temperature,
		TopK:         samplingParams.TopK,
		TopP:         samplingParams.TopP,
		MaxNewTokens: samplingParams.MaxNewTokens,
		IgnoreEOS:    samplingParams.IgnoreEOS,
		eosAt:        -1,
	}
}

// NumGenerated returns the number of generated target tokens (excluding BOS)
func (s *Sequence) NumGenerated() int {
	return len(s.TgtTokenIDs) - 1
}

// AppendToken appends a generated token to the target sequence
func (s *Sequence) AppendToken(tokenID, eosID int) {
	s.TgtTokenIDs = append(s.TgtTokenIDs, tokenID)
	s.LastToken = tokenID
	if s.eosAt < 0 && tokenID == eosID && !s.IgnoreEOS {
		s.eosAt = len(s.TgtTokenIDs) - 1
	}
}

// IsFinished returns true if the sequence has finished generating
func (s *Sequence) IsFinished() bool {
	return s.Status == StatusFinished
}

// SawEOS reports whether an EOS token has been generated
func (s *Sequence) SawEOS() bool {
	return s.eosAt >= 0
}

// CompletionTokenIDs returns the generated tokens without BOS, truncated
// before the first EOS and capped at MaxNewTokens. Tokens a finished row
// accumulated while riding out its batch are dropped here.
func (s *Sequence) CompletionTokenIDs() []int {
	end := len(s.TgtTokenIDs)
	if limit := 1 + s.MaxNewTokens; limit < end {
		end = limit
	}
	if s.eosAt >= 0 && s.eosAt < end {
		end = s.eosAt
	}
	return s.TgtTokenIDs[1:end]
}

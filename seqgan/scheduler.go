package seqgan

import "container/list"

// Scheduler manages the waiting queue and the current lockstep batch.
// A batch is formed from the front of the waiting queue, prefilled once,
// then stepped until every row in it has finished; only then is the next
// batch formed. Every row of the running batch is stepped every time, so
// the decoder cache stays aligned across the whole batch.
type Scheduler struct {
	maxBatchSize int
	eos          int
	waiting      *list.List
	running      []*Sequence
}

// NewScheduler creates a new scheduler
func NewScheduler(config *Config) *Scheduler {
	return &Scheduler{
		maxBatchSize: config.MaxBatchSize,
		eos:          config.EosID,
		waiting:      list.New(),
	}
}

// IsFinished returns true if there are no more sequences to process
func (s *Scheduler) IsFinished() bool {
	return s.waiting.Len() == 0 && len(s.running) == 0
}

// Add adds a sequence to the waiting queue
func (s *Scheduler) Add(seq *Sequence) {
	s.waiting.PushBack(seq)
}

// Schedule returns the sequences for the next step and whether this step is
// the batch's prefill.
func (s *Scheduler) Schedule() ([]*Sequence, bool) {
	if len(s.running) > 0 {
		return s.running, false
	}

	for s.waiting.Len() > 0 && len(s.running) < s.maxBatchSize {
		elem := s.waiting.Front()
		seq := elem.Value.(*Sequence)
		s.waiting.Remove(elem)
		seq.Status = StatusRunning
		s.running = append(s.running, seq)
	}

	if len(s.running) == 0 {
		panic("no sequences scheduled")
	}
	return s.running, true
}

// Postprocess folds the step's output tokens into the sequences, marks
// finished rows, and retires the batch once every row is done.
func (s *Scheduler) Postprocess(seqs []*Sequence, tokenIDs []int) {
	allDone := true
	for i, seq := range seqs {
		seq.AppendToken(tokenIDs[i], s.eos)

		if seq.SawEOS() || seq.NumGenerated() >= seq.MaxNewTokens {
			seq.Status = StatusFinished
		} else {
			allDone = false
		}
	}

	if allDone {
		s.running = nil
	}
}

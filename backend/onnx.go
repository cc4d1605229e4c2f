package backend

import (
	"fmt"
	"math/rand"

	ort "github.com/yalue/onnxruntime_go"

	"seqgan-go/seqgan"
)

// ONNXRunner runs an exported seq2seq model through ONNX Runtime. The export
// takes "src_ids" and "tgt_ids" and returns full teacher-forced "logits", so
// every step re-runs the decoder over the whole target prefix. Slower than
// the native incremental path but useful for checking a trained export.
type ONNXRunner struct {
	modelPath   string
	config      *seqgan.Config
	vocabSize   int
	rng         *rand.Rand
	initialized bool
}

// NewONNXRunner creates a runner for an ONNX model file
func NewONNXRunner(modelPath string, vocabSize int, config *seqgan.Config) (*ONNXRunner, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	return &ONNXRunner{
		modelPath:   modelPath,
		config:      config,
		vocabSize:   vocabSize,
		rng:         rand.New(rand.NewSource(config.Seed)),
		initialized: true,
	}, nil
}

// Run executes inference on the sequences
func (m *ONNXRunner) Run(seqs []*seqgan.Sequence, isPrefill bool) ([]int, error) {
	if !m.initialized {
		return nil, fmt.Errorf("runner not initialized")
	}
	if len(seqs) == 0 {
		return nil, fmt.Errorf("no sequences to process")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(4); err != nil {
		return nil, fmt.Errorf("failed to set threads: %w", err)
	}

	tokenIDs := make([]int, len(seqs))
	for i, seq := range seqs {
		logits, err := m.runSequence(seq, options)
		if err != nil {
			return nil, fmt.Errorf("sequence %d: %w", seq.SeqID, err)
		}
		tokenIDs[i] = SampleToken(logits, seq.Temperature, seq.TopK, seq.TopP, m.rng)
	}
	return tokenIDs, nil
}

// runSequence runs one source/target pair and returns the logits for the
// last target position.
func (m *ONNXRunner) runSequence(seq *seqgan.Sequence, options *ort.SessionOptions) ([]float32, error) {
	srcTensor, err := idTensor(seq.SrcTokenIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create source tensor: %w", err)
	}
	defer srcTensor.Destroy()

	tgtTensor, err := idTensor(seq.TgtTokenIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create target tensor: %w", err)
	}
	defer tgtTensor.Destroy()

	tgtLen := len(seq.TgtTokenIDs)
	outputShape := ort.NewShape(1, int64(tgtLen), int64(m.vocabSize))
	outputData := make([]float32, tgtLen*m.vocabSize)
	outputTensor, err := ort.NewTensor(outputShape, outputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	session, err := ort.NewAdvancedSession(
		m.modelPath,
		[]string{"src_ids", "tgt_ids"},
		[]string{"logits"},
		[]ort.Value{srcTensor, tgtTensor},
		[]ort.Value{outputTensor},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Destroy()

	if err := session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	logits := outputTensor.GetData()
	start := (tgtLen - 1) * m.vocabSize
	return logits[start : start+m.vocabSize], nil
}

func idTensor(ids []int) (*ort.Tensor[int64], error) {
	data := make([]int64, len(ids))
	for i, id := range ids {
		data[i] = int64(id)
	}
	return ort.NewTensor(ort.NewShape(1, int64(len(ids))), data)
}

// Close cleans up resources
func (m *ONNXRunner) Close() error {
	m.initialized = false
	return nil
}

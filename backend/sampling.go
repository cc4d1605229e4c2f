package backend

import (
	"math"
	"math/rand"
	"sort"
)

// SampleToken picks a token id from a row of logits. Temperature 0 is
// greedy argmax and touches no randomness, so greedy runs are reproducible
// regardless of the rng state. topK 0 and topP 1 disable their filters.
func SampleToken(logits []float32, temperature float64, topK int, topP float64, rng *rand.Rand) int {
	if temperature == 0 {
		return argmax(logits)
	}

	scaled := make([]float32, len(logits))
	copy(scaled, logits)
	if temperature != 1.0 {
		for i := range scaled {
			scaled[i] /= float32(temperature)
		}
	}

	probs := softmax(scaled)

	if topK > 0 && topK < len(probs) {
		probs = topKFilter(probs, topK)
	}
	if topP < 1.0 {
		probs = topPFilter(probs, topP)
	}

	sum := float32(0)
	for _, p := range probs {
		sum += p
	}
	if sum > 0 {
		for i := range probs {
			probs[i] /= sum
		}
	}

	return sampleMultinomial(probs, rng)
}

func argmax(logits []float32) int {
	best := 0
	for i := 1; i < len(logits); i++ {
		if logits[i] > logits[best] {
			best = i
		}
	}
	return best
}

func softmax(logits []float32) []float32 {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	probs := make([]float32, len(logits))
	sum := float32(0)
	for i, l := range logits {
		probs[i] = float32(math.Exp(float64(l - maxLogit)))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

type indexedProb struct {
	idx  int
	prob float32
}

func sortedByProb(probs []float32) []indexedProb {
	indexed := make([]indexedProb, len(probs))
	for i, p := range probs {
		indexed[i] = indexedProb{i, p}
	}
	sort.Slice(indexed, func(i, j int) bool {
		return indexed[i].prob > indexed[j].prob
	})
	return indexed
}

// topKFilter zeros out everything beyond the k most probable tokens
func topKFilter(probs []float32, k int) []float32 {
	indexed := sortedByProb(probs)
	result := make([]float32, len(probs))
	for i := 0; i < k && i < len(indexed); i++ {
		result[indexed[i].idx] = indexed[i].prob
	}
	return result
}

// topPFilter keeps the smallest prefix of tokens, in descending probability
// order, whose cumulative mass reaches p (nucleus sampling).
func topPFilter(probs []float32, p float64) []float32 {
	indexed := sortedByProb(probs)

	cumProb := float32(0)
	cutoff := len(indexed)
	for i, item := range indexed {
		cumProb += item.prob
		if float64(cumProb) >= p {
			cutoff = i + 1
			break
		}
	}

	result := make([]float32, len(probs))
	for i := 0; i < cutoff; i++ {
		result[indexed[i].idx] = indexed[i].prob
	}
	return result
}

func sampleMultinomial(probs []float32, rng *rand.Rand) int {
	cumProbs := make([]float32, len(probs))
	cumProbs[0] = probs[0]
	for i := 1; i < len(probs); i++ {
		cumProbs[i] = cumProbs[i-1] + probs[i]
	}

	r := rng.Float32() * cumProbs[len(cumProbs)-1]

	idx := sort.Search(len(cumProbs), func(i int) bool {
		return cumProbs[i] >= r
	})
	if idx >= len(probs) {
		idx = len(probs) - 1
	}
	return idx
}

package split

import (
	"time"

	"github.com/tuneinsight/lattigo/v5/he/hefloat"
)

// Estimate is the homomorphic work and traffic of one split request.
type Estimate struct {
	Multiplications int
	Rotations       int
	// RequestBytes is the encrypted input, ResponseBytes the per-neuron
	// answers. Both ignore serialization headers.
	RequestBytes  int
	ResponseBytes int
}

// ciphertextBytes is the size of a degree-1 ciphertext at level.
func ciphertextBytes(params hefloat.Parameters, level int) int {
	return 2 * params.N() * (level + 1) * 8
}

// EstimateLayer predicts the cost of evaluating a layer of neurons neurons
// over inputs inputs.
func EstimateLayer(params hefloat.Parameters, inputs, neurons int) Estimate {
	level := params.MaxLevel()
	return Estimate{
		Multiplications: neurons,
		Rotations:       neurons * len(rotations(inputs)),
		RequestBytes:    ciphertextBytes(params, level),
		ResponseBytes:   neurons * ciphertextBytes(params, level-1),
	}
}

// NetworkTime is the transfer time of one request and its answer at rate
// megabytes per second. A non-positive rate gives 0.
func (e Estimate) NetworkTime(rate float64) time.Duration {
	if !(rate > 0) {
		return 0
	}
	mb := float64(e.RequestBytes+e.ResponseBytes) / 1e6
	return time.Duration(mb / rate * float64(time.Second))
}

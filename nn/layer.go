package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Layer holds the trainable state of one fully-connected stage. Weight (i, j)
// connects input j to neuron i; the row-major backing slice is laid out as
// weights[i*inputs+j].
type Layer struct {
	weights *mat.Dense
	biases  *mat.VecDense
	outputs *mat.VecDense
	deltas  *mat.VecDense
}

func newLayer(count, inputs int, rng *rand.Rand) *Layer {
	data := make([]float64, count*inputs)
	for i := range data {
		data[i] = standardNormal(rng)
	}
	return &Layer{
		weights: mat.NewDense(count, inputs, data),
		biases:  mat.NewVecDense(count, nil),
		outputs: mat.NewVecDense(count, nil),
		deltas:  mat.NewVecDense(count, nil),
	}
}

// Size is the neuron count.
func (l *Layer) Size() int {
	return l.biases.Len()
}

// InputSize is the neuron count of the previous layer, or the network input
// size for the first layer.
func (l *Layer) InputSize() int {
	_, c := l.weights.Dims()
	return c
}

// Weights exposes the live weight matrix. Mutating it changes the network.
func (l *Layer) Weights() *mat.Dense {
	return l.weights
}

// Biases exposes the live bias vector.
func (l *Layer) Biases() *mat.VecDense {
	return l.biases
}

// Outputs returns a copy of the activations from the most recent forward pass.
func (l *Layer) Outputs() []float64 {
	return copyVec(l.outputs)
}

// Deltas returns a copy of the error terms from the most recent backward pass.
func (l *Layer) Deltas() []float64 {
	return copyVec(l.deltas)
}

// forward computes act(W·prev + b) into the layer outputs.
func (l *Layer) forward(prev mat.Vector, act Activation) {
	l.outputs.MulVec(l.weights, prev)
	l.outputs.AddVec(l.outputs, l.biases)
	l.activate(act)
}

func (l *Layer) activate(act Activation) {
	for i := 0; i < l.outputs.Len(); i++ {
		l.outputs.SetVec(i, act.Activate(l.outputs.AtVec(i)))
	}
}

// scaleByDerivative turns the propagated error held in deltas into the
// layer's delta terms.
func (l *Layer) scaleByDerivative(act Activation) {
	for i := 0; i < l.deltas.Len(); i++ {
		l.deltas.SetVec(i, l.deltas.AtVec(i)*act.Derivative(l.outputs.AtVec(i)))
	}
}

// update applies W += rate·delta·prevᵀ and b += rate·delta.
func (l *Layer) update(rate float64, prev mat.Vector) {
	l.weights.RankOne(l.weights, rate, l.deltas, prev)
	l.biases.AddScaledVec(l.biases, rate, l.deltas)
}

func copyVec(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

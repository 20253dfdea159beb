// Package nn implements a fully-connected feed-forward network trained one
// sample at a time with backpropagation.
//
// A training step is always Forward, then Backpropagate, then Train with the
// same input:
//
//	out, err := net.Forward(x)
//	err = net.Backpropagate(target)
//	err = net.Train(0.1, x)
//
// The network records which of these has happened and rejects a step that
// would read stale activations or deltas. A Network is not safe for
// concurrent use.
package nn

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type state int

const (
	idle state = iota
	forwarded
	backpropagated
)

func (s state) String() string {
	switch s {
	case forwarded:
		return "forwarded"
	case backpropagated:
		return "backpropagated"
	}
	return "idle"
}

// Network is a stack of fully connected layers sharing one activation. A
// training step is Forward, Backpropagate, then Train; any other order
// fails with ErrCallOrder.
type Network struct {
	layers     []*Layer
	activation Activation
	schedule   []int

	state state
	input *mat.VecDense
}

// New builds a network from a neuron-count-per-layer schedule. The first entry
// is the input size, the last the output size. Weights are drawn from rng,
// biases start at zero.
func New(schedule []int, act Activation, rng *rand.Rand) (*Network, error) {
	if len(schedule) < 2 {
		return nil, errors.Wrapf(ErrConstruction, "schedule needs at least 2 entries, got %d", len(schedule))
	}
	for i, n := range schedule {
		if n <= 0 {
			return nil, errors.Wrapf(ErrConstruction, "schedule entry %d is %d, want a positive count", i, n)
		}
	}
	if !act.valid() {
		return nil, errors.Wrapf(ErrConstruction, "unknown activation %d", int(act))
	}
	if rng == nil {
		return nil, errors.Wrap(ErrConstruction, "nil random source")
	}

	net := &Network{
		layers:     make([]*Layer, len(schedule)-1),
		activation: act,
		schedule:   append([]int(nil), schedule...),
	}
	for i := 1; i < len(schedule); i++ {
		net.layers[i-1] = newLayer(schedule[i], schedule[i-1], rng)
	}
	return net, nil
}

// Layers returns the layers from input to output. They are shared, not
// copied.
func (n *Network) Layers() []*Layer {
	return n.layers
}

// Activation is the function applied after every layer.
func (n *Network) Activation() Activation {
	return n.activation
}

// Schedule returns a copy of the schedule the network was built from.
func (n *Network) Schedule() []int {
	return append([]int(nil), n.schedule...)
}

// InputSize is the length Forward expects.
func (n *Network) InputSize() int {
	return n.schedule[0]
}

// OutputSize is the length Forward returns.
func (n *Network) OutputSize() int {
	return n.schedule[len(n.schedule)-1]
}

func (n *Network) last() *Layer {
	return n.layers[len(n.layers)-1]
}

// Forward propagates x through every layer and returns a copy of the output
// layer activations.
func (n *Network) Forward(x []float64) ([]float64, error) {
	if err := checkLen("forward", n.InputSize(), x); err != nil {
		return nil, err
	}

	n.input = mat.NewVecDense(len(x), append([]float64(nil), x...))
	var prev mat.Vector = n.input
	for _, l := range n.layers {
		l.forward(prev, n.activation)
		prev = l.outputs
	}
	n.state = forwarded

	return n.last().Outputs(), nil
}

// ForwardFrom finishes a forward pass from first-layer pre-activations that
// were computed elsewhere. The result can't be trained on.
func (n *Network) ForwardFrom(z []float64) ([]float64, error) {
	first := n.layers[0]
	if err := checkLen("forward from", first.Size(), z); err != nil {
		return nil, err
	}

	for i, v := range z {
		first.outputs.SetVec(i, v)
	}
	first.activate(n.activation)
	prev := first.outputs
	for _, l := range n.layers[1:] {
		l.forward(prev, n.activation)
		prev = l.outputs
	}
	n.input = nil
	n.state = idle

	return n.last().Outputs(), nil
}

// Backpropagate computes the delta of every neuron for the target vector,
// from the output layer back to the first.
func (n *Network) Backpropagate(expected []float64) error {
	if err := checkLen("backpropagate", n.OutputSize(), expected); err != nil {
		return err
	}
	if n.state == idle {
		return errors.Wrap(ErrCallOrder, "backpropagate before forward")
	}

	out := n.last()
	for i, want := range expected {
		out.deltas.SetVec(i, want-out.outputs.AtVec(i))
	}
	out.scaleByDerivative(n.activation)

	for l := len(n.layers) - 2; l >= 0; l-- {
		layer, next := n.layers[l], n.layers[l+1]
		layer.deltas.MulVec(next.weights.T(), next.deltas)
		layer.scaleByDerivative(n.activation)
	}
	n.state = backpropagated

	return nil
}

// Train moves every weight and bias along its delta, scaled by rate. inputs
// must be the vector given to the preceding Forward.
func (n *Network) Train(rate float64, inputs []float64) error {
	if err := checkLen("train", n.InputSize(), inputs); err != nil {
		return err
	}
	if n.state != backpropagated {
		return errors.Wrapf(ErrCallOrder, "train with network %s", n.state)
	}
	if !floats.Equal(inputs, n.input.RawVector().Data) {
		return errors.Wrap(ErrCallOrder, "train inputs differ from the forward inputs")
	}

	var prev mat.Vector = n.input
	for _, l := range n.layers {
		l.update(rate, prev)
		prev = l.outputs
	}
	n.state = idle

	return nil
}

// Argmax returns the index of the largest value, the first one on ties.
func Argmax(v []float64) int {
	if len(v) == 0 {
		return -1
	}
	return floats.MaxIdx(v)
}

// OneHot returns a vector of length n with a 1 at index k.
func OneHot(n, k int) []float64 {
	v := make([]float64, n)
	if k >= 0 && k < n {
		v[k] = 1
	}
	return v
}

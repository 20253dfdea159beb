package nn

import (
	"math"

	"github.com/pkg/errors"
)

// Activation selects the nonlinearity applied by every layer of a Network.
type Activation int

const (
	Sigmoid Activation = iota
	ReLU
)

var ActivationLookup = map[string]Activation{
	"sigmoid": Sigmoid,
	"relu":    ReLU,
}

// ParseActivation resolves an activation by its name.
func ParseActivation(name string) (Activation, error) {
	a, ok := ActivationLookup[name]
	if !ok {
		return 0, errors.Errorf("unknown activation %q", name)
	}
	return a, nil
}

// Activate maps a pre-activation sum to the neuron output.
func (a Activation) Activate(z float64) float64 {
	switch a {
	case ReLU:
		if z > 0 {
			return z
		}
		return 0
	default:
		// keep saturated outputs strictly inside (0, 1)
		s := 1.0 / (1.0 + math.Exp(-z))
		return math.Max(math.SmallestNonzeroFloat64, math.Min(s, sigmoidMax))
	}
}

var sigmoidMax = math.Nextafter(1, 0)

// Derivative returns da/dz expressed in terms of the output a, so backprop
// never needs the pre-activation sum.
func (a Activation) Derivative(out float64) float64 {
	switch a {
	case ReLU:
		if out > 0 {
			return 1
		}
		return 0
	default:
		return out * (1 - out)
	}
}

func (a Activation) valid() bool {
	return a == Sigmoid || a == ReLU
}

func (a Activation) String() string {
	switch a {
	case Sigmoid:
		return "sigmoid"
	case ReLU:
		return "relu"
	}
	return "unknown"
}

// Package split evaluates the first layer of a network on an encrypted input.
//
// The client holds the CKKS secret key and encrypts one image. The server holds
// the first layer's weights and answers with one ciphertext per neuron whose
// first slot is that neuron's pre-activation. The client decrypts them and
// finishes the forward pass in the clear.
package split

import (
	"github.com/pkg/errors"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"

	"neural/config"
	"neural/nn"
)

// Parameters builds the CKKS parameter set described by cfg.
func Parameters(cfg config.Split) (hefloat.Parameters, error) {
	if err := cfg.Validate(); err != nil {
		return hefloat.Parameters{}, err
	}
	params, err := hefloat.NewParametersFromLiteral(hefloat.ParametersLiteral{
		LogN:            cfg.LogN,
		LogQ:            cfg.LogQ,
		LogP:            cfg.LogP,
		LogDefaultScale: cfg.LogDefaultScale,
	})
	if err != nil {
		return hefloat.Parameters{}, errors.Wrap(err, "building ckks parameters")
	}
	return params, nil
}

// span is the power of two the rotate-and-sum folds over for n inputs.
func span(n int) int {
	s := 1
	for s < n {
		s <<= 1
	}
	return s
}

// rotations lists the slot rotations that fold span(n) slots into slot 0.
func rotations(n int) []int {
	var ks []int
	for k := 1; k < span(n); k <<= 1 {
		ks = append(ks, k)
	}
	return ks
}

func checkSlots(params hefloat.Parameters, n int) error {
	if slots := params.MaxSlots(); span(n) > slots {
		return errors.WithStack(&nn.ShapeMismatchError{Op: "encrypt", Want: slots, Got: n})
	}
	return nil
}

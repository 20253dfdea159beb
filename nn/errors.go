package nn

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConstruction is returned by New for an unusable schedule.
	ErrConstruction = errors.New("invalid network construction")
	// ErrShapeMismatch matches every *ShapeMismatchError.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrCallOrder reports Backpropagate or Train called without the
	// activations they depend on.
	ErrCallOrder = errors.New("call order violated")
)

// ShapeMismatchError describes a vector whose length disagrees with the
// network dimensions.
type ShapeMismatchError struct {
	Op   string
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: shape mismatch: want %d values, got %d", e.Op, e.Want, e.Got)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}

func checkLen(op string, want int, v []float64) error {
	if len(v) != want {
		return &ShapeMismatchError{Op: op, Want: want, Got: len(v)}
	}
	return nil
}

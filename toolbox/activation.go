package toolbox

import (
	"fmt"

	"github.com/ahmedtd/neuralnet/numeric"
)

type ActivationType int

const (
	Linear ActivationType = iota
	Sigmoid
	ReLU
	Tanh
)

func (a ActivationType) String() string {
	switch a {
	case Linear:
		return "linear"
	case Sigmoid:
		return "sigmoid"
	case ReLU:
		return "relu"
	case Tanh:
		return "tanh"
	default:
		return fmt.Sprintf("ActivationType(%d)", int(a))
	}
}

func ParseActivation(s string) (ActivationType, error) {
	switch s {
	case "linear":
		return Linear, nil
	case "sigmoid":
		return Sigmoid, nil
	case "relu":
		return ReLU, nil
	case "tanh":
		return Tanh, nil
	default:
		return 0, fmt.Errorf("unknown activation %q: %w", s, numeric.ErrInvalidArgument)
	}
}

// Activate applies the activation elementwise, returning a new slice of the
// same length.
func Activate[T numeric.Number](kind ActivationType, in []T) ([]T, error) {
	out := make([]T, len(in))
	if err := ActivateInto(kind, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActivateInto writes activation(z) into a.  z and a may alias.
func ActivateInto[T numeric.Number](kind ActivationType, z, a []T) error {
	if len(z) != len(a) {
		return fmt.Errorf("activation output has length %d, want %d: %w", len(a), len(z), numeric.ErrShapeMismatch)
	}

	switch kind {
	case Linear:
		copy(a, z)
	case Sigmoid:
		for i := range z {
			s, err := sigmoid(z[i])
			if err != nil {
				return err
			}
			a[i] = s
		}
	case ReLU:
		for i := range z {
			a[i] = relu(z[i])
		}
	case Tanh:
		for i := range z {
			v, err := numeric.TryTanh(z[i])
			if err != nil {
				return err
			}
			a[i] = v
		}
	default:
		return fmt.Errorf("unhandled activation function %v: %w", kind, numeric.ErrInvalidArgument)
	}
	return nil
}

// ActivationDerivative is d activation(x) / dx evaluated at the pre-activation
// value x.  The ReLU derivative at 0 is 0.
func ActivationDerivative[T numeric.Number](kind ActivationType, x T) (T, error) {
	switch kind {
	case Linear:
		return numeric.One[T](), nil
	case Sigmoid:
		s, err := sigmoid(x)
		if err != nil {
			return 0, err
		}
		return s * (numeric.One[T]() - s), nil
	case ReLU:
		if numeric.Gt(x, numeric.Zero[T]()) {
			return numeric.One[T](), nil
		}
		return numeric.Zero[T](), nil
	case Tanh:
		t, err := numeric.TryTanh(x)
		if err != nil {
			return 0, err
		}
		return numeric.One[T]() - t*t, nil
	default:
		return 0, fmt.Errorf("unhandled activation function %v: %w", kind, numeric.ErrInvalidArgument)
	}
}

func sigmoid[T numeric.Number](x T) (T, error) {
	e, err := numeric.TryExp(-x)
	if err != nil {
		return 0, err
	}
	return numeric.One[T]() / (numeric.One[T]() + e), nil
}

func relu[T numeric.Number](x T) T {
	if numeric.Gt(x, numeric.Zero[T]()) {
		return x
	}
	return numeric.Zero[T]()
}

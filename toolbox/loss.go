package toolbox

import (
	"fmt"

	"github.com/ahmedtd/neuralnet/numeric"
)

type LossFunctionType int

const (
	MeanSquaredError LossFunctionType = iota
	CrossEntropy
	BinaryCrossEntropy
)

// Eps keeps log and division arguments away from zero.  It is not
// configurable.
const Eps = 1e-15

func (l LossFunctionType) String() string {
	switch l {
	case MeanSquaredError:
		return "mse"
	case CrossEntropy:
		return "cross-entropy"
	case BinaryCrossEntropy:
		return "binary-cross-entropy"
	default:
		return fmt.Sprintf("LossFunctionType(%d)", int(l))
	}
}

func ParseLossFunction(s string) (LossFunctionType, error) {
	switch s {
	case "mse":
		return MeanSquaredError, nil
	case "cross-entropy":
		return CrossEntropy, nil
	case "binary-cross-entropy":
		return BinaryCrossEntropy, nil
	default:
		return 0, fmt.Errorf("unknown loss function %q: %w", s, numeric.ErrInvalidArgument)
	}
}

// Loss computes the loss value over a prediction/target pair of vectors.
// BinaryCrossEntropy accepts exactly one pair.
func Loss[T numeric.Number](kind LossFunctionType, predictions, targets []T) (T, error) {
	if len(predictions) != len(targets) {
		return 0, fmt.Errorf("%d predictions for %d targets: %w", len(predictions), len(targets), numeric.ErrShapeMismatch)
	}

	switch kind {
	case MeanSquaredError:
		return MeanSquaredErrorLoss(predictions, targets)
	case CrossEntropy:
		return CrossEntropyLoss(predictions, targets)
	case BinaryCrossEntropy:
		if len(predictions) != 1 {
			return 0, fmt.Errorf("binary cross-entropy expects a single prediction and target, got %d: %w", len(predictions), numeric.ErrInvalidArgument)
		}
		return BinaryCrossEntropyLoss(predictions[0], targets[0])
	default:
		return 0, fmt.Errorf("unhandled loss function %v: %w", kind, numeric.ErrInvalidArgument)
	}
}

// MeanSquaredErrorLoss is mean((p-t)^2).  Discrete representations use integer
// division for the mean.
func MeanSquaredErrorLoss[T numeric.Number](predictions, targets []T) (T, error) {
	if err := checkLossInputs(predictions, targets); err != nil {
		return 0, err
	}

	sum := numeric.Zero[T]()
	for i := range predictions {
		diff := predictions[i] - targets[i]
		sum += diff * diff
	}
	return finiteLoss(sum / numeric.ToNumber[T](float64(len(predictions))))
}

// CrossEntropyLoss is mean(-t*ln(p)) with p clamped below at Eps.
func CrossEntropyLoss[T numeric.Number](predictions, targets []T) (T, error) {
	if err := checkLossInputs(predictions, targets); err != nil {
		return 0, err
	}

	eps := numeric.ToNumber[T](Eps)
	sum := numeric.Zero[T]()
	for i := range predictions {
		p := predictions[i]
		if numeric.Lt(p, eps) {
			p = eps
		}
		lnp, err := numeric.TryLn(p)
		if err != nil {
			return 0, err
		}
		sum -= targets[i] * lnp
	}
	return finiteLoss(sum / numeric.ToNumber[T](float64(len(predictions))))
}

// BinaryCrossEntropyLoss is -(t*ln(p) + (1-t)*ln(1-p)) for a single prediction,
// with p clamped into [Eps, 1-Eps] so both logarithms stay finite.
func BinaryCrossEntropyLoss[T numeric.Number](prediction, target T) (T, error) {
	one := numeric.One[T]()
	p, oneMinusP := clampProbability(prediction)

	lnp, err := numeric.TryLn(p)
	if err != nil {
		return 0, err
	}
	ln1mp, err := numeric.TryLn(oneMinusP)
	if err != nil {
		return 0, err
	}
	return finiteLoss(-(target*lnp + (one-target)*ln1mp))
}

// LossDerivative returns dLoss/dPrediction for each element.  The result is not
// averaged; divide by the batch size for the gradient of an averaged loss.
func LossDerivative[T numeric.Number](kind LossFunctionType, predictions, targets []T) ([]T, error) {
	if len(predictions) != len(targets) {
		return nil, fmt.Errorf("%d predictions for %d targets: %w", len(predictions), len(targets), numeric.ErrShapeMismatch)
	}

	eps := numeric.ToNumber[T](Eps)
	one := numeric.One[T]()
	grad := make([]T, len(predictions))

	switch kind {
	case MeanSquaredError:
		two := numeric.ToNumber[T](2)
		for i := range predictions {
			grad[i] = two * (predictions[i] - targets[i])
		}
	case CrossEntropy:
		for i := range predictions {
			p := predictions[i]
			if numeric.Lt(p, eps) {
				p = eps
			}
			if p == 0 {
				return nil, fmt.Errorf("cross-entropy derivative at element %d divides by zero: %w", i, numeric.ErrNumericInstability)
			}
			grad[i] = -targets[i] / p
		}
	case BinaryCrossEntropy:
		for i := range predictions {
			p, oneMinusP := clampProbability(predictions[i])
			if p == 0 || oneMinusP == 0 {
				return nil, fmt.Errorf("binary cross-entropy derivative at element %d divides by zero: %w", i, numeric.ErrNumericInstability)
			}
			t := targets[i]
			grad[i] = -(t / p) + (one-t)/oneMinusP
		}
	default:
		return nil, fmt.Errorf("unhandled loss function %v: %w", kind, numeric.ErrInvalidArgument)
	}

	for i, g := range grad {
		if !numeric.IsFinite(g) {
			return nil, fmt.Errorf("loss derivative at element %d is %v: %w", i, g, numeric.ErrNumericInstability)
		}
	}
	return grad, nil
}

// clampProbability clamps p into [Eps, 1-Eps] and returns it along with 1-p
// clamped below at Eps.
func clampProbability[T numeric.Number](p T) (T, T) {
	eps := numeric.ToNumber[T](Eps)
	one := numeric.One[T]()
	if numeric.Lt(p, eps) {
		p = eps
	} else if numeric.Gt(p, one-eps) {
		p = one - eps
	}
	oneMinusP := one - p
	if numeric.Lt(oneMinusP, eps) {
		oneMinusP = eps
	}
	return p, oneMinusP
}

func checkLossInputs[T numeric.Number](predictions, targets []T) error {
	if len(predictions) != len(targets) {
		return fmt.Errorf("%d predictions for %d targets: %w", len(predictions), len(targets), numeric.ErrShapeMismatch)
	}
	if len(predictions) == 0 {
		// The mean over zero elements divides by zero.
		return fmt.Errorf("empty predictions: %w: %w", numeric.ErrInvalidArgument, numeric.ErrNumericInstability)
	}
	return nil
}

func finiteLoss[T numeric.Number](v T) (T, error) {
	if !numeric.IsFinite(v) {
		return 0, fmt.Errorf("loss is %v: %w", v, numeric.ErrNumericInstability)
	}
	return v, nil
}

package toolbox

import (
	"errors"
	"math"
	"testing"

	"github.com/ahmedtd/neuralnet/numeric"
	"github.com/chewxy/math32"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestMeanSquaredError(t *testing.T) {
	got, err := Loss(MeanSquaredError, []float32{1, 2, 3}, []float32{1, 2, 4})
	if err != nil {
		t.Fatalf("Loss: %v", err)
	}
	if math32.Abs(got-1.0/3.0) > 1e-6 {
		t.Errorf("MSE = %v, want 1/3", got)
	}

	// Integer division truncates the mean.
	gotInt, err := Loss(MeanSquaredError, []int32{1, 2, 3}, []int32{1, 2, 4})
	if err != nil {
		t.Fatalf("Loss on int32: %v", err)
	}
	if gotInt != 0 {
		t.Errorf("integer MSE = %v, want 0", gotInt)
	}
}

func TestMeanSquaredErrorOfIdenticalVectorsIsZero(t *testing.T) {
	for _, p := range [][]float64{{5, 5, 5}, {-1.5, 0, 2.25, 1e6}, {0}} {
		got, err := Loss(MeanSquaredError, p, p)
		if err != nil {
			t.Fatalf("Loss(%v): %v", p, err)
		}
		if got != 0 {
			t.Errorf("MSE(p, p) = %v for p=%v, want 0", got, p)
		}
	}
}

func TestCrossEntropy(t *testing.T) {
	got, err := Loss(CrossEntropy, []float32{0.9, 0.2}, []float32{1, 0})
	if err != nil {
		t.Fatalf("Loss: %v", err)
	}
	if want := -math32.Log(0.9) / 2; math32.Abs(got-want) > 1e-6 {
		t.Errorf("CE = %v, want %v", got, want)
	}

	got, err = Loss(CrossEntropy, []float32{1, 0}, []float32{1, 0})
	if err != nil {
		t.Fatalf("Loss: %v", err)
	}
	if math32.Abs(got) > 1e-6 {
		t.Errorf("CE of a perfect prediction = %v, want 0", got)
	}
}

func TestBinaryCrossEntropy(t *testing.T) {
	tests := []struct {
		name             string
		prediction, want float64
		target           float64
	}{
		{"positive", 0.8, -math.Log(0.8), 1},
		{"negative", 0.2, -math.Log(0.8), 0},
		{"saturated positive", 1, 0, 1},
		{"saturated negative", 0, 0, 0},
	}
	for _, tc := range tests {
		got, err := BinaryCrossEntropyLoss(tc.prediction, tc.target)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("%s: BCE(%v, %v) = %v, want %v", tc.name, tc.prediction, tc.target, got, tc.want)
		}
	}

	got, err := BinaryCrossEntropyLoss(float32(1), float32(1))
	if err != nil {
		t.Fatalf("float32 BCE: %v", err)
	}
	if math32.Abs(got) > 1e-6 {
		t.Errorf("float32 BCE(1, 1) = %v, want 0", got)
	}

	batched, err := Loss(BinaryCrossEntropy, []float64{0.8}, []float64{1})
	if err != nil {
		t.Fatalf("Loss(BinaryCrossEntropy): %v", err)
	}
	if math.Abs(batched+math.Log(0.8)) > 1e-6 {
		t.Errorf("batched BCE = %v, want %v", batched, -math.Log(0.8))
	}
}

func TestLossContractViolations(t *testing.T) {
	if _, err := Loss(BinaryCrossEntropy, []float32{0.1, 0.2}, []float32{0, 1}); !errors.Is(err, numeric.ErrInvalidArgument) {
		t.Errorf("BCE with two pairs error = %v, want ErrInvalidArgument", err)
	}
	if _, err := Loss(BinaryCrossEntropy, []float32{}, []float32{}); !errors.Is(err, numeric.ErrInvalidArgument) {
		t.Errorf("BCE with no pairs error = %v, want ErrInvalidArgument", err)
	}

	for _, kind := range []LossFunctionType{MeanSquaredError, CrossEntropy} {
		_, err := Loss(kind, []float64{}, []float64{})
		if !errors.Is(err, numeric.ErrInvalidArgument) || !errors.Is(err, numeric.ErrNumericInstability) {
			t.Errorf("%v on empty input error = %v, want ErrInvalidArgument and ErrNumericInstability", kind, err)
		}
	}

	if _, err := Loss(MeanSquaredError, []float64{1, 2}, []float64{1}); !errors.Is(err, numeric.ErrShapeMismatch) {
		t.Errorf("mismatched lengths error = %v, want ErrShapeMismatch", err)
	}
	if _, err := LossDerivative(CrossEntropy, []float64{1, 2}, []float64{1}); !errors.Is(err, numeric.ErrShapeMismatch) {
		t.Errorf("mismatched derivative lengths error = %v, want ErrShapeMismatch", err)
	}
	if _, err := Loss(CrossEntropy, []int32{1}, []int32{1}); !errors.Is(err, numeric.ErrUnsupportedOperation) {
		t.Errorf("CE on int32 error = %v, want ErrUnsupportedOperation", err)
	}
	if _, err := Loss(LossFunctionType(9), []float32{1}, []float32{1}); !errors.Is(err, numeric.ErrInvalidArgument) {
		t.Errorf("unknown loss error = %v, want ErrInvalidArgument", err)
	}
}

func TestNonFiniteLoss(t *testing.T) {
	_, err := Loss(MeanSquaredError, []float32{math32.Inf(1)}, []float32{0})
	if !errors.Is(err, numeric.ErrNumericInstability) {
		t.Errorf("infinite MSE error = %v, want ErrNumericInstability", err)
	}
}

func TestMeanSquaredErrorDerivative(t *testing.T) {
	predictions := []float32{0.3, -1.25, 7}
	targets := []float32{1, 0.5, 7}

	got, err := LossDerivative(MeanSquaredError, predictions, targets)
	if err != nil {
		t.Fatalf("LossDerivative: %v", err)
	}

	want := make([]float32, len(predictions))
	for i := range predictions {
		want[i] = 2 * (predictions[i] - targets[i])
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Wrong derivative; diff (-got +want)\n%s", diff)
	}

	gotInt, err := LossDerivative(MeanSquaredError, []int64{3, 1}, []int64{1, 4})
	if err != nil {
		t.Fatalf("LossDerivative on int64: %v", err)
	}
	if diff := cmp.Diff(gotInt, []int64{4, -6}); diff != "" {
		t.Errorf("Wrong integer derivative; diff (-got +want)\n%s", diff)
	}
}

func TestCrossEntropyDerivative(t *testing.T) {
	got, err := LossDerivative(CrossEntropy, []float64{0.5, 0, 0.25}, []float64{1, 1, 0})
	if err != nil {
		t.Fatalf("LossDerivative: %v", err)
	}
	want := []float64{-2, -1 / Eps, 0}
	if diff := cmp.Diff(got, want, cmpopts.EquateApprox(1e-12, 0)); diff != "" {
		t.Errorf("Wrong derivative; diff (-got +want)\n%s", diff)
	}

	// Integers truncate Eps to zero, so a zero prediction divides by zero.
	if _, err := LossDerivative(CrossEntropy, []int32{0}, []int32{1}); !errors.Is(err, numeric.ErrNumericInstability) {
		t.Errorf("integer CE derivative error = %v, want ErrNumericInstability", err)
	}
}

func TestBinaryCrossEntropyDerivative(t *testing.T) {
	p := []float64{0.8, 0.3}
	y := []float64{1, 0}
	got, err := LossDerivative(BinaryCrossEntropy, p, y)
	if err != nil {
		t.Fatalf("LossDerivative: %v", err)
	}
	want := []float64{-1 / 0.8, 1 / 0.7}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("BCE'(%v, %v) = %v, want %v", p[i], y[i], got[i], want[i])
		}
	}

	// Compare against a central difference of the scalar loss.
	const h = 1e-6
	for _, pc := range []float64{0.1, 0.45, 0.9} {
		for _, tc := range []float64{0, 0.3, 1} {
			hi, _ := BinaryCrossEntropyLoss(pc+h, tc)
			lo, _ := BinaryCrossEntropyLoss(pc-h, tc)
			fd := (hi - lo) / (2 * h)

			d, err := LossDerivative(BinaryCrossEntropy, []float64{pc}, []float64{tc})
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(d[0]-fd) > 1e-4 {
				t.Errorf("BCE'(%v, %v) = %v, finite difference %v", pc, tc, d[0], fd)
			}
		}
	}

	// Saturated predictions stay finite thanks to clamping.
	sat, err := LossDerivative(BinaryCrossEntropy, []float64{0, 1}, []float64{0, 1})
	if err != nil {
		t.Fatalf("saturated BCE derivative: %v", err)
	}
	for i, v := range sat {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			t.Errorf("saturated derivative %d = %v", i, v)
		}
	}
}

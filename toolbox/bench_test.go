package toolbox

import (
	"math/rand"
	"testing"
)

func BenchmarkApply(b *testing.B) {
	r := rand.New(rand.NewSource(12345))
	l0, err := MakeDense[float32](ReLU, 784, 128, r)
	if err != nil {
		b.Fatalf("MakeDense: %v", err)
	}
	l1, err := MakeDense[float32](Linear, 128, 10, r)
	if err != nil {
		b.Fatalf("MakeDense: %v", err)
	}
	net := &Network[float32]{Layers: []Layer[float32]{l0, l1}}

	x := make([]float32, 784)
	for i := range x {
		x[i] = r.Float32()
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := net.Apply(x); err != nil {
			b.Fatalf("Apply: %v", err)
		}
	}
}

func BenchmarkLinReg(b *testing.B) {
	x, y := generate2DLinRegDataset(1000)

	lay, err := DenseFrom[float64](nil, 1, 2)
	if err != nil {
		b.Fatalf("DenseFrom: %v", err)
	}
	net := &Network[float64]{
		LossFunction: MeanSquaredError,
		Layers:       []Layer[float64]{lay},
	}
	sp := net.MakeSGDParameters(0.05, 4)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := net.SGDStep(x, y, sp); err != nil {
			b.Fatalf("SGDStep: %v", err)
		}
	}
}

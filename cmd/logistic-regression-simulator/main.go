// Command logistic-regression-simulator fits a linear decision boundary two
// ways, once with the toolbox (a sigmoid dense layer trained on binary
// cross-entropy) and once with a hand-written logistic regression, and logs
// both so they can be compared.
package main

import (
	"flag"
	"log"
	"math/rand"

	"github.com/ahmedtd/neuralnet/toolbox"
	"github.com/chewxy/math32"
)

func main() {
	batchSize := flag.Int("samples", 1000, "Number of generated points")
	alpha := flag.Float64("learning-rate", 0.5, "Learning rate")
	steps := flag.Int("steps", 20000, "Gradient descent steps")
	workers := flag.Int("workers", 4, "Goroutines accumulating toolbox gradients")
	flag.Parse()

	x, y := generateDataset(*batchSize)

	num0s := 0
	num1s := 0
	for k := range y {
		if y[k][0] == 1 {
			num1s++
		} else {
			num0s++
		}
	}
	log.Printf("original data set has %d 1s and %d 0s", num1s, num0s)

	lay, err := toolbox.DenseFrom[float32](nil, 1, 2)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	lay.SetActivation(toolbox.Sigmoid)
	net := &toolbox.Network[float32]{
		LossFunction: toolbox.BinaryCrossEntropy,
		Layers:       []toolbox.Layer[float32]{lay},
	}

	sp := net.MakeSGDParameters(float32(*alpha), *workers)
	var loss float32
	for s := 0; s < *steps; s++ {
		loss, err = net.SGDStep(x, y, sp)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
	}
	w, b := lay.Params()
	log.Printf("toolbox learned model W=%v B=%v loss=%v", w.V, b.V, loss)
	log.Printf("toolbox learned decision boundary x1=%v*x0+%v", -w.At2(0, 0)/w.At2(0, 1), -b.At1(0)/w.At2(0, 1))

	toolboxNumMispredictions := 0
	for k := range x {
		pred, err := net.Apply(x[k])
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		prediction := float32(0.0)
		if pred[0] > 0.5 {
			prediction = 1.0
		}
		if prediction != y[k][0] {
			toolboxNumMispredictions++
		}
	}
	log.Printf("toolbox had %d mispredictions (%v%%)", toolboxNumMispredictions, float32(toolboxNumMispredictions)/float32(len(x))*float32(100))

	m := &Model{}
	m.Learn(x, y, float32(*alpha), 0.0, *steps)
	log.Printf("Learned model W1=%v W2=%v B=%v", m.W1, m.W2, m.B)

	slope := -m.W1 / m.W2
	intercept := -m.B / m.W2
	log.Printf("Learned decision boundary x2=%v*x1+%v", slope, intercept)

	handNumMispredictions := 0
	for k := range x {
		if m.apply(x[k]) != y[k][0] {
			handNumMispredictions++
		}
	}
	log.Printf("hand had %d mispredictions (%v%%)", handNumMispredictions, float32(handNumMispredictions)/float32(len(x))*float32(100))
}

func generateDataset(m int) (x, y [][]float32) {
	r := rand.New(rand.NewSource(12345))

	x = make([][]float32, m)
	y = make([][]float32, m)

	for i := 0; i < m; i++ {
		// Generate a point and classify it according to the "true"
		// distribution.
		x1 := r.Float32()
		x2 := r.Float32()
		y1 := float32(0.0)
		if x2 > 1.0*x1+0.0 {
			y1 = 1.0
		}

		x[i] = []float32{x1, x2}
		y[i] = []float32{y1}
	}

	return x, y
}

type Model struct {
	W1, W2 float32
	B      float32
}

func sigmoid(z float32) float32 {
	return float32(1) / (float32(1) + math32.Exp(-z))
}

func (m *Model) apply(x []float32) float32 {
	if sigmoid(m.W1*x[0]+m.W2*x[1]+m.B) > 0.5 {
		return 1
	}
	return 0
}

func (m *Model) loss(x, y [][]float32, lambda float32) float32 {
	batchSize := len(x)

	predictionCost := float32(0)
	regularizationCost := float32(0)

	for i := 0; i < batchSize; i++ {
		pred := sigmoid(m.W1*x[i][0] + m.W2*x[i][1] + m.B)
		if y[i][0] == 1.0 {
			predictionCost += -math32.Log(pred)
		} else {
			predictionCost += -math32.Log(float32(1) - pred)
		}

		regularizationCost += m.W1*m.W1 + m.W2*m.W2
	}

	// The regularization cost is divided by 2n, mostly to make the gradient math simpler.
	return predictionCost/float32(batchSize) + lambda*regularizationCost/float32(2)/float32(batchSize)
}

// gradient uses the closed form of the sigmoid + binary cross-entropy
// derivative, (pred - y), which is what the toolbox computes by chaining the
// two derivatives.
func (m *Model) gradient(x, y [][]float32, lambda float32) (dW1, dW2, dB float32) {
	batchSize := len(x)

	for i := 0; i < batchSize; i++ {
		pred := sigmoid(m.W1*x[i][0] + m.W2*x[i][1] + m.B)
		dW1 += (pred - y[i][0]) * x[i][0]
		dW2 += (pred - y[i][0]) * x[i][1]
		dB += pred - y[i][0]
	}

	// Regularize: encourage model parameters to be small.
	dW1 += lambda * m.W1
	dW2 += lambda * m.W2

	dW1 /= float32(batchSize)
	dW2 /= float32(batchSize)
	dB /= float32(batchSize)

	return dW1, dW2, dB
}

func (m *Model) Learn(x, y [][]float32, learningRate float32, lambda float32, steps int) {
	var dJdW1, dJdW2, dJdb float32
	for i := 0; i < steps; i++ {
		dJdW1, dJdW2, dJdb = m.gradient(x, y, lambda)
		m.W1 -= learningRate * dJdW1
		m.W2 -= learningRate * dJdW2
		m.B -= learningRate * dJdb

		if i%(steps/10+1) == 0 {
			log.Printf("step=%v W1=%v W2=%v B=%v djdw1=%v djdw2=%v djdb=%v loss=%v", i, m.W1, m.W2, m.B, dJdW1, dJdW2, dJdb, m.loss(x, y, lambda))
		}
	}
}

package main

import (
	"math/rand"
	"testing"

	"github.com/ahmedtd/neuralnet/toolbox"
	"github.com/google/go-cmp/cmp"
)

func TestBuildNetwork(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	net, err := buildNetwork("windowed:4:3:relu, dense:2:tanh,dense:1:sigmoid", 5, toolbox.BinaryCrossEntropy, r)
	if err != nil {
		t.Fatalf("buildNetwork: %v", err)
	}

	type layerShape struct {
		Activation toolbox.ActivationType
		W, B       []int
	}
	var got []layerShape
	for _, lay := range net.Layers {
		w, b := lay.Params()
		got = append(got, layerShape{lay.Activation(), w.Shape, b.Shape})
	}
	want := []layerShape{
		{toolbox.ReLU, []int{4, 3}, []int{4}},
		{toolbox.Tanh, []int{2, 4}, []int{2}},
		{toolbox.Sigmoid, []int{1, 2}, []int{1}},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Wrong layers; diff (-got +want)\n%s", diff)
	}
	if net.LossFunction != toolbox.BinaryCrossEntropy {
		t.Errorf("LossFunction = %v, want binary-cross-entropy", net.LossFunction)
	}
}

func TestBuildNetworkErrors(t *testing.T) {
	for _, arch := range []string{
		"",
		"dense:3",
		"dense:x:relu",
		"dense:3:softplus",
		"dense:3:4:relu",
		"windowed:3:relu",
		"conv:3:3:relu",
		"dense:0:relu",
	} {
		r := rand.New(rand.NewSource(1))
		if _, err := buildNetwork(arch, 2, toolbox.MeanSquaredError, r); err == nil {
			t.Errorf("buildNetwork(%q) succeeded, want error", arch)
		}
	}
}

func TestParseInput(t *testing.T) {
	got, err := parseInput("0.5, -1,2")
	if err != nil {
		t.Fatalf("parseInput: %v", err)
	}
	if diff := cmp.Diff(got, []float32{0.5, -1, 2}); diff != "" {
		t.Errorf("Wrong input; diff (-got +want)\n%s", diff)
	}

	for _, in := range []string{"", "1,,2", "a"} {
		if _, err := parseInput(in); err == nil {
			t.Errorf("parseInput(%q) succeeded, want error", in)
		}
	}
}

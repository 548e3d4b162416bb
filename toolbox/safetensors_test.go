package toolbox

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCheckpointRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(12345))
	l0, err := MakeDense[float32](Tanh, 3, 5, r)
	if err != nil {
		t.Fatalf("MakeDense: %v", err)
	}
	l1, err := NewWindowed(Sigmoid, [][]float32{{1, 2}, {3, 4}}, []float32{-1, 1})
	if err != nil {
		t.Fatalf("NewWindowed: %v", err)
	}
	net := &Network[float32]{
		LossFunction: CrossEntropy,
		Layers:       []Layer[float32]{l0, l1},
	}
	sp := net.MakeSGDParameters(0.25, 2)
	sp.step = 17

	tensors := map[string]*Array[float32]{}
	net.DumpTensors(tensors)
	sp.DumpTensors(tensors)

	buf := &bytes.Buffer{}
	if err := WriteSafeTensors(buf, tensors); err != nil {
		t.Fatalf("WriteSafeTensors: %v", err)
	}

	got, err := ReadSafeTensors(buf)
	if err != nil {
		t.Fatalf("ReadSafeTensors: %v", err)
	}
	if diff := cmp.Diff(got, tensors); diff != "" {
		t.Fatalf("Tensors changed in round trip; diff (-got +want)\n%s", diff)
	}

	r2 := rand.New(rand.NewSource(999))
	m0, err := MakeDense[float32](Tanh, 3, 5, r2)
	if err != nil {
		t.Fatalf("MakeDense: %v", err)
	}
	m1, err := WindowedFrom[float32](nil, 2, 2)
	if err != nil {
		t.Fatalf("WindowedFrom: %v", err)
	}
	restored := &Network[float32]{
		LossFunction: CrossEntropy,
		Layers:       []Layer[float32]{m0, m1},
	}
	restoredSP := restored.MakeSGDParameters(1, 1)
	if err := restored.LoadTensors(got); err != nil {
		t.Fatalf("Network.LoadTensors: %v", err)
	}
	if err := restoredSP.LoadTensors(got); err != nil {
		t.Fatalf("SGDParameters.LoadTensors: %v", err)
	}

	for l := range net.Layers {
		w, b := restored.Layers[l].Params()
		wantW, wantB := net.Layers[l].Params()
		if diff := cmp.Diff(w, wantW); diff != "" {
			t.Errorf("layer %d weights; diff (-got +want)\n%s", l, diff)
		}
		if diff := cmp.Diff(b, wantB); diff != "" {
			t.Errorf("layer %d biases; diff (-got +want)\n%s", l, diff)
		}
	}
	if restoredSP.Step() != 17 || restoredSP.LearningRate() != 0.25 {
		t.Errorf("restored SGD state step=%d lr=%v, want 17 and 0.25", restoredSP.Step(), restoredSP.LearningRate())
	}
}

func TestLoadTensorsRejectsWrongShape(t *testing.T) {
	lay, err := DenseFrom([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	if err != nil {
		t.Fatalf("DenseFrom: %v", err)
	}
	net := &Network[float32]{Layers: []Layer[float32]{lay}}

	tensors := map[string]*Array[float32]{
		"net.0.weights": MakeArray[float32](3, 2),
		"net.0.biases":  MakeArray[float32](2),
	}
	if err := net.LoadTensors(tensors); err == nil {
		t.Errorf("LoadTensors accepted transposed weights")
	}
	w, _ := lay.Params()
	if diff := cmp.Diff(w.V, []float32{1, 2, 3, 4, 5, 6}); diff != "" {
		t.Errorf("rejected load changed weights; diff (-got +want)\n%s", diff)
	}

	if err := net.LoadTensors(map[string]*Array[float32]{}); err == nil {
		t.Errorf("LoadTensors accepted an empty checkpoint")
	}
}

func TestReadSafeTensorsRejectsCorruptInput(t *testing.T) {
	writeRaw := func(header string, data []byte) *bytes.Buffer {
		buf := &bytes.Buffer{}
		binary.Write(buf, binary.LittleEndian, uint64(len(header)))
		buf.WriteString(header)
		buf.Write(data)
		return buf
	}

	tests := []struct {
		name   string
		header string
		data   []byte
	}{
		{"bad dtype", `{"a":{"dtype":"F16","shape":[1],"data_offsets":[0,2]}}`, make([]byte, 2)},
		{"offsets past data", `{"a":{"dtype":"F32","shape":[2],"data_offsets":[0,8]}}`, make([]byte, 4)},
		{"shape disagrees with offsets", `{"a":{"dtype":"F32","shape":[3],"data_offsets":[0,8]}}`, make([]byte, 8)},
		{"scalar shape", `{"a":{"dtype":"F32","shape":[],"data_offsets":[0,4]}}`, make([]byte, 4)},
		{"not json", `{"a":`, nil},
		{"reversed offsets", `{"a":{"dtype":"F32","shape":[1],"data_offsets":[4,0]}}`, make([]byte, 4)},
		{"shape overflows element count", `{"a":{"dtype":"F32","shape":[4611686018427387905],"data_offsets":[0,4]}}`, make([]byte, 4)},
		{"shape product overflows", `{"a":{"dtype":"F32","shape":[65536,65536,65536],"data_offsets":[0,4]}}`, make([]byte, 4)},
		{"zero dimension", `{"a":{"dtype":"F32","shape":[0],"data_offsets":[0,0]}}`, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ReadSafeTensors(writeRaw(tc.header, tc.data)); err == nil {
				t.Errorf("ReadSafeTensors accepted corrupt input")
			}
		})
	}

	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, uint64(1<<40))
	if _, err := ReadSafeTensors(buf); err == nil {
		t.Errorf("ReadSafeTensors accepted a huge header length")
	}
}

func TestWriteSafeTensorsRejectsInconsistentTensors(t *testing.T) {
	tests := []struct {
		name   string
		tensor *Array[float32]
	}{
		{"nil", nil},
		{"short values", &Array[float32]{V: []float32{1, 2, 3}, Shape: []int{2, 2}}},
		{"no shape", &Array[float32]{V: []float32{1}}},
		{"rank four", &Array[float32]{V: []float32{1}, Shape: []int{1, 1, 1, 1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			err := WriteSafeTensors(buf, map[string]*Array[float32]{
				"ok":  ArrayOf[float32](1, 2),
				"bad": tc.tensor,
			})
			if err == nil {
				t.Fatalf("WriteSafeTensors accepted an inconsistent tensor")
			}
			if buf.Len() != 0 {
				t.Errorf("WriteSafeTensors wrote %d bytes before failing", buf.Len())
			}
		})
	}
}

func TestWriteSafeTensorsMatrixRoundTrip(t *testing.T) {
	w := MakeArray[float32](2, 3)
	for i := range w.V {
		w.V[i] = float32(i) - 2.5
	}
	buf := &bytes.Buffer{}
	if err := WriteSafeTensors(buf, map[string]*Array[float32]{"w": w}); err != nil {
		t.Fatalf("WriteSafeTensors: %v", err)
	}

	got, err := ReadSafeTensors(buf)
	if err != nil {
		t.Fatalf("ReadSafeTensors: %v", err)
	}
	want := &Array[float32]{V: []float32{-2.5, -1.5, -0.5, 0.5, 1.5, 2.5}, Shape: []int{2, 3}}
	if diff := cmp.Diff(got["w"], want); diff != "" {
		t.Errorf("Wrong tensor; diff (-got +want)\n%s", diff)
	}
}

package toolbox

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"

	"github.com/ahmedtd/neuralnet/numeric"
)

type SafeTensorInfo struct {
	DType       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets []int  `json:"data_offsets"`
}

// maxRank is the highest tensor rank a checkpoint may hold.
const maxRank = 3

// WriteSafeTensors writes float32 tensors in the safetensors layout: an 8-byte
// little-endian header length, a JSON header, then the raw values in key
// order.  Every tensor must be readable by ReadSafeTensors, so an empty,
// over-rank, or inconsistent shape is rejected before anything is written.
func WriteSafeTensors(w io.Writer, tensors map[string]*Array[float32]) error {
	keys := slices.Sorted(maps.Keys(tensors))

	header := make(map[string]SafeTensorInfo, len(keys))
	dataLen := 0
	for _, k := range keys {
		t := tensors[k]
		if t == nil {
			return fmt.Errorf("tensor %s is nil: %w", k, numeric.ErrInvalidArgument)
		}
		if len(t.Shape) == 0 || len(t.Shape) > maxRank || slices.Min(t.Shape) < 1 || product(t.Shape) != len(t.V) {
			return fmt.Errorf("tensor %s has %d values for shape %v: %w", k, len(t.V), t.Shape, numeric.ErrShapeMismatch)
		}
		header[k] = SafeTensorInfo{
			DType:       "F32",
			Shape:       slices.Clone(t.Shape),
			DataOffsets: []int{dataLen, dataLen + 4*len(t.V)},
		}
		dataLen += 4 * len(t.V)
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("while marshaling header: %w", err)
	}

	out := make([]byte, 8, 8+len(headerBytes)+dataLen)
	binary.LittleEndian.PutUint64(out, uint64(len(headerBytes)))
	out = append(out, headerBytes...)
	for _, k := range keys {
		for _, v := range tensors[k].V {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}

	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("while writing checkpoint: %w", err)
	}
	return nil
}

// maxHeaderLen bounds the JSON header so a corrupt length cannot trigger a
// huge allocation.
const maxHeaderLen = 100 << 20

func ReadSafeTensors(r io.Reader) (map[string]*Array[float32], error) {
	var headerLen uint64
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("while reading header length: %w", err)
	}
	if headerLen > maxHeaderLen {
		return nil, fmt.Errorf("header length %d exceeds %d", headerLen, maxHeaderLen)
	}

	headerBytes := make([]byte, int(headerLen))
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("while reading header: %w", err)
	}

	header := map[string]SafeTensorInfo{}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("while reading header: %w", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("while reading tensor data: %w", err)
	}

	tensors := map[string]*Array[float32]{}
	for k, hdr := range header {
		if k == "__metadata__" {
			continue
		}
		if hdr.DType != "F32" {
			return nil, fmt.Errorf("unsupported dtype %s", hdr.DType)
		}
		if len(hdr.Shape) == 0 || len(hdr.Shape) > maxRank {
			return nil, fmt.Errorf("unsupported shape %v", hdr.Shape)
		}

		// Bound the element count by the payload as it accumulates, so a
		// corrupt shape can neither overflow nor drive a huge allocation.
		size := 1
		for _, s := range hdr.Shape {
			if s < 1 || s > len(data)/4/size {
				return nil, fmt.Errorf("bad shape %v for %d bytes of data", hdr.Shape, len(data))
			}
			size *= s
		}

		if len(hdr.DataOffsets) != 2 {
			return nil, fmt.Errorf("bad data offsets %v for %s", hdr.DataOffsets, k)
		}
		begin, end := hdr.DataOffsets[0], hdr.DataOffsets[1]
		if begin < 0 || begin > end || end > len(data) || end-begin != size*4 {
			return nil, fmt.Errorf("data offsets %v for %s do not match shape %v", hdr.DataOffsets, k, hdr.Shape)
		}

		tensor := MakeArray[float32](hdr.Shape...)
		for i := range tensor.V {
			tensor.V[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[begin+4*i:]))
		}

		tensors[k] = tensor
	}

	return tensors, nil
}

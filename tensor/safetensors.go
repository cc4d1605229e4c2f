package tensor

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// TensorInfo describes a tensor in safetensors format
type TensorInfo struct {
	Dtype  string   `json:"dtype"`
	Shape  []int    `json:"shape"`
	Offset [2]int64 `json:"data_offsets"`
}

// LoadSafetensors reads every tensor in a safetensors file into float32
// tensors keyed by name. The "__metadata__" header entry is skipped.
func LoadSafetensors(path string) (map[string]*Tensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("file too small for safetensors header: %s", path)
	}

	headerSize := binary.LittleEndian.Uint64(data[:8])
	if uint64(len(data)) < 8+headerSize {
		return nil, fmt.Errorf("truncated safetensors header in %s", path)
	}
	headerBytes := data[8 : 8+headerSize]
	tensorData := data[8+headerSize:]

	var rawHeader map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &rawHeader); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	tensors := make(map[string]*Tensor, len(rawHeader))
	for name, raw := range rawHeader {
		if name == "__metadata__" {
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, fmt.Errorf("bad header entry %q: %w", name, err)
		}
		t, err := decodeTensor(tensorData, info)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		tensors[name] = t
	}

	return tensors, nil
}

func decodeTensor(data []byte, info TensorInfo) (*Tensor, error) {
	start, end := info.Offset[0], info.Offset[1]
	if start < 0 || end > int64(len(data)) || start > end {
		return nil, fmt.Errorf("offsets [%d,%d] out of range", start, end)
	}
	tensorBytes := data[start:end]

	numElements := 1
	for _, dim := range info.Shape {
		numElements *= dim
	}
	tensorData := make([]float32, numElements)

	switch info.Dtype {
	case "F32":
		if len(tensorBytes) != numElements*4 {
			return nil, fmt.Errorf("F32 payload %d bytes, want %d", len(tensorBytes), numElements*4)
		}
		for i := 0; i < numElements; i++ {
			bits := binary.LittleEndian.Uint32(tensorBytes[i*4 : (i+1)*4])
			tensorData[i] = math.Float32frombits(bits)
		}
	case "F16":
		if len(tensorBytes) != numElements*2 {
			return nil, fmt.Errorf("F16 payload %d bytes, want %d", len(tensorBytes), numElements*2)
		}
		for i := 0; i < numElements; i++ {
			bits := binary.LittleEndian.Uint16(tensorBytes[i*2 : (i+1)*2])
			tensorData[i] = float32FromFloat16(bits)
		}
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", info.Dtype)
	}

	return &Tensor{Data: tensorData, Shape: info.Shape}, nil
}

func float32FromFloat16(bits uint16) float32 {
	sign := uint32((bits >> 15) & 1)
	exp := uint32((bits >> 10) & 0x1F)
	frac := uint32(bits & 0x3FF)

	if exp == 0 {
		if frac == 0 {
			// Zero
			return math.Float32frombits(sign << 31)
		}
		// Subnormal
		exp = 127 - 14
		for (frac & 0x400) == 0 {
			frac <<= 1
			exp--
		}
		frac &= 0x3FF
	} else if exp == 0x1F {
		// Inf or NaN
		exp = 0xFF
	} else {
		// Normal
		exp += 127 - 15
	}

	return math.Float32frombits((sign << 31) | (exp << 23) | (frac << 13))
}

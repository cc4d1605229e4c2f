package tensor

import (
	"fmt"
	"math"
)

// Tensor represents a multi-dimensional array of float32 values
type Tensor struct {
	Data  []float32
	Shape []int
}

// New creates a new zero-filled tensor with the given shape
func New(shape ...int) *Tensor {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return &Tensor{
		Data:  make([]float32, size),
		Shape: shape,
	}
}

// Size returns total number of elements
func (t *Tensor) Size() int {
	size := 1
	for _, dim := range t.Shape {
		size *= dim
	}
	return size
}

// Clone returns a deep copy of the tensor
func (t *Tensor) Clone() *Tensor {
	result := New(t.Shape...)
	copy(result.Data, t.Data)
	return result
}

// At returns element at given indices
func (t *Tensor) At(indices ...int) float32 {
	return t.Data[t.flatIndex(indices)]
}

// Set sets element at given indices
func (t *Tensor) Set(val float32, indices ...int) {
	t.Data[t.flatIndex(indices)] = val
}

func (t *Tensor) flatIndex(indices []int) int {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("wrong number of indices: got %d, want %d", len(indices), len(t.Shape)))
	}
	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		idx += indices[i] * stride
		stride *= t.Shape[i]
	}
	return idx
}

// SameShape reports whether two tensors have identical shapes
func SameShape(a, b *Tensor) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}

// MatMul performs matrix multiplication: [m,k] x [k,n] -> [m,n]
func MatMul(a, b *Tensor) *Tensor {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		panic("MatMul requires 2D tensors")
	}
	if a.Shape[1] != b.Shape[0] {
		panic(fmt.Sprintf("incompatible shapes: [%d,%d] x [%d,%d]", a.Shape[0], a.Shape[1], b.Shape[0], b.Shape[1]))
	}

	m, k, n := a.Shape[0], a.Shape[1], b.Shape[1]
	result := New(m, n)

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sum := float32(0)
			for p := 0; p < k; p++ {
				sum += a.Data[i*k+p] * b.Data[p*n+j]
			}
			result.Data[i*n+j] = sum
		}
	}

	return result
}

// Add performs element-wise addition
func Add(a, b *Tensor) *Tensor {
	if len(a.Data) != len(b.Data) {
		panic("tensors must have same size")
	}
	result := New(a.Shape...)
	for i := range a.Data {
		result.Data[i] = a.Data[i] + b.Data[i]
	}
	return result
}

// Scale multiplies all elements by a scalar
func Scale(t *Tensor, factor float32) *Tensor {
	result := New(t.Shape...)
	for i := range t.Data {
		result.Data[i] = t.Data[i] * factor
	}
	return result
}

// Transpose swaps dimensions of a 2D tensor
func Transpose(t *Tensor) *Tensor {
	if len(t.Shape) != 2 {
		panic("Transpose requires 2D tensor")
	}
	m, n := t.Shape[0], t.Shape[1]
	result := New(n, m)

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			result.Data[j*m+i] = t.Data[i*n+j]
		}
	}
	return result
}

// Softmax applies softmax along the last dimension of a tensor of any rank
func Softmax(t *Tensor) *Tensor {
	result := New(t.Shape...)
	cols := t.Shape[len(t.Shape)-1]
	rows := t.Size() / cols

	for i := 0; i < rows; i++ {
		offset := i * cols

		// Max for numerical stability
		maxVal := t.Data[offset]
		for j := 1; j < cols; j++ {
			if t.Data[offset+j] > maxVal {
				maxVal = t.Data[offset+j]
			}
		}

		sum := float32(0)
		for j := 0; j < cols; j++ {
			val := float32(math.Exp(float64(t.Data[offset+j] - maxVal)))
			result.Data[offset+j] = val
			sum += val
		}

		for j := 0; j < cols; j++ {
			result.Data[offset+j] /= sum
		}
	}

	return result
}

// ReLU applies the rectified linear unit element-wise
func ReLU(t *Tensor) *Tensor {
	result := New(t.Shape...)
	for i, x := range t.Data {
		if x > 0 {
			result.Data[i] = x
		}
	}
	return result
}

// GELU activation function
func GELU(t *Tensor) *Tensor {
	result := New(t.Shape...)
	for i, x := range t.Data {
		// 0.5 * x * (1 + tanh(sqrt(2/pi) * (x + 0.044715 * x^3)))
		x3 := x * x * x
		inner := math.Sqrt(2.0/math.Pi) * float64(x+0.044715*x3)
		result.Data[i] = 0.5 * x * (1.0 + float32(math.Tanh(inner)))
	}
	return result
}

// LayerNorm applies layer normalization over the last dimension.
// With a nil bias it degenerates to RMSNorm.
func LayerNorm(t *Tensor, weight, bias *Tensor, eps float32) *Tensor {
	result := New(t.Shape...)

	isRMSNorm := (bias == nil)
	hiddenSize := t.Shape[len(t.Shape)-1]
	totalRows := t.Size() / hiddenSize

	for i := 0; i < totalRows; i++ {
		offset := i * hiddenSize

		if isRMSNorm {
			rms := float32(0)
			for j := 0; j < hiddenSize; j++ {
				val := t.Data[offset+j]
				rms += val * val
			}
			rms = float32(math.Sqrt(float64(rms/float32(hiddenSize) + eps)))

			for j := 0; j < hiddenSize; j++ {
				result.Data[offset+j] = t.Data[offset+j] / rms * weight.Data[j]
			}
		} else {
			mean := float32(0)
			for j := 0; j < hiddenSize; j++ {
				mean += t.Data[offset+j]
			}
			mean /= float32(hiddenSize)

			variance := float32(0)
			for j := 0; j < hiddenSize; j++ {
				diff := t.Data[offset+j] - mean
				variance += diff * diff
			}
			variance /= float32(hiddenSize)

			std := float32(math.Sqrt(float64(variance + eps)))
			for j := 0; j < hiddenSize; j++ {
				normalized := (t.Data[offset+j] - mean) / std
				result.Data[offset+j] = normalized*weight.Data[j] + bias.Data[j]
			}
		}
	}

	return result
}

// ConcatTime concatenates two 3D tensors [batch, seq, hidden] along the
// time axis. A nil first argument is treated as an empty sequence.
func ConcatTime(a, b *Tensor) *Tensor {
	if a == nil {
		return b.Clone()
	}
	if len(a.Shape) != 3 || len(b.Shape) != 3 {
		panic("ConcatTime requires 3D tensors")
	}
	if a.Shape[0] != b.Shape[0] || a.Shape[2] != b.Shape[2] {
		panic(fmt.Sprintf("incompatible shapes: %v and %v", a.Shape, b.Shape))
	}

	batch, hidden := a.Shape[0], a.Shape[2]
	seq1, seq2 := a.Shape[1], b.Shape[1]
	result := New(batch, seq1+seq2, hidden)

	for bi := 0; bi < batch; bi++ {
		dst := result.Data[bi*(seq1+seq2)*hidden:]
		copy(dst[:seq1*hidden], a.Data[bi*seq1*hidden:(bi+1)*seq1*hidden])
		copy(dst[seq1*hidden:(seq1+seq2)*hidden], b.Data[bi*seq2*hidden:(bi+1)*seq2*hidden])
	}

	return result
}

// TimeSlice extracts positions [start, end) along the time axis of a
// 3D tensor [batch, seq, hidden].
func TimeSlice(t *Tensor, start, end int) *Tensor {
	if len(t.Shape) != 3 {
		panic("TimeSlice requires a 3D tensor")
	}
	batch, seq, hidden := t.Shape[0], t.Shape[1], t.Shape[2]
	if start < 0 || end > seq || start >= end {
		panic(fmt.Sprintf("invalid time slice [%d,%d) of length %d", start, end, seq))
	}

	result := New(batch, end-start, hidden)
	for bi := 0; bi < batch; bi++ {
		src := t.Data[(bi*seq+start)*hidden : (bi*seq+end)*hidden]
		copy(result.Data[bi*(end-start)*hidden:], src)
	}
	return result
}

// LastTimeStep returns the final position of a 3D tensor as [batch, 1, hidden]
func LastTimeStep(t *Tensor) *Tensor {
	return TimeSlice(t, t.Shape[1]-1, t.Shape[1])
}

// Row returns batch row b of a 3D tensor as [1, seq, hidden]
func Row(t *Tensor, b int) *Tensor {
	if len(t.Shape) != 3 {
		panic("Row requires a 3D tensor")
	}
	seq, hidden := t.Shape[1], t.Shape[2]
	result := New(1, seq, hidden)
	copy(result.Data, t.Data[b*seq*hidden:(b+1)*seq*hidden])
	return result
}

// StackRows stacks 3D tensors of shape [1, seq, hidden] into [n, seq, hidden]
func StackRows(rows []*Tensor) *Tensor {
	if len(rows) == 0 {
		panic("StackRows requires at least one row")
	}
	seq, hidden := rows[0].Shape[1], rows[0].Shape[2]
	result := New(len(rows), seq, hidden)
	for i, r := range rows {
		if r.Shape[0] != 1 || r.Shape[1] != seq || r.Shape[2] != hidden {
			panic(fmt.Sprintf("row %d has shape %v, want [1 %d %d]", i, r.Shape, seq, hidden))
		}
		copy(result.Data[i*seq*hidden:], r.Data)
	}
	return result
}

// Reshape returns a new tensor with different shape (same data)
func (t *Tensor) Reshape(shape ...int) *Tensor {
	newSize := 1
	for _, dim := range shape {
		newSize *= dim
	}
	if newSize != t.Size() {
		panic(fmt.Sprintf("cannot reshape: size mismatch %d vs %d", newSize, t.Size()))
	}
	return &Tensor{
		Data:  t.Data,
		Shape: shape,
	}
}

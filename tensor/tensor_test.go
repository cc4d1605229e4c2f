package tensor

import (
	"math"
	"testing"
)

func TestMatMul(t *testing.T) {
	a := &Tensor{Data: []float32{1, 2, 3, 4, 5, 6}, Shape: []int{2, 3}}
	b := &Tensor{Data: []float32{7, 8, 9, 10, 11, 12}, Shape: []int{3, 2}}

	c := MatMul(a, b)
	want := []float32{58, 64, 139, 154}

	if c.Shape[0] != 2 || c.Shape[1] != 2 {
		t.Fatalf("result shape %v, want [2 2]", c.Shape)
	}
	for i, w := range want {
		if c.Data[i] != w {
			t.Errorf("element %d = %v, want %v", i, c.Data[i], w)
		}
	}
}

func TestMatMulShapeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for incompatible shapes")
		}
	}()
	MatMul(New(2, 3), New(2, 3))
}

func TestSoftmaxRows(t *testing.T) {
	x := &Tensor{Data: []float32{1, 2, 3, 1, 1, 1}, Shape: []int{2, 3}}
	s := Softmax(x)

	for row := 0; row < 2; row++ {
		sum := float32(0)
		for col := 0; col < 3; col++ {
			sum += s.Data[row*3+col]
		}
		if math.Abs(float64(sum-1)) > 1e-6 {
			t.Errorf("row %d sums to %v, want 1", row, sum)
		}
	}

	// Uniform logits give uniform probabilities.
	for col := 0; col < 3; col++ {
		if math.Abs(float64(s.Data[3+col]-1.0/3.0)) > 1e-6 {
			t.Errorf("uniform row element %d = %v, want 1/3", col, s.Data[3+col])
		}
	}
}

func TestSoftmaxStability(t *testing.T) {
	x := &Tensor{Data: []float32{1000, 1001, 1002}, Shape: []int{1, 3}}
	s := Softmax(x)

	sum := float32(0)
	for _, v := range s.Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("softmax produced %v on large logits", v)
		}
		sum += v
	}
	if math.Abs(float64(sum-1)) > 1e-6 {
		t.Errorf("probabilities sum to %v, want 1", sum)
	}
}

func TestLayerNorm(t *testing.T) {
	x := &Tensor{Data: []float32{1, 2, 3, 4}, Shape: []int{1, 4}}
	weight := &Tensor{Data: []float32{1, 1, 1, 1}, Shape: []int{4}}
	bias := &Tensor{Data: []float32{0, 0, 0, 0}, Shape: []int{4}}

	out := LayerNorm(x, weight, bias, 1e-5)

	mean := float32(0)
	for _, v := range out.Data {
		mean += v
	}
	mean /= 4
	if math.Abs(float64(mean)) > 1e-5 {
		t.Errorf("normalized mean = %v, want 0", mean)
	}

	variance := float32(0)
	for _, v := range out.Data {
		variance += (v - mean) * (v - mean)
	}
	variance /= 4
	if math.Abs(float64(variance-1)) > 1e-3 {
		t.Errorf("normalized variance = %v, want 1", variance)
	}
}

func TestConcatTime(t *testing.T) {
	a := &Tensor{Data: []float32{1, 2, 3, 4}, Shape: []int{1, 2, 2}}
	b := &Tensor{Data: []float32{5, 6}, Shape: []int{1, 1, 2}}

	c := ConcatTime(a, b)
	if c.Shape[0] != 1 || c.Shape[1] != 3 || c.Shape[2] != 2 {
		t.Fatalf("result shape %v, want [1 3 2]", c.Shape)
	}
	want := []float32{1, 2, 3, 4, 5, 6}
	for i, w := range want {
		if c.Data[i] != w {
			t.Errorf("element %d = %v, want %v", i, c.Data[i], w)
		}
	}
}

func TestConcatTimeNilFirst(t *testing.T) {
	b := &Tensor{Data: []float32{5, 6}, Shape: []int{1, 1, 2}}
	c := ConcatTime(nil, b)

	if !SameShape(c, b) {
		t.Fatalf("result shape %v, want %v", c.Shape, b.Shape)
	}
	c.Data[0] = 99
	if b.Data[0] == 99 {
		t.Error("ConcatTime(nil, b) must copy, not alias")
	}
}

func TestConcatTimeBatched(t *testing.T) {
	a := &Tensor{Data: []float32{1, 2, 3, 4}, Shape: []int{2, 1, 2}}
	b := &Tensor{Data: []float32{5, 6, 7, 8}, Shape: []int{2, 1, 2}}

	c := ConcatTime(a, b)
	want := []float32{1, 2, 5, 6, 3, 4, 7, 8}
	for i, w := range want {
		if c.Data[i] != w {
			t.Errorf("element %d = %v, want %v", i, c.Data[i], w)
		}
	}
}

func TestTimeSlice(t *testing.T) {
	x := &Tensor{Data: []float32{1, 2, 3, 4, 5, 6}, Shape: []int{1, 3, 2}}

	mid := TimeSlice(x, 1, 2)
	if mid.Shape[1] != 1 {
		t.Fatalf("slice length %d, want 1", mid.Shape[1])
	}
	if mid.Data[0] != 3 || mid.Data[1] != 4 {
		t.Errorf("slice data %v, want [3 4]", mid.Data)
	}

	last := LastTimeStep(x)
	if last.Data[0] != 5 || last.Data[1] != 6 {
		t.Errorf("last step data %v, want [5 6]", last.Data)
	}
}

func TestRowAndStackRows(t *testing.T) {
	x := &Tensor{Data: []float32{1, 2, 3, 4, 5, 6, 7, 8}, Shape: []int{2, 2, 2}}

	r0 := Row(x, 0)
	r1 := Row(x, 1)
	stacked := StackRows([]*Tensor{r0, r1})

	if !SameShape(stacked, x) {
		t.Fatalf("stacked shape %v, want %v", stacked.Shape, x.Shape)
	}
	for i := range x.Data {
		if stacked.Data[i] != x.Data[i] {
			t.Errorf("element %d = %v, want %v", i, stacked.Data[i], x.Data[i])
		}
	}
}

func TestReshapeSharesData(t *testing.T) {
	x := New(2, 3)
	y := x.Reshape(3, 2)
	y.Data[0] = 7
	if x.Data[0] != 7 {
		t.Error("Reshape must share the underlying data")
	}
}

func TestReLU(t *testing.T) {
	x := &Tensor{Data: []float32{-1, 0, 2.5}, Shape: []int{3}}
	out := ReLU(x)
	want := []float32{0, 0, 2.5}
	for i, w := range want {
		if out.Data[i] != w {
			t.Errorf("element %d = %v, want %v", i, out.Data[i], w)
		}
	}
}

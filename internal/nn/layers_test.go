package nn

import (
	"math"
	"testing"
)

func TestReLU(t *testing.T) {
	r := &ReLU{}
	x := NewDenseBacked([]float32{-1, 0, 2}, 1, 3)
	y, err := r.Forward(x, true)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	got := y.Data().([]float32)
	if got[0] != 0 || got[1] != 0 || got[2] != 2 {
		t.Fatalf("unexpected output %v", got)
	}
	dx, err := r.Backward(NewDenseBacked([]float32{5, 5, 5}, 1, 3))
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	gd := dx.Data().([]float32)
	if gd[0] != 0 || gd[1] != 0 || gd[2] != 5 {
		t.Fatalf("unexpected gradient %v", gd)
	}
}

func TestMaxPool2(t *testing.T) {
	m := &MaxPool2{}
	x := NewDenseBacked([]float32{
		1, 2, 0, 0,
		3, 4, 0, 9,
		0, 0, 5, 5,
		7, 0, 5, 5,
	}, 1, 1, 4, 4)
	y, err := m.Forward(x, true)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	got := y.Data().([]float32)
	want := []float32{4, 9, 7, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pool[%d] = %f, want %f", i, got[i], want[i])
		}
	}
	dx, err := m.Backward(NewDenseBacked([]float32{1, 1, 1, 1}, 1, 1, 2, 2))
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	var sum float32
	for _, v := range dx.Data().([]float32) {
		sum += v
	}
	if sum != 4 {
		t.Fatalf("gradient mass %f, want 4", sum)
	}
	if dx.Data().([]float32)[5] != 1 {
		t.Fatal("gradient did not route to the max position")
	}
}

func TestDropoutEvalIsIdentity(t *testing.T) {
	d := NewDropout(0.5, testRNG(6))
	x := NewDenseBacked([]float32{1, 2, 3, 4}, 1, 4)
	y, err := d.Forward(x, false)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	got := y.Data().([]float32)
	for i, v := range x.Data().([]float32) {
		if got[i] != v {
			t.Fatalf("eval output[%d] = %f, want %f", i, got[i], v)
		}
	}
}

func TestDropoutTrainScalesSurvivors(t *testing.T) {
	d := NewDropout(0.5, testRNG(7))
	x := NewDenseBacked([]float32{1, 1, 1, 1, 1, 1, 1, 1}, 1, 8)
	y, err := d.Forward(x, true)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	for i, v := range y.Data().([]float32) {
		if v != 0 && v != 2 {
			t.Fatalf("train output[%d] = %f, want 0 or 2", i, v)
		}
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	f := &Flatten{}
	x := NewDense(2, 3, 4, 5)
	y, err := f.Forward(x, true)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	s := y.Shape()
	if s[0] != 2 || s[1] != 60 {
		t.Fatalf("unexpected flat shape %v", s)
	}
	dx, err := f.Backward(y)
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	if !dx.Shape().Eq(x.Shape()) {
		t.Fatalf("restored shape %v, want %v", dx.Shape(), x.Shape())
	}
}

func TestGlobalAvgPool(t *testing.T) {
	g := &GlobalAvgPool{}
	x := NewDenseBacked([]float32{1, 2, 3, 4, 10, 10, 10, 10}, 1, 2, 2, 2)
	y, err := g.Forward(x, true)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	got := y.Data().([]float32)
	if math.Abs(float64(got[0]-2.5)) > 1e-6 || got[1] != 10 {
		t.Fatalf("unexpected means %v", got)
	}
	dx, err := g.Backward(NewDenseBacked([]float32{4, 8}, 1, 2))
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	gd := dx.Data().([]float32)
	if gd[0] != 1 || gd[4] != 2 {
		t.Fatalf("unexpected spread %v", gd)
	}
}

package nn

import (
	"math"
	"testing"
)

func TestBatchNormTrainNormalizes(t *testing.T) {
	bn := NewBatchNorm(1)
	x := NewDenseBacked([]float32{1, 2, 3, 4, 5, 6, 7, 8}, 2, 1, 2, 2)
	y, err := bn.Forward(x, true)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	var sum, sqSum float64
	for _, v := range y.Data().([]float32) {
		sum += float64(v)
		sqSum += float64(v) * float64(v)
	}
	mean := sum / 8
	variance := sqSum/8 - mean*mean
	if math.Abs(mean) > 1e-4 {
		t.Fatalf("normalized mean = %f, want ~0", mean)
	}
	if math.Abs(variance-1) > 1e-2 {
		t.Fatalf("normalized variance = %f, want ~1", variance)
	}
}

func TestBatchNormEvalDeterministic(t *testing.T) {
	bn := NewBatchNorm(1)
	x := NewDenseBacked([]float32{1, 2, 3, 4}, 1, 1, 2, 2)
	if _, err := bn.Forward(x, true); err != nil {
		t.Fatalf("train forward: %v", err)
	}

	a, err := bn.Forward(x, false)
	if err != nil {
		t.Fatalf("eval forward: %v", err)
	}
	b, err := bn.Forward(x, false)
	if err != nil {
		t.Fatalf("eval forward: %v", err)
	}
	ad, bd := a.Data().([]float32), b.Data().([]float32)
	for i := range ad {
		if ad[i] != bd[i] {
			t.Fatalf("eval output differs at %d: %f vs %f", i, ad[i], bd[i])
		}
	}
}

func TestBatchNormGradientMass(t *testing.T) {
	bn := NewBatchNorm(1)
	x := NewDenseBacked([]float32{1, 2, 3, 4}, 1, 1, 2, 2)
	if _, err := bn.Forward(x, true); err != nil {
		t.Fatalf("forward: %v", err)
	}
	dx, err := bn.Backward(NewDenseBacked([]float32{1, 1, 1, 1}, 1, 1, 2, 2))
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	// For a uniform upstream gradient the normalization terms cancel.
	for i, v := range dx.Data().([]float32) {
		if math.Abs(float64(v)) > 1e-4 {
			t.Fatalf("dx[%d] = %f, want ~0", i, v)
		}
	}
	if bn.Beta.Grad[0] != 4 {
		t.Fatalf("beta grad = %f, want 4", bn.Beta.Grad[0])
	}
}

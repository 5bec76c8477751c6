package nn

import (
	"math"
	"testing"
)

func TestSoftmaxSumsToOne(t *testing.T) {
	probs := Softmax([]float32{1, 2, 3})
	var sum float32
	for _, p := range probs {
		sum += p
	}
	if math.Abs(float64(sum-1)) > 1e-6 {
		t.Fatalf("probabilities sum to %f", sum)
	}
	if !(probs[2] > probs[1] && probs[1] > probs[0]) {
		t.Fatalf("ordering not preserved: %v", probs)
	}
}

func TestCrossEntropyUniformLogits(t *testing.T) {
	loss := &SoftmaxCrossEntropy{}
	logits := NewDenseBacked([]float32{0, 0, 0, 0}, 2, 2)
	v, err := loss.Forward(logits, []int{0, 1})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if math.Abs(float64(v)-math.Log(2)) > 1e-5 {
		t.Fatalf("loss = %f, want ln(2)", v)
	}

	grad, err := loss.Backward()
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	gd := grad.Data().([]float32)
	// Each row sums to zero: (p - onehot) has zero mass.
	if math.Abs(float64(gd[0]+gd[1])) > 1e-6 || math.Abs(float64(gd[2]+gd[3])) > 1e-6 {
		t.Fatalf("row gradient mass not zero: %v", gd)
	}
}

func TestCrossEntropyLabelMismatch(t *testing.T) {
	loss := &SoftmaxCrossEntropy{}
	logits := NewDenseBacked([]float32{0, 0, 0, 0}, 2, 2)
	if _, err := loss.Forward(logits, []int{0}); err == nil {
		t.Fatal("expected row/label count error")
	}
	if _, err := loss.Forward(logits, []int{0, 5}); err == nil {
		t.Fatal("expected out-of-range label error")
	}
}

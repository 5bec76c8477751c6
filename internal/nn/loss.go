package nn

import (
	"fmt"

	"github.com/chewxy/math32"
	"gorgonia.org/tensor"
)

// Softmax converts one row of logits into probabilities, shifted by the max
// logit for stability.
func Softmax(logits []float32) []float32 {
	max := logits[0]
	for _, v := range logits {
		if v > max {
			max = v
		}
	}
	out := make([]float32, len(logits))
	var sum float32
	for i, v := range logits {
		e := math32.Exp(v - max)
		out[i] = e
		sum += e
	}
	inv := 1 / sum
	for i := range out {
		out[i] *= inv
	}
	return out
}

// SoftmaxCrossEntropy is the classification loss. Forward computes the mean
// negative log likelihood of the integer labels; Backward returns the
// gradient with respect to the logits.
type SoftmaxCrossEntropy struct {
	probs   []float32
	labels  []int
	n       int
	classes int
}

func (l *SoftmaxCrossEntropy) Forward(logits *tensor.Dense, labels []int) (float32, error) {
	s := logits.Shape()
	if len(s) != 2 {
		return 0, fmt.Errorf("loss: want (N, classes) logits, got shape %v", s)
	}
	n, classes := s[0], s[1]
	if n != len(labels) {
		return 0, fmt.Errorf("loss: %d logit rows for %d labels", n, len(labels))
	}

	ld := floats(logits)
	l.probs = make([]float32, n*classes)
	l.labels = labels
	l.n = n
	l.classes = classes

	var total float32
	for i := 0; i < n; i++ {
		label := labels[i]
		if label < 0 || label >= classes {
			return 0, fmt.Errorf("loss: label %d out of range [0, %d)", label, classes)
		}
		row := Softmax(ld[i*classes : (i+1)*classes])
		copy(l.probs[i*classes:], row)
		total += -math32.Log(math32.Max(row[label], 1e-9))
	}
	return total / float32(n), nil
}

// Backward returns d(mean loss)/d(logits), shape (N, classes).
func (l *SoftmaxCrossEntropy) Backward() (*tensor.Dense, error) {
	if l.probs == nil {
		return nil, fmt.Errorf("loss: backward before forward")
	}
	grad := make([]float32, len(l.probs))
	copy(grad, l.probs)
	inv := 1 / float32(l.n)
	for i, label := range l.labels {
		grad[i*l.classes+label] -= 1
	}
	for i := range grad {
		grad[i] *= inv
	}
	return NewDenseBacked(grad, l.n, l.classes), nil
}

// Package metrics runs full-dataset evaluation and derives accuracy and a
// per-class report from the result.
package metrics

import (
	"fmt"
	"strings"

	"synthmri/internal/dataset"
	"synthmri/internal/model"
	"synthmri/internal/nn"
)

// Pair is one (true label, predicted label) observation.
type Pair struct {
	True, Pred int
}

// Record is the aggregate of one evaluation pass: summed loss and the
// ordered prediction pairs. Created fresh per call, never mutated after
// return.
type Record struct {
	Loss  float32
	Pairs []Pair
}

// Evaluate iterates the entire loader once without gradient updates,
// accumulating loss and the argmax prediction for every sample. The pass
// always covers the full dataset; the report is invalid otherwise.
func Evaluate(m model.Model, l *dataset.Loader, loss *nn.SoftmaxCrossEntropy) (*Record, error) {
	rec := &Record{Pairs: make([]Pair, 0, l.Len())}
	l.Reset()
	for {
		batch, ok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		logits, err := m.Forward(batch.Inputs, false)
		if err != nil {
			return nil, err
		}
		batchLoss, err := loss.Forward(logits, batch.Labels)
		if err != nil {
			return nil, err
		}
		rec.Loss += batchLoss * float32(len(batch.Labels))

		ld := logits.Data().([]float32)
		classes := logits.Shape()[1]
		for i, label := range batch.Labels {
			rec.Pairs = append(rec.Pairs, Pair{True: label, Pred: argmax(ld[i*classes : (i+1)*classes])})
		}
	}
	return rec, nil
}

func argmax(row []float32) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

// MeanLoss returns the per-sample loss.
func (r *Record) MeanLoss() float32 {
	if len(r.Pairs) == 0 {
		return 0
	}
	return r.Loss / float32(len(r.Pairs))
}

// Accuracy is the exact-match fraction, in [0, 1].
func (r *Record) Accuracy() float32 {
	if len(r.Pairs) == 0 {
		return 0
	}
	correct := 0
	for _, p := range r.Pairs {
		if p.True == p.Pred {
			correct++
		}
	}
	return float32(correct) / float32(len(r.Pairs))
}

// Report renders per-class precision, recall, F1 and support as text.
// classNames maps class ids to display names; ids outside the list fall
// back to the numeric id.
func (r *Record) Report(classNames []string) string {
	maxClass := 0
	for _, p := range r.Pairs {
		if p.True > maxClass {
			maxClass = p.True
		}
		if p.Pred > maxClass {
			maxClass = p.Pred
		}
	}
	n := maxClass + 1
	tp := make([]int, n)
	fp := make([]int, n)
	fn := make([]int, n)
	support := make([]int, n)
	for _, p := range r.Pairs {
		support[p.True]++
		if p.True == p.Pred {
			tp[p.True]++
		} else {
			fp[p.Pred]++
			fn[p.True]++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-16s %9s %9s %9s %9s\n", "class", "precision", "recall", "f1", "support")
	for c := 0; c < n; c++ {
		name := fmt.Sprintf("%d", c)
		if c < len(classNames) {
			name = classNames[c]
		}
		precision := ratio(tp[c], tp[c]+fp[c])
		recall := ratio(tp[c], tp[c]+fn[c])
		f1 := float32(0)
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		fmt.Fprintf(&b, "%-16s %9.4f %9.4f %9.4f %9d\n", name, precision, recall, f1, support[c])
	}
	fmt.Fprintf(&b, "%-16s %39.4f %9d\n", "accuracy", r.Accuracy(), len(r.Pairs))
	return b.String()
}

func ratio(num, den int) float32 {
	if den == 0 {
		return 0
	}
	return float32(num) / float32(den)
}

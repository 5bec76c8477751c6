package dataset

import (
	"fmt"
	"math/rand"

	"gorgonia.org/tensor"
)

// Batch is one gradient step worth of samples: a stacked (N, C, H, W)
// tensor and the matching integer labels.
type Batch struct {
	Inputs *tensor.Dense
	Labels []int
}

// Loader walks a Dataset in batches. With shuffle enabled the visit order
// is re-drawn from rng on every Reset, so epochs differ but a fixed seed
// reproduces the run. The final batch may be short.
type Loader struct {
	ds        *Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand

	order []int
	pos   int
}

// NewLoader constructs a loader and prepares the first pass.
func NewLoader(ds *Dataset, batchSize int, shuffle bool, rng *rand.Rand) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("loader: batch size must be > 0 (got %d)", batchSize)
	}
	if shuffle && rng == nil {
		return nil, fmt.Errorf("loader: shuffle requires a generator")
	}
	l := &Loader{ds: ds, batchSize: batchSize, shuffle: shuffle, rng: rng}
	l.Reset()
	return l, nil
}

// Len returns the number of samples per pass.
func (l *Loader) Len() int {
	return l.ds.Len()
}

// Reset rewinds to the start of a fresh pass, reshuffling if enabled.
func (l *Loader) Reset() {
	if l.shuffle {
		l.order = l.rng.Perm(l.ds.Len())
	} else if l.order == nil {
		l.order = make([]int, l.ds.Len())
		for i := range l.order {
			l.order[i] = i
		}
	}
	l.pos = 0
}

// Next returns the next batch. The second result is false once the pass is
// exhausted; Reset starts the next one.
func (l *Loader) Next() (Batch, bool, error) {
	if l.pos >= len(l.order) {
		return Batch{}, false, nil
	}
	end := l.pos + l.batchSize
	if end > len(l.order) {
		end = len(l.order)
	}
	idxs := l.order[l.pos:end]
	l.pos = end

	labels := make([]int, len(idxs))
	var backing []float32
	var sampleShape tensor.Shape
	var sampleLen int
	for bi, idx := range idxs {
		img, label, err := l.ds.At(idx)
		if err != nil {
			return Batch{}, false, err
		}
		data := img.Data().([]float32)
		if bi == 0 {
			sampleShape = img.Shape().Clone()
			sampleLen = len(data)
			backing = make([]float32, len(idxs)*sampleLen)
		} else if !img.Shape().Eq(sampleShape) {
			return Batch{}, false, fmt.Errorf("loader: sample %d has shape %v, want %v", idx, img.Shape(), sampleShape)
		}
		copy(backing[bi*sampleLen:], data)
		labels[bi] = label
	}

	shape := append(tensor.Shape{len(idxs)}, sampleShape...)
	inputs := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(shape...), tensor.WithBacking(backing))
	return Batch{Inputs: inputs, Labels: labels}, true, nil
}

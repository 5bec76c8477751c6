// Package dataset holds labeled image collections in memory and hands them
// to the trainer as shuffled, stacked batches. Images and labels only ever
// travel together inside a Dataset, so a mismatched pairing cannot be
// constructed.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gorgonia.org/tensor"
)

// Dataset is an ordered, indexable collection of (image, label) samples,
// immutable after construction. The transform runs lazily on every access
// and is never cached.
type Dataset struct {
	images    []*tensor.Dense
	labels    []int
	transform Transform
}

// New validates the pairing and wraps it. Images must be non-empty, match
// the labels in length, and share identical dimensions.
func New(images []*tensor.Dense, labels []int, t Transform) (*Dataset, error) {
	if len(images) == 0 {
		return nil, errors.New("dataset: no samples")
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("dataset: %d images for %d labels", len(images), len(labels))
	}
	first := images[0].Shape()
	for i, img := range images[1:] {
		if !img.Shape().Eq(first) {
			return nil, fmt.Errorf("dataset: image %d has shape %v, want %v", i+1, img.Shape(), first)
		}
	}
	return &Dataset{images: images, labels: labels, transform: t}, nil
}

// Len returns the sample count.
func (d *Dataset) Len() int {
	return len(d.images)
}

// At returns the transformed image and label at index i.
func (d *Dataset) At(i int) (*tensor.Dense, int, error) {
	if i < 0 || i >= len(d.images) {
		return nil, 0, fmt.Errorf("dataset: index %d out of range [0, %d)", i, len(d.images))
	}
	img := d.images[i]
	if d.transform != nil {
		var err error
		if img, err = d.transform(img); err != nil {
			return nil, 0, err
		}
	}
	return img, d.labels[i], nil
}

// Labels returns a copy of the label array.
func (d *Dataset) Labels() []int {
	out := make([]int, len(d.labels))
	copy(out, d.labels)
	return out
}

// Subset returns a new Dataset over the given indices, sharing image
// storage with the parent.
func (d *Dataset) Subset(idxs []int) (*Dataset, error) {
	if len(idxs) == 0 {
		return nil, errors.New("dataset: empty subset")
	}
	images := make([]*tensor.Dense, len(idxs))
	labels := make([]int, len(idxs))
	for i, idx := range idxs {
		if idx < 0 || idx >= len(d.images) {
			return nil, fmt.Errorf("dataset: subset index %d out of range [0, %d)", idx, len(d.images))
		}
		images[i] = d.images[idx]
		labels[i] = d.labels[idx]
	}
	return &Dataset{images: images, labels: labels, transform: d.transform}, nil
}

// Split shuffles the index set with rng and cuts it into disjoint train and
// test subsets. The train side gets round((1-testFrac)*N) samples, the test
// side the remainder.
func (d *Dataset) Split(testFrac float64, rng *rand.Rand) (train, test *Dataset, err error) {
	if testFrac <= 0 || testFrac >= 1 {
		return nil, nil, fmt.Errorf("dataset: test fraction %v out of (0, 1)", testFrac)
	}
	n := len(d.images)
	trainN := int(math.Round((1 - testFrac) * float64(n)))
	if trainN == 0 || trainN == n {
		return nil, nil, fmt.Errorf("dataset: split of %d samples at %v leaves one side empty", n, testFrac)
	}
	order := rng.Perm(n)
	if train, err = d.Subset(order[:trainN]); err != nil {
		return nil, nil, err
	}
	if test, err = d.Subset(order[trainN:]); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

// Merge concatenates two datasets with identical image dimensions. The
// result uses a's transform.
func Merge(a, b *Dataset) (*Dataset, error) {
	images := append(append([]*tensor.Dense{}, a.images...), b.images...)
	labels := append(append([]int{}, a.labels...), b.labels...)
	return New(images, labels, a.transform)
}

// Relabel returns a copy of the dataset with every label replaced by v.
// Used to tag whole collections for the real-vs-synthetic discriminator.
func (d *Dataset) Relabel(v int) *Dataset {
	labels := make([]int, len(d.labels))
	for i := range labels {
		labels[i] = v
	}
	return &Dataset{images: d.images, labels: labels, transform: d.transform}
}

// Binarize clamps class ids to {0, 1}: 0 stays 0, any positive severity
// collapses to 1. Property: out == min(max(label, 0), 1).
func Binarize(labels []int) []int {
	out := make([]int, len(labels))
	for i, l := range labels {
		switch {
		case l <= 0:
			out[i] = 0
		default:
			out[i] = 1
		}
	}
	return out
}

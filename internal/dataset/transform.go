package dataset

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Transform is one stateless array-shape operation applied per sample
// access. Transforms never mutate their input.
type Transform func(*tensor.Dense) (*tensor.Dense, error)

// Compose chains transforms left to right; order is preserved exactly.
func Compose(ts ...Transform) Transform {
	return func(x *tensor.Dense) (*tensor.Dense, error) {
		var err error
		for _, t := range ts {
			if x, err = t(x); err != nil {
				return nil, err
			}
		}
		return x, nil
	}
}

// Unsqueeze appends a trailing axis of size 1.
func Unsqueeze() Transform {
	return func(x *tensor.Dense) (*tensor.Dense, error) {
		shape := append(x.Shape().Clone(), 1)
		out := x.Clone().(*tensor.Dense)
		if err := out.Reshape(shape...); err != nil {
			return nil, fmt.Errorf("transform: unsqueeze %v: %w", x.Shape(), err)
		}
		return out, nil
	}
}

// RepeatChannels replicates along axis until it has exactly n entries.
// Classifiers expect 3-channel input even for grayscale scans.
func RepeatChannels(axis, n int) Transform {
	return func(x *tensor.Dense) (*tensor.Dense, error) {
		s := x.Shape()
		if axis < 0 || axis >= len(s) {
			return nil, fmt.Errorf("transform: repeat axis %d out of range for shape %v", axis, s)
		}
		if s[axis] == n {
			return x, nil
		}
		if s[axis] != 1 {
			return nil, fmt.Errorf("transform: cannot repeat axis %d of size %d to %d", axis, s[axis], n)
		}
		out, err := tensor.Repeat(x, axis, n)
		if err != nil {
			return nil, fmt.Errorf("transform: repeat %v: %w", s, err)
		}
		return out.(*tensor.Dense), nil
	}
}

// ToTensor converts an (H, W, C) sample into channel-first (C, H, W) layout
// with values rescaled from [0, 255] to [0, 1].
func ToTensor() Transform {
	return func(x *tensor.Dense) (*tensor.Dense, error) {
		s := x.Shape()
		if len(s) != 3 {
			return nil, fmt.Errorf("transform: to-tensor wants (H, W, C), got shape %v", s)
		}
		h, w, c := s[0], s[1], s[2]
		in := x.Data().([]float32)
		out := make([]float32, c*h*w)
		for y := 0; y < h; y++ {
			for xx := 0; xx < w; xx++ {
				for ch := 0; ch < c; ch++ {
					out[(ch*h+y)*w+xx] = in[(y*w+xx)*c+ch] / 255.0
				}
			}
		}
		return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(c, h, w), tensor.WithBacking(out)), nil
	}
}

// MRIPipeline is the per-sample pipeline for grayscale scans:
// unsqueeze -> repeat to 3 channels -> normalized channel-first tensor.
// An (H, W) input becomes (3, H, W).
func MRIPipeline() Transform {
	return Compose(Unsqueeze(), RepeatChannels(2, 3), ToTensor())
}

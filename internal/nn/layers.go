package nn

import (
	"fmt"
	"math/rand"

	"gorgonia.org/tensor"
)

// ReLU zeroes negative activations.
type ReLU struct {
	x *tensor.Dense
}

func (r *ReLU) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	r.x = x
	xd := floats(x)
	y := NewDense(x.Shape()...)
	yd := floats(y)
	for i, v := range xd {
		if v > 0 {
			yd[i] = v
		}
	}
	return y, nil
}

func (r *ReLU) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if r.x == nil {
		return nil, fmt.Errorf("relu: backward before forward")
	}
	xd := floats(r.x)
	gd := floats(grad)
	if len(gd) != len(xd) {
		return nil, fmt.Errorf("relu: gradient size %d does not match input %d", len(gd), len(xd))
	}
	dx := NewDense(r.x.Shape()...)
	dxd := floats(dx)
	for i, v := range xd {
		if v > 0 {
			dxd[i] = gd[i]
		}
	}
	return dx, nil
}

func (r *ReLU) Params() []*Param { return nil }

// MaxPool2 is a 2x2 stride-2 max pool. Odd trailing rows/columns are
// dropped, as in floor-mode pooling.
type MaxPool2 struct {
	inShape tensor.Shape
	argmax  []int
}

func (m *MaxPool2) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	n, c, h, w, err := dims4(x, "maxpool")
	if err != nil {
		return nil, err
	}
	oh, ow := h/2, w/2
	if oh == 0 || ow == 0 {
		return nil, fmt.Errorf("maxpool: input %dx%d too small", h, w)
	}
	m.inShape = x.Shape().Clone()

	xd := floats(x)
	y := NewDense(n, c, oh, ow)
	yd := floats(y)
	m.argmax = make([]int, len(yd))

	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			base := (b*c + ch) * h * w
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					best := base + (oy*2)*w + ox*2
					for dy := 0; dy < 2; dy++ {
						for dx := 0; dx < 2; dx++ {
							idx := base + (oy*2+dy)*w + ox*2 + dx
							if xd[idx] > xd[best] {
								best = idx
							}
						}
					}
					out := ((b*c+ch)*oh+oy)*ow + ox
					yd[out] = xd[best]
					m.argmax[out] = best
				}
			}
		}
	}
	return y, nil
}

func (m *MaxPool2) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if m.argmax == nil {
		return nil, fmt.Errorf("maxpool: backward before forward")
	}
	gd := floats(grad)
	if len(gd) != len(m.argmax) {
		return nil, fmt.Errorf("maxpool: gradient size %d does not match output %d", len(gd), len(m.argmax))
	}
	dx := NewDense(m.inShape...)
	dxd := floats(dx)
	for i, src := range m.argmax {
		dxd[src] += gd[i]
	}
	return dx, nil
}

func (m *MaxPool2) Params() []*Param { return nil }

// Dropout zeroes activations with probability P during training and scales
// the survivors by 1/(1-P); evaluation is the identity.
type Dropout struct {
	P   float32
	rng *rand.Rand

	mask []float32
}

func NewDropout(p float32, rng *rand.Rand) *Dropout {
	return &Dropout{P: p, rng: rng}
}

func (d *Dropout) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	xd := floats(x)
	if !train || d.P <= 0 {
		d.mask = nil
		return x, nil
	}
	keep := 1 / (1 - d.P)
	d.mask = make([]float32, len(xd))
	y := NewDense(x.Shape()...)
	yd := floats(y)
	for i := range xd {
		if d.rng.Float32() >= d.P {
			d.mask[i] = keep
			yd[i] = xd[i] * keep
		}
	}
	return y, nil
}

func (d *Dropout) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if d.mask == nil {
		return grad, nil
	}
	gd := floats(grad)
	if len(gd) != len(d.mask) {
		return nil, fmt.Errorf("dropout: gradient size %d does not match mask %d", len(gd), len(d.mask))
	}
	dx := NewDense(grad.Shape()...)
	dxd := floats(dx)
	for i, m := range d.mask {
		dxd[i] = gd[i] * m
	}
	return dx, nil
}

func (d *Dropout) Params() []*Param { return nil }

// Flatten reshapes (N, C, H, W) to (N, C*H*W).
type Flatten struct {
	inShape tensor.Shape
}

func (f *Flatten) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	s := x.Shape()
	if len(s) < 2 {
		return nil, fmt.Errorf("flatten: want at least 2D input, got shape %v", s)
	}
	f.inShape = s.Clone()
	rest := 1
	for _, d := range s[1:] {
		rest *= d
	}
	return NewDenseBacked(floats(x), s[0], rest), nil
}

func (f *Flatten) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if f.inShape == nil {
		return nil, fmt.Errorf("flatten: backward before forward")
	}
	return NewDenseBacked(floats(grad), f.inShape...), nil
}

func (f *Flatten) Params() []*Param { return nil }

// GlobalAvgPool averages each channel plane, (N, C, H, W) -> (N, C).
type GlobalAvgPool struct {
	inShape tensor.Shape
}

func (g *GlobalAvgPool) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	n, c, h, w, err := dims4(x, "gap")
	if err != nil {
		return nil, err
	}
	g.inShape = x.Shape().Clone()
	xd := floats(x)
	y := NewDense(n, c)
	yd := floats(y)
	area := float32(h * w)
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			base := (b*c + ch) * h * w
			var sum float32
			for i := 0; i < h*w; i++ {
				sum += xd[base+i]
			}
			yd[b*c+ch] = sum / area
		}
	}
	return y, nil
}

func (g *GlobalAvgPool) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if g.inShape == nil {
		return nil, fmt.Errorf("gap: backward before forward")
	}
	n, c, h, w := g.inShape[0], g.inShape[1], g.inShape[2], g.inShape[3]
	gd := floats(grad)
	if len(gd) != n*c {
		return nil, fmt.Errorf("gap: gradient size %d does not match output %d", len(gd), n*c)
	}
	dx := NewDense(g.inShape...)
	dxd := floats(dx)
	area := float32(h * w)
	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			share := gd[b*c+ch] / area
			base := (b*c + ch) * h * w
			for i := 0; i < h*w; i++ {
				dxd[base+i] = share
			}
		}
	}
	return dx, nil
}

func (g *GlobalAvgPool) Params() []*Param { return nil }

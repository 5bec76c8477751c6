package nn

import (
	"fmt"
	"math/rand"

	"github.com/chewxy/math32"
	"gorgonia.org/tensor"
)

// Conv2D is a direct (non-im2col) 2D convolution with stride 1 and zero
// padding. Weights are stored flattened as [out][in][k][k].
type Conv2D struct {
	In, Out, Kernel, Pad int

	W *Param
	B *Param

	x *tensor.Dense
}

// NewConv2D constructs the layer with He initialization.
func NewConv2D(in, out, kernel, pad int, rng *rand.Rand) *Conv2D {
	c := &Conv2D{
		In:     in,
		Out:    out,
		Kernel: kernel,
		Pad:    pad,
		W:      NewParam("conv.w", out*in*kernel*kernel),
		B:      NewParam("conv.b", out),
	}
	scale := math32.Sqrt(2.0 / float32(in*kernel*kernel))
	for i := range c.W.Data {
		c.W.Data[i] = (rng.Float32()*2 - 1) * scale
	}
	return c
}

func (c *Conv2D) outSize(h, w int) (int, int) {
	return h + 2*c.Pad - c.Kernel + 1, w + 2*c.Pad - c.Kernel + 1
}

// Forward computes y[n,o,oy,ox] = b[o] + sum_{i,ky,kx} w[o,i,ky,kx] * x[n,i,oy+ky-p,ox+kx-p].
func (c *Conv2D) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	n, ch, h, w, err := dims4(x, "conv")
	if err != nil {
		return nil, err
	}
	if ch != c.In {
		return nil, fmt.Errorf("conv: want %d input channels, got %d", c.In, ch)
	}
	oh, ow := c.outSize(h, w)
	if oh <= 0 || ow <= 0 {
		return nil, fmt.Errorf("conv: input %dx%d too small for kernel %d", h, w, c.Kernel)
	}
	c.x = x

	xd := floats(x)
	y := NewDense(n, c.Out, oh, ow)
	yd := floats(y)
	k := c.Kernel

	for b := 0; b < n; b++ {
		for o := 0; o < c.Out; o++ {
			bias := c.B.Data[o]
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					sum := bias
					for i := 0; i < c.In; i++ {
						wBase := ((o*c.In + i) * k) * k
						xBase := (b*c.In + i) * h * w
						for ky := 0; ky < k; ky++ {
							iy := oy + ky - c.Pad
							if iy < 0 || iy >= h {
								continue
							}
							for kx := 0; kx < k; kx++ {
								ix := ox + kx - c.Pad
								if ix < 0 || ix >= w {
									continue
								}
								sum += c.W.Data[wBase+ky*k+kx] * xd[xBase+iy*w+ix]
							}
						}
					}
					yd[((b*c.Out+o)*oh+oy)*ow+ox] = sum
				}
			}
		}
	}
	return y, nil
}

// Backward accumulates dW and dB and returns dX.
func (c *Conv2D) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if c.x == nil {
		return nil, fmt.Errorf("conv: backward before forward")
	}
	n, _, h, w, err := dims4(c.x, "conv")
	if err != nil {
		return nil, err
	}
	oh, ow := c.outSize(h, w)
	gs := grad.Shape()
	if len(gs) != 4 || gs[0] != n || gs[1] != c.Out || gs[2] != oh || gs[3] != ow {
		return nil, fmt.Errorf("conv: gradient shape %v does not match output (%d %d %d %d)", gs, n, c.Out, oh, ow)
	}

	xd := floats(c.x)
	gd := floats(grad)
	dx := NewDense(n, c.In, h, w)
	dxd := floats(dx)
	k := c.Kernel

	for b := 0; b < n; b++ {
		for o := 0; o < c.Out; o++ {
			for oy := 0; oy < oh; oy++ {
				for ox := 0; ox < ow; ox++ {
					g := gd[((b*c.Out+o)*oh+oy)*ow+ox]
					if g == 0 {
						continue
					}
					c.B.Grad[o] += g
					for i := 0; i < c.In; i++ {
						wBase := ((o*c.In + i) * k) * k
						xBase := (b*c.In + i) * h * w
						for ky := 0; ky < k; ky++ {
							iy := oy + ky - c.Pad
							if iy < 0 || iy >= h {
								continue
							}
							for kx := 0; kx < k; kx++ {
								ix := ox + kx - c.Pad
								if ix < 0 || ix >= w {
									continue
								}
								c.W.Grad[wBase+ky*k+kx] += g * xd[xBase+iy*w+ix]
								dxd[xBase+iy*w+ix] += g * c.W.Data[wBase+ky*k+kx]
							}
						}
					}
				}
			}
		}
	}
	return dx, nil
}

func (c *Conv2D) Params() []*Param {
	return []*Param{c.W, c.B}
}

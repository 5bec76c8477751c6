package nn

import (
	"fmt"
	"math/rand"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gorgonia.org/tensor"
)

// Dense is a fully connected layer y = x·W + b over (N, In) inputs.
// The matmuls go through gonum's blas32.
type Dense struct {
	In, Out int

	W *Param
	B *Param

	x *tensor.Dense
}

// NewDenseLayer constructs the layer with He initialization.
func NewDenseLayer(in, out int, rng *rand.Rand) *Dense {
	d := &Dense{
		In:  in,
		Out: out,
		W:   NewParam("dense.w", in*out),
		B:   NewParam("dense.b", out),
	}
	scale := math32.Sqrt(2.0 / float32(in))
	for i := range d.W.Data {
		d.W.Data[i] = (rng.Float32()*2 - 1) * scale
	}
	return d
}

func (d *Dense) general(data []float32, rows, cols int) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

func (d *Dense) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	s := x.Shape()
	if len(s) != 2 || s[1] != d.In {
		return nil, fmt.Errorf("dense: want (N, %d) input, got shape %v", d.In, s)
	}
	n := s[0]
	d.x = x

	y := NewDense(n, d.Out)
	yd := floats(y)
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		d.general(floats(x), n, d.In),
		d.general(d.W.Data, d.In, d.Out),
		0, d.general(yd, n, d.Out))
	for b := 0; b < n; b++ {
		for o := 0; o < d.Out; o++ {
			yd[b*d.Out+o] += d.B.Data[o]
		}
	}
	return y, nil
}

func (d *Dense) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if d.x == nil {
		return nil, fmt.Errorf("dense: backward before forward")
	}
	n := d.x.Shape()[0]
	gs := grad.Shape()
	if len(gs) != 2 || gs[0] != n || gs[1] != d.Out {
		return nil, fmt.Errorf("dense: gradient shape %v does not match output (%d %d)", gs, n, d.Out)
	}
	gd := floats(grad)

	// dW += xᵀ·dY, accumulated into the existing grad buffer.
	blas32.Gemm(blas.Trans, blas.NoTrans, 1,
		d.general(floats(d.x), n, d.In),
		d.general(gd, n, d.Out),
		1, d.general(d.W.Grad, d.In, d.Out))
	for b := 0; b < n; b++ {
		for o := 0; o < d.Out; o++ {
			d.B.Grad[o] += gd[b*d.Out+o]
		}
	}

	dx := NewDense(n, d.In)
	blas32.Gemm(blas.NoTrans, blas.Trans, 1,
		d.general(gd, n, d.Out),
		d.general(d.W.Data, d.In, d.Out),
		0, d.general(floats(dx), n, d.In))
	return dx, nil
}

func (d *Dense) Params() []*Param {
	return []*Param{d.W, d.B}
}

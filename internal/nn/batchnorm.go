package nn

import (
	"fmt"

	"github.com/chewxy/math32"
	"gorgonia.org/tensor"
)

// BatchNorm normalizes each channel of a (N, C, H, W) tensor. Training uses
// batch statistics and updates the running estimates; evaluation uses the
// running estimates only, so eval output is deterministic. The running
// stats are frozen params: snapshots carry them, the optimizer skips them.
type BatchNorm struct {
	C        int
	Eps      float32
	Momentum float32

	Gamma       *Param
	Beta        *Param
	RunningMean *Param
	RunningVar  *Param

	xhat   []float32
	invStd []float32
	shape  tensor.Shape
}

// NewBatchNorm constructs the layer for c channels with gamma=1, beta=0,
// running variance 1.
func NewBatchNorm(c int) *BatchNorm {
	bn := &BatchNorm{
		C:           c,
		Eps:         1e-5,
		Momentum:    0.9,
		Gamma:       NewParam("bn.gamma", c),
		Beta:        NewParam("bn.beta", c),
		RunningMean: NewParam("bn.mean", c),
		RunningVar:  NewParam("bn.var", c),
	}
	bn.RunningMean.Frozen = true
	bn.RunningVar.Frozen = true
	for i := 0; i < c; i++ {
		bn.Gamma.Data[i] = 1
		bn.RunningVar.Data[i] = 1
	}
	return bn
}

func (bn *BatchNorm) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	n, c, h, w, err := dims4(x, "batchnorm")
	if err != nil {
		return nil, err
	}
	if c != bn.C {
		return nil, fmt.Errorf("batchnorm: want %d channels, got %d", bn.C, c)
	}
	bn.shape = x.Shape().Clone()

	xd := floats(x)
	y := NewDense(n, c, h, w)
	yd := floats(y)
	plane := h * w
	m := float32(n * plane)

	if !train {
		bn.xhat = nil
		for ch := 0; ch < c; ch++ {
			mean := bn.RunningMean.Data[ch]
			inv := 1 / math32.Sqrt(bn.RunningVar.Data[ch]+bn.Eps)
			g, b := bn.Gamma.Data[ch], bn.Beta.Data[ch]
			for bi := 0; bi < n; bi++ {
				base := (bi*c + ch) * plane
				for i := 0; i < plane; i++ {
					yd[base+i] = g*(xd[base+i]-mean)*inv + b
				}
			}
		}
		return y, nil
	}

	bn.xhat = make([]float32, len(xd))
	bn.invStd = make([]float32, c)
	for ch := 0; ch < c; ch++ {
		var sum float32
		for bi := 0; bi < n; bi++ {
			base := (bi*c + ch) * plane
			for i := 0; i < plane; i++ {
				sum += xd[base+i]
			}
		}
		mean := sum / m

		var varSum float32
		for bi := 0; bi < n; bi++ {
			base := (bi*c + ch) * plane
			for i := 0; i < plane; i++ {
				d := xd[base+i] - mean
				varSum += d * d
			}
		}
		variance := varSum / m
		inv := 1 / math32.Sqrt(variance+bn.Eps)
		bn.invStd[ch] = inv

		g, b := bn.Gamma.Data[ch], bn.Beta.Data[ch]
		for bi := 0; bi < n; bi++ {
			base := (bi*c + ch) * plane
			for i := 0; i < plane; i++ {
				xh := (xd[base+i] - mean) * inv
				bn.xhat[base+i] = xh
				yd[base+i] = g*xh + b
			}
		}

		bn.RunningMean.Data[ch] = bn.Momentum*bn.RunningMean.Data[ch] + (1-bn.Momentum)*mean
		bn.RunningVar.Data[ch] = bn.Momentum*bn.RunningVar.Data[ch] + (1-bn.Momentum)*variance
	}
	return y, nil
}

func (bn *BatchNorm) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	if bn.xhat == nil {
		return nil, fmt.Errorf("batchnorm: backward without a training forward")
	}
	gd := floats(grad)
	if len(gd) != len(bn.xhat) {
		return nil, fmt.Errorf("batchnorm: gradient size %d does not match input %d", len(gd), len(bn.xhat))
	}
	n, c, h, w := bn.shape[0], bn.shape[1], bn.shape[2], bn.shape[3]
	plane := h * w
	m := float32(n * plane)

	dx := NewDense(n, c, h, w)
	dxd := floats(dx)
	for ch := 0; ch < c; ch++ {
		var sumDy, sumDyXhat float32
		for bi := 0; bi < n; bi++ {
			base := (bi*c + ch) * plane
			for i := 0; i < plane; i++ {
				sumDy += gd[base+i]
				sumDyXhat += gd[base+i] * bn.xhat[base+i]
			}
		}
		bn.Beta.Grad[ch] += sumDy
		bn.Gamma.Grad[ch] += sumDyXhat

		scale := bn.Gamma.Data[ch] * bn.invStd[ch] / m
		for bi := 0; bi < n; bi++ {
			base := (bi*c + ch) * plane
			for i := 0; i < plane; i++ {
				dxd[base+i] = scale * (m*gd[base+i] - sumDy - bn.xhat[base+i]*sumDyXhat)
			}
		}
	}
	return dx, nil
}

func (bn *BatchNorm) Params() []*Param {
	return []*Param{bn.Gamma, bn.Beta, bn.RunningMean, bn.RunningVar}
}

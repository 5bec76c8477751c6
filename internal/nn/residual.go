package nn

import (
	"fmt"
	"math/rand"

	"gorgonia.org/tensor"
)

// Residual is a basic residual block: two 3x3 conv/batch-norm pairs with an
// identity skip, or a 1x1 projection skip when the channel count changes.
type Residual struct {
	conv1 *Conv2D
	bn1   *BatchNorm
	relu1 *ReLU
	conv2 *Conv2D
	bn2   *BatchNorm
	relu2 *ReLU
	proj  *Conv2D
}

// NewResidual constructs a block mapping in channels to out channels.
func NewResidual(in, out int, rng *rand.Rand) *Residual {
	r := &Residual{
		conv1: NewConv2D(in, out, 3, 1, rng),
		bn1:   NewBatchNorm(out),
		relu1: &ReLU{},
		conv2: NewConv2D(out, out, 3, 1, rng),
		bn2:   NewBatchNorm(out),
		relu2: &ReLU{},
	}
	if in != out {
		r.proj = NewConv2D(in, out, 1, 0, rng)
	}
	return r
}

func (r *Residual) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	h, err := r.conv1.Forward(x, train)
	if err != nil {
		return nil, err
	}
	if h, err = r.bn1.Forward(h, train); err != nil {
		return nil, err
	}
	if h, err = r.relu1.Forward(h, train); err != nil {
		return nil, err
	}
	if h, err = r.conv2.Forward(h, train); err != nil {
		return nil, err
	}
	if h, err = r.bn2.Forward(h, train); err != nil {
		return nil, err
	}

	skip := x
	if r.proj != nil {
		if skip, err = r.proj.Forward(x, train); err != nil {
			return nil, err
		}
	}
	hd, sd := floats(h), floats(skip)
	if len(hd) != len(sd) {
		return nil, fmt.Errorf("residual: branch size %d does not match skip %d", len(hd), len(sd))
	}
	sum := NewDense(h.Shape()...)
	sumd := floats(sum)
	for i := range hd {
		sumd[i] = hd[i] + sd[i]
	}
	return r.relu2.Forward(sum, train)
}

func (r *Residual) Backward(grad *tensor.Dense) (*tensor.Dense, error) {
	d, err := r.relu2.Backward(grad)
	if err != nil {
		return nil, err
	}

	// Main branch.
	db, err := r.bn2.Backward(d)
	if err != nil {
		return nil, err
	}
	if db, err = r.conv2.Backward(db); err != nil {
		return nil, err
	}
	if db, err = r.relu1.Backward(db); err != nil {
		return nil, err
	}
	if db, err = r.bn1.Backward(db); err != nil {
		return nil, err
	}
	if db, err = r.conv1.Backward(db); err != nil {
		return nil, err
	}

	// Skip branch.
	ds := d
	if r.proj != nil {
		if ds, err = r.proj.Backward(d); err != nil {
			return nil, err
		}
	}

	dbd, dsd := floats(db), floats(ds)
	if len(dbd) != len(dsd) {
		return nil, fmt.Errorf("residual: branch gradient size %d does not match skip %d", len(dbd), len(dsd))
	}
	dx := NewDense(db.Shape()...)
	dxd := floats(dx)
	for i := range dbd {
		dxd[i] = dbd[i] + dsd[i]
	}
	return dx, nil
}

func (r *Residual) Params() []*Param {
	params := append([]*Param{}, r.conv1.Params()...)
	params = append(params, r.bn1.Params()...)
	params = append(params, r.conv2.Params()...)
	params = append(params, r.bn2.Params()...)
	if r.proj != nil {
		params = append(params, r.proj.Params()...)
	}
	return params
}

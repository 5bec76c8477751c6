// Package nn provides the layer, loss and optimizer primitives the
// classifier architectures are assembled from. Layers operate on Float32
// tensors shaped (N, C, H, W) or (N, F) and carry their own parameters and
// gradient buffers; a forward pass saves whatever state the matching
// backward pass needs, so a layer instance serves one run at a time.
package nn

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Device identifies the compute target for a run. Only the CPU target
// exists; it is passed explicitly so loop logic never depends on it.
type Device int

// CPU is the general-purpose processor target.
const CPU Device = iota

func (d Device) String() string {
	return "cpu"
}

// Param is one learnable (or frozen) parameter tensor with its gradient
// buffer. The optimizer updates Data in place and skips frozen params;
// frozen params still travel with snapshots (batch norm running stats).
type Param struct {
	Name   string
	Data   []float32
	Grad   []float32
	Frozen bool
}

// NewParam allocates a zeroed parameter of the given size.
func NewParam(name string, size int) *Param {
	return &Param{
		Name: name,
		Data: make([]float32, size),
		Grad: make([]float32, size),
	}
}

// ZeroGrad clears the gradient buffer.
func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// ZeroGrads clears every gradient buffer before a new batch.
func ZeroGrads(params []*Param) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// Layer is one step of a forward/backward chain. Forward returns the layer
// output; Backward consumes the gradient of the loss with respect to that
// output, accumulates parameter gradients, and returns the gradient with
// respect to the layer input.
type Layer interface {
	Forward(x *tensor.Dense, train bool) (*tensor.Dense, error)
	Backward(grad *tensor.Dense) (*tensor.Dense, error)
	Params() []*Param
}

// NewDense allocates a zeroed Float32 tensor of the given shape.
func NewDense(shape ...int) *tensor.Dense {
	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(shape...))
}

// NewDenseBacked wraps a backing slice in a Float32 tensor of the given shape.
func NewDenseBacked(backing []float32, shape ...int) *tensor.Dense {
	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(shape...), tensor.WithBacking(backing))
}

func floats(t *tensor.Dense) []float32 {
	return t.Data().([]float32)
}

func dims4(t *tensor.Dense, who string) (n, c, h, w int, err error) {
	s := t.Shape()
	if len(s) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("%s: want 4D input, got shape %v", who, s)
	}
	return s[0], s[1], s[2], s[3], nil
}

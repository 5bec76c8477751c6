// Package model defines the classifier architectures. Every variant takes a
// (N, 3, H, W) batch and returns (N, numClasses) logits; the trainer
// depends on that contract only, never on the architecture.
package model

import (
	"fmt"

	"gorgonia.org/tensor"

	"synthmri/internal/nn"
)

// Model is the forward-pass contract shared by all variants, extended with
// the backward pass the trainer drives.
type Model interface {
	Name() string
	Forward(x *tensor.Dense, train bool) (*tensor.Dense, error)
	Backward(grad *tensor.Dense) error
	Params() []*nn.Param
}

// Sequential runs a layer stack in order and backpropagates in reverse.
type Sequential struct {
	name   string
	device nn.Device
	layers []nn.Layer
}

// NewSequential wraps a layer stack.
func NewSequential(name string, device nn.Device, layers ...nn.Layer) *Sequential {
	return &Sequential{name: name, device: device, layers: layers}
}

func (s *Sequential) Name() string {
	return s.name
}

// Device returns the compute target the model was built for.
func (s *Sequential) Device() nn.Device {
	return s.device
}

func (s *Sequential) Forward(x *tensor.Dense, train bool) (*tensor.Dense, error) {
	var err error
	for _, l := range s.layers {
		if x, err = l.Forward(x, train); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return x, nil
}

func (s *Sequential) Backward(grad *tensor.Dense) error {
	var err error
	for i := len(s.layers) - 1; i >= 0; i-- {
		if grad, err = s.layers[i].Backward(grad); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (s *Sequential) Params() []*nn.Param {
	var params []*nn.Param
	for _, l := range s.layers {
		params = append(params, l.Params()...)
	}
	return params
}

// ParameterCount sums the sizes of every parameter tensor, running stats
// included.
func ParameterCount(m Model) int {
	total := 0
	for _, p := range m.Params() {
		total += len(p.Data)
	}
	return total
}

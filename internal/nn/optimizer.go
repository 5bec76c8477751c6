package nn

// SGD applies stochastic gradient descent with momentum:
// v = momentum*v - lr*g; w += v. Frozen params are skipped.
type SGD struct {
	LR       float32
	Momentum float32

	velocity map[*Param][]float32
}

// NewSGD constructs the optimizer.
func NewSGD(lr, momentum float32) *SGD {
	return &SGD{
		LR:       lr,
		Momentum: momentum,
		velocity: make(map[*Param][]float32),
	}
}

// Step updates every non-frozen parameter in place from its gradient buffer.
func (o *SGD) Step(params []*Param) {
	for _, p := range params {
		if p.Frozen {
			continue
		}
		v, ok := o.velocity[p]
		if !ok {
			v = make([]float32, len(p.Data))
			o.velocity[p] = v
		}
		for i := range p.Data {
			v[i] = o.Momentum*v[i] - o.LR*p.Grad[i]
			p.Data[i] += v[i]
		}
	}
}

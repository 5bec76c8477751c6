package nn

import "testing"

func TestSGDStep(t *testing.T) {
	p := NewParam("w", 2)
	p.Data[0], p.Data[1] = 1, 1
	p.Grad[0], p.Grad[1] = 0.5, -0.5

	opt := NewSGD(0.1, 0)
	opt.Step([]*Param{p})
	if p.Data[0] != 0.95 || p.Data[1] != 1.05 {
		t.Fatalf("unexpected update %v", p.Data)
	}
}

func TestSGDMomentumAccumulates(t *testing.T) {
	p := NewParam("w", 1)
	p.Grad[0] = 1
	opt := NewSGD(0.1, 0.9)

	opt.Step([]*Param{p})
	first := p.Data[0]
	opt.Step([]*Param{p})
	second := p.Data[0] - first

	// v1 = -0.1, v2 = 0.9*v1 - 0.1 = -0.19
	if first != -0.1 {
		t.Fatalf("first step = %f, want -0.1", first)
	}
	if second != -0.19 {
		t.Fatalf("second step delta = %f, want -0.19", second)
	}
}

func TestSGDSkipsFrozen(t *testing.T) {
	p := NewParam("bn.mean", 1)
	p.Frozen = true
	p.Data[0] = 3
	p.Grad[0] = 100

	NewSGD(1, 0).Step([]*Param{p})
	if p.Data[0] != 3 {
		t.Fatalf("frozen param moved to %f", p.Data[0])
	}
}

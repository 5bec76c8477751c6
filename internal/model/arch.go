package model

import (
	"fmt"
	"math/rand"

	"synthmri/internal/nn"
)

func pooledDim(d, pools int) int {
	for i := 0; i < pools; i++ {
		d /= 2
	}
	return d
}

// NewSmallCNN builds a small convolutional classifier regularized with
// dropout: two conv/relu/pool stages, flatten, dropout, dense head. The
// dense width depends on the input spatial size, so h and w are fixed at
// construction.
func NewSmallCNN(classes, h, w int, dropout float32, device nn.Device, rng *rand.Rand) (*Sequential, error) {
	fh, fw := pooledDim(h, 2), pooledDim(w, 2)
	if fh == 0 || fw == 0 {
		return nil, fmt.Errorf("model: input %dx%d too small for small-cnn", h, w)
	}
	return NewSequential("small-cnn", device,
		nn.NewConv2D(3, 8, 3, 1, rng),
		&nn.ReLU{},
		&nn.MaxPool2{},
		nn.NewConv2D(8, 16, 3, 1, rng),
		&nn.ReLU{},
		&nn.MaxPool2{},
		&nn.Flatten{},
		nn.NewDropout(dropout, rng),
		nn.NewDenseLayer(16*fh*fw, classes, rng),
	), nil
}

// NewBatchNormCNN builds the batch-normalized convolutional variant.
func NewBatchNormCNN(classes, h, w int, device nn.Device, rng *rand.Rand) (*Sequential, error) {
	fh, fw := pooledDim(h, 2), pooledDim(w, 2)
	if fh == 0 || fw == 0 {
		return nil, fmt.Errorf("model: input %dx%d too small for batchnorm-cnn", h, w)
	}
	return NewSequential("batchnorm-cnn", device,
		nn.NewConv2D(3, 8, 3, 1, rng),
		nn.NewBatchNorm(8),
		&nn.ReLU{},
		&nn.MaxPool2{},
		nn.NewConv2D(8, 16, 3, 1, rng),
		nn.NewBatchNorm(16),
		&nn.ReLU{},
		&nn.MaxPool2{},
		&nn.Flatten{},
		nn.NewDenseLayer(16*fh*fw, classes, rng),
	), nil
}

// NewResNet builds the from-scratch residual variant. Global average
// pooling makes the head independent of the input spatial size.
func NewResNet(classes int, device nn.Device, rng *rand.Rand) *Sequential {
	return NewSequential("resnet", device,
		nn.NewConv2D(3, 8, 3, 1, rng),
		nn.NewBatchNorm(8),
		&nn.ReLU{},
		nn.NewResidual(8, 8, rng),
		&nn.MaxPool2{},
		nn.NewResidual(8, 16, rng),
		&nn.GlobalAvgPool{},
		nn.NewDenseLayer(16, classes, rng),
	)
}

// NewPretrainedResNet builds the residual variant initialized from a prior
// snapshot instead of random weights.
func NewPretrainedResNet(classes int, device nn.Device, rng *rand.Rand, snapshot string) (*Sequential, error) {
	m := NewResNet(classes, device, rng)
	if err := LoadSnapshot(m, snapshot); err != nil {
		return nil, err
	}
	m.name = "resnet-pretrained"
	return m, nil
}

// Package trainer drives the fixed-epoch training loop. No checkpointing,
// no early stopping, no learning-rate scheduling: n epochs, then done.
package trainer

import (
	"errors"
	"log"
	"time"

	"synthmri/internal/dataset"
	"synthmri/internal/metrics"
	"synthmri/internal/model"
	"synthmri/internal/nn"
)

// Config captures the knobs required by the loop.
type Config struct {
	Epochs  int
	Verbose bool
}

// EpochStats is the record of one epoch.
type EpochStats struct {
	Epoch       int
	TrainLoss   float32
	ValLoss     float32
	ValAccuracy float32
}

// Fit trains the model for cfg.Epochs epochs. Each epoch runs every
// training batch through zero-grads / forward / loss / backward / step,
// then a full validation pass without gradient updates. Any shape mismatch
// propagates up and aborts the run.
func Fit(m model.Model, train, val *dataset.Loader, loss *nn.SoftmaxCrossEntropy, opt *nn.SGD, cfg Config) ([]EpochStats, error) {
	if cfg.Epochs <= 0 {
		return nil, errors.New("trainer: epochs must be > 0")
	}
	params := m.Params()
	history := make([]EpochStats, 0, cfg.Epochs)
	var window metrics.Window

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		train.Reset()
		var lossSum float32
		var seen int
		for {
			startData := time.Now()
			batch, ok, err := train.Next()
			if err != nil {
				return history, err
			}
			if !ok {
				break
			}
			dataTime := time.Since(startData)

			startCompute := time.Now()
			nn.ZeroGrads(params)
			logits, err := m.Forward(batch.Inputs, true)
			if err != nil {
				return history, err
			}
			batchLoss, err := loss.Forward(logits, batch.Labels)
			if err != nil {
				return history, err
			}
			grad, err := loss.Backward()
			if err != nil {
				return history, err
			}
			if err := m.Backward(grad); err != nil {
				return history, err
			}
			opt.Step(params)
			computeTime := time.Since(startCompute)

			n := len(batch.Labels)
			lossSum += batchLoss * float32(n)
			seen += n
			window.Record(n, dataTime, computeTime, batchLoss)
		}
		if seen == 0 {
			return history, errors.New("trainer: empty training pass")
		}

		rec, err := metrics.Evaluate(m, val, loss)
		if err != nil {
			return history, err
		}
		stats := EpochStats{
			Epoch:       epoch,
			TrainLoss:   lossSum / float32(seen),
			ValLoss:     rec.MeanLoss(),
			ValAccuracy: rec.Accuracy(),
		}
		history = append(history, stats)

		if cfg.Verbose {
			snap := window.Snapshot()
			log.Printf("model=%s epoch=%d train_loss=%.4f val_loss=%.4f val_acc=%.4f images_per_sec=%.1f data_ms=%.2f compute_ms=%.2f",
				m.Name(),
				stats.Epoch,
				stats.TrainLoss,
				stats.ValLoss,
				stats.ValAccuracy,
				snap.ImagesPerSec,
				snap.AvgDataMS,
				snap.AvgComputeMS,
			)
		}
	}
	return history, nil
}

// Package experiment sequences the study: can GAN-generated MRI slices
// stand in for real ones when training an Alzheimer classifier? Five
// configurations run against the same real holdout set. Hyperparameters
// beyond the config file are literal values here.
package experiment

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"

	"github.com/seehuhn/mt19937"

	"synthmri/internal/config"
	"synthmri/internal/dataset"
	"synthmri/internal/imageio"
	"synthmri/internal/metrics"
	"synthmri/internal/model"
	"synthmri/internal/nn"
	"synthmri/internal/trainer"
)

const (
	momentum       = 0.9
	dropoutRate    = 0.25
	fineTuneFactor = 0.1
)

var binaryClasses = []string{"no-alzheimer", "alzheimer"}
var realVsSynthetic = []string{"synthetic", "real"}

// Runner owns the loaded datasets and the seeded generator threaded
// through every split, shuffle and initialization.
type Runner struct {
	cfg    *config.Config
	device nn.Device
	rng    *rand.Rand

	synthetic   *dataset.Dataset
	realTrain   *dataset.Dataset
	realHoldout *dataset.Dataset
	height      int
	width       int

	discriminator model.Model
}

// NewRunner seeds the generator and fixes the compute device.
func NewRunner(cfg *config.Config) *Runner {
	src := mt19937.New()
	src.Seed(cfg.Seed)
	return &Runner{
		cfg:    cfg,
		device: nn.CPU,
		rng:    rand.New(src),
	}
}

// Load reads the three labeled image sets, binarizes their labels and
// wraps them in datasets with the MRI transform pipeline.
func (r *Runner) Load(ctx context.Context) error {
	var err error
	if r.synthetic, err = r.loadSet(ctx, "synthetic", r.cfg.SyntheticRoot); err != nil {
		return err
	}
	if r.realTrain, err = r.loadSet(ctx, "real-train", r.cfg.RealTrainRoot); err != nil {
		return err
	}
	if r.realHoldout, err = r.loadSet(ctx, "real-holdout", r.cfg.RealHoldoutRoot); err != nil {
		return err
	}
	return nil
}

func (r *Runner) loadSet(ctx context.Context, name, root string) (*dataset.Dataset, error) {
	images, labels, classes, err := imageio.LoadDir(ctx, root, r.cfg.NumWorkers)
	if err != nil {
		return nil, err
	}
	labels = dataset.Binarize(labels)
	ds, err := dataset.New(images, labels, dataset.MRIPipeline())
	if err != nil {
		return nil, err
	}

	s := images[0].Shape()
	if r.height == 0 {
		r.height, r.width = s[0], s[1]
	} else if s[0] != r.height || s[1] != r.width {
		return nil, fmt.Errorf("experiment: %s images are %dx%d, other sets are %dx%d",
			name, s[0], s[1], r.height, r.width)
	}

	var pos int
	for _, l := range labels {
		pos += l
	}
	log.Printf("set=%s root=%s classes=%d samples=%d no_alzheimer=%d alzheimer=%d",
		name, root, len(classes), ds.Len(), ds.Len()-pos, pos)
	return ds, nil
}

// Run executes the five configurations in order. The discriminator trained
// by the adversarial step feeds the quality filter.
func (r *Runner) Run(ctx context.Context) error {
	steps := []func() error{
		r.SyntheticOnly,
		r.RealOnly,
		r.Transfer,
		r.Adversarial,
		r.QualityFiltered,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// SyntheticOnly trains the residual classifier on synthetic scans alone
// and measures how far that transfers to real holdout scans. Its snapshot
// seeds the transfer experiment.
func (r *Runner) SyntheticOnly() error {
	m := model.NewResNet(len(binaryClasses), r.device, r.rng)
	if err := r.trainClassifier("synthetic-only", m, r.synthetic, float32(r.cfg.LearningRate)); err != nil {
		return err
	}
	return model.SaveSnapshot(m, r.snapshotPath("synthetic"))
}

// RealOnly is the reference configuration: train and evaluate on real data.
func (r *Runner) RealOnly() error {
	m, err := model.NewBatchNormCNN(len(binaryClasses), r.height, r.width, r.device, r.rng)
	if err != nil {
		return err
	}
	if err := r.trainClassifier("real-only", m, r.realTrain, float32(r.cfg.LearningRate)); err != nil {
		return err
	}
	return model.SaveSnapshot(m, r.snapshotPath("real"))
}

// Transfer fine-tunes the synthetic-trained residual net on real scans at
// a reduced learning rate.
func (r *Runner) Transfer() error {
	m, err := model.NewPretrainedResNet(len(binaryClasses), r.device, r.rng, r.snapshotPath("synthetic"))
	if err != nil {
		return err
	}
	lr := float32(r.cfg.LearningRate * fineTuneFactor)
	if err := r.trainClassifier("transfer", m, r.realTrain, lr); err != nil {
		return err
	}
	return model.SaveSnapshot(m, r.snapshotPath("transfer"))
}

// Adversarial trains a discriminator to tell real scans (label 1) from
// synthetic ones (label 0). Its held-out accuracy is the distributional
// similarity proxy: near 0.5 means the GAN output is hard to distinguish.
func (r *Runner) Adversarial() error {
	merged, err := dataset.Merge(r.synthetic.Relabel(0), r.realTrain.Relabel(1))
	if err != nil {
		return err
	}
	train, holdout, err := merged.Split(r.cfg.ValFraction, r.rng)
	if err != nil {
		return err
	}

	m, err := model.NewSmallCNN(len(realVsSynthetic), r.height, r.width, dropoutRate, r.device, r.rng)
	if err != nil {
		return err
	}
	log.Printf("experiment=adversarial model=%s params=%d train=%d holdout=%d",
		m.Name(), model.ParameterCount(m), train.Len(), holdout.Len())

	if err := r.fit(m, train, float32(r.cfg.LearningRate)); err != nil {
		return err
	}
	rec, err := r.evaluate(m, holdout)
	if err != nil {
		return err
	}
	log.Printf("experiment=adversarial holdout_acc=%.4f", rec.Accuracy())
	for _, line := range splitLines(rec.Report(realVsSynthetic)) {
		log.Printf("experiment=adversarial report: %s", line)
	}

	r.discriminator = m
	return model.SaveSnapshot(m, r.snapshotPath("discriminator"))
}

// QualityFiltered keeps only the synthetic scans the discriminator scores
// most real and retrains the classifier on that subset.
func (r *Runner) QualityFiltered() error {
	if r.discriminator == nil {
		return fmt.Errorf("experiment: quality filter needs the adversarial discriminator")
	}
	kept, err := r.filterSynthetic()
	if err != nil {
		return err
	}
	log.Printf("experiment=quality-filtered kept=%d of=%d keep_fraction=%v",
		kept.Len(), r.synthetic.Len(), r.cfg.KeepFraction)

	m, err := model.NewSmallCNN(len(binaryClasses), r.height, r.width, dropoutRate, r.device, r.rng)
	if err != nil {
		return err
	}
	if err := r.trainClassifier("quality-filtered", m, kept, float32(r.cfg.LearningRate)); err != nil {
		return err
	}
	return model.SaveSnapshot(m, r.snapshotPath("filtered"))
}

// filterSynthetic scores every synthetic sample with P(real) and keeps the
// top keep_fraction of them.
func (r *Runner) filterSynthetic() (*dataset.Dataset, error) {
	loader, err := dataset.NewLoader(r.synthetic, r.cfg.BatchSize, false, nil)
	if err != nil {
		return nil, err
	}
	scores := make([]float32, 0, r.synthetic.Len())
	for {
		batch, ok, err := loader.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		logits, err := r.discriminator.Forward(batch.Inputs, false)
		if err != nil {
			return nil, err
		}
		ld := logits.Data().([]float32)
		classes := logits.Shape()[1]
		for i := range batch.Labels {
			probs := nn.Softmax(ld[i*classes : (i+1)*classes])
			scores = append(scores, probs[1])
		}
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	keep := int(r.cfg.KeepFraction * float64(len(order)))
	if keep < 2 {
		keep = 2
	}
	return r.synthetic.Subset(order[:keep])
}

// trainClassifier splits source into train/validation, fits the model and
// reports accuracy on the real holdout set.
func (r *Runner) trainClassifier(name string, m model.Model, source *dataset.Dataset, lr float32) error {
	log.Printf("experiment=%s model=%s params=%d", name, m.Name(), model.ParameterCount(m))

	if err := r.fit(m, source, lr); err != nil {
		return err
	}
	rec, err := r.evaluate(m, r.realHoldout)
	if err != nil {
		return err
	}
	log.Printf("experiment=%s holdout_acc=%.4f", name, rec.Accuracy())
	for _, line := range splitLines(rec.Report(binaryClasses)) {
		log.Printf("experiment=%s report: %s", name, line)
	}
	return nil
}

// fit splits source into train/validation and runs the fixed-epoch loop.
func (r *Runner) fit(m model.Model, source *dataset.Dataset, lr float32) error {
	train, val, err := source.Split(r.cfg.ValFraction, r.rng)
	if err != nil {
		return err
	}
	trainLoader, err := dataset.NewLoader(train, r.cfg.BatchSize, true, r.rng)
	if err != nil {
		return err
	}
	valLoader, err := dataset.NewLoader(val, r.cfg.BatchSize, false, nil)
	if err != nil {
		return err
	}
	loss := &nn.SoftmaxCrossEntropy{}
	opt := nn.NewSGD(lr, momentum)
	_, err = trainer.Fit(m, trainLoader, valLoader, loss, opt, trainer.Config{
		Epochs:  r.cfg.Epochs,
		Verbose: true,
	})
	return err
}

func (r *Runner) evaluate(m model.Model, ds *dataset.Dataset) (*metrics.Record, error) {
	loader, err := dataset.NewLoader(ds, r.cfg.BatchSize, false, nil)
	if err != nil {
		return nil, err
	}
	return metrics.Evaluate(m, loader, &nn.SoftmaxCrossEntropy{})
}

func (r *Runner) snapshotPath(name string) string {
	return filepath.Join(r.cfg.ModelDir, name+".gob")
}

func splitLines(s string) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return lines
}
